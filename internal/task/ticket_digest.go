package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
)

const (
	digestLookback = 24 * time.Hour

	logEventTicketDigest       = "ticket_digest"
	logEventTicketDigestFailed = "ticket_digest_failed"
)

// TicketDigestJob periodically summarizes recent ticket and email-dispatch
// activity into the service log, so a stalled SMTP setup or a burst of new
// tickets is visible without opening the admin portal.
type TicketDigestJob struct {
	database *gorm.DB
	logger   *zap.Logger
}

// NewTicketDigestJob builds the digest job.
func NewTicketDigestJob(database *gorm.DB, logger *zap.Logger) *TicketDigestJob {
	return &TicketDigestJob{database: database, logger: logger}
}

// Run counts tickets and failed email dispatches inside the lookback window
// and logs one summary line.
func (job *TicketDigestJob) Run(ctx context.Context) {
	windowStart := time.Now().UTC().Add(-digestLookback)

	var newTicketCount int64
	if countErr := job.database.WithContext(ctx).Model(&model.Ticket{}).
		Where("created_at >= ?", windowStart).
		Count(&newTicketCount).Error; countErr != nil {
		job.logger.Warn(logEventTicketDigestFailed, zap.Error(countErr))
		return
	}

	var openTicketCount int64
	if countErr := job.database.WithContext(ctx).Model(&model.Ticket{}).
		Where("status = ?", model.TicketStatusOpen).
		Count(&openTicketCount).Error; countErr != nil {
		job.logger.Warn(logEventTicketDigestFailed, zap.Error(countErr))
		return
	}

	var failedEmailCount int64
	if countErr := job.database.WithContext(ctx).Model(&model.EmailLog{}).
		Where("status = ? AND created_at >= ?", mailer.StatusFailed, windowStart).
		Count(&failedEmailCount).Error; countErr != nil {
		job.logger.Warn(logEventTicketDigestFailed, zap.Error(countErr))
		return
	}

	job.logger.Info(logEventTicketDigest,
		zap.Int64("tickets_last_24h", newTicketCount),
		zap.Int64("open_tickets", openTicketCount),
		zap.Int64("failed_emails_last_24h", failedEmailCount))
}
