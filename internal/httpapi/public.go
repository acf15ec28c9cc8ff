package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
	"github.com/MachineDeskLabs/qr_support_svc/internal/pipeline"
)

const (
	errorValueRateLimited       = "rate_limited"
	errorValueInvalidPayload    = "invalid_payload"
	errorValueInvalidSubmission = "invalid_submission"
	errorValueUnknownMachine    = "unknown_machine"
	errorValueSaveFailed        = "save_failed"

	statusValueOK = "ok"

	queryParameterQRToken       = "t"
	queryParameterMachineType   = "machine_type"
	queryParameterMachineSerial = "machine_serial"

	logEventSubmitTicketFailed = "submit_ticket_failed"
	logEventRenderFormFailed   = "render_form_failed"
)

// PublicHandlers serves the operator-facing form and submission endpoint.
type PublicHandlers struct {
	database                  *gorm.DB
	logger                    *zap.Logger
	submissionPipeline        *pipeline.Pipeline
	rateWindow                time.Duration
	maxRequestsPerIPPerWindow int
	rateCountersByIP          map[string]int
	rateCountersMutex         sync.Mutex
}

// NewPublicHandlers builds the public handler set.
func NewPublicHandlers(database *gorm.DB, logger *zap.Logger, submissionPipeline *pipeline.Pipeline) *PublicHandlers {
	return &PublicHandlers{
		database:                  database,
		logger:                    logger,
		submissionPipeline:        submissionPipeline,
		rateWindow:                30 * time.Second,
		maxRequestsPerIPPerWindow: 6,
		rateCountersByIP:          make(map[string]int),
	}
}

type createTicketRequest struct {
	MachineType   string `form:"machine_type" json:"machine_type"`
	MachineSerial string `form:"machine_serial" json:"machine_serial"`
	OperatorName  string `form:"operator_name" json:"operator_name"`
	OperatorPhone string `form:"operator_phone" json:"operator_phone"`
	Summary       string `form:"summary" json:"summary"`
	Honeypot      string `form:"website" json:"website"`
}

type supportFormView struct {
	MachineType   string
	MachineSerial string
	MachineLabel  string
	Prefilled     bool
}

// CreateTicket accepts one support form submission and runs it through the
// submission pipeline.
func (handlers *PublicHandlers) CreateTicket(context *gin.Context) {
	clientIP := context.ClientIP()
	if handlers.isRateLimited(clientIP) {
		context.JSON(http.StatusTooManyRequests, gin.H{"error": errorValueRateLimited})
		return
	}

	var payload createTicketRequest
	if bindErr := context.ShouldBind(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidPayload})
		return
	}

	_, submitErr := handlers.submissionPipeline.Submit(context.Request.Context(), pipeline.SubmissionInput{
		MachineType:   payload.MachineType,
		MachineSerial: payload.MachineSerial,
		OperatorName:  payload.OperatorName,
		OperatorPhone: payload.OperatorPhone,
		Summary:       payload.Summary,
		Honeypot:      payload.Honeypot,
	})
	if submitErr != nil {
		switch {
		case errors.Is(submitErr, pipeline.ErrInvalidSubmission):
			context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidSubmission})
		case errors.Is(submitErr, pipeline.ErrUnknownMachine):
			context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownMachine})
		default:
			handlers.logger.Warn(logEventSubmitTicketFailed, zap.Error(submitErr))
			context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		}
		return
	}

	// Spam drops land here too: the response never distinguishes them.
	context.JSON(http.StatusOK, gin.H{"status": statusValueOK})
}

// ShowForm renders the support form, pre-filled from a QR token or from
// machine type and serial query parameters.
func (handlers *PublicHandlers) ShowForm(context *gin.Context) {
	view := handlers.resolvePrefill(context)

	context.Status(http.StatusOK)
	context.Header("Content-Type", "text/html; charset=utf-8")
	if executeErr := supportFormTemplate.Execute(context.Writer, view); executeErr != nil {
		handlers.logger.Warn(logEventRenderFormFailed, zap.Error(executeErr))
	}
}

func (handlers *PublicHandlers) resolvePrefill(context *gin.Context) supportFormView {
	requestContext := context.Request.Context()

	if tokenValue := strings.TrimSpace(context.Query(queryParameterQRToken)); tokenValue != "" {
		var qrToken model.QRToken
		lookupErr := handlers.database.WithContext(requestContext).
			First(&qrToken, "token = ?", tokenValue).Error
		if lookupErr == nil && !qrToken.Expired(time.Now().UTC()) {
			var machine model.Machine
			if machineErr := handlers.database.WithContext(requestContext).
				First(&machine, "id = ?", qrToken.MachineID).Error; machineErr == nil {
				return supportFormView{
					MachineType:   machine.Type,
					MachineSerial: machine.Serial,
					MachineLabel:  machine.Label,
					Prefilled:     true,
				}
			}
		}
	}

	machineType := strings.TrimSpace(context.Query(queryParameterMachineType))
	machineSerial := strings.TrimSpace(context.Query(queryParameterMachineSerial))
	return supportFormView{
		MachineType:   machineType,
		MachineSerial: machineSerial,
		Prefilled:     machineType != "" && machineSerial != "",
	}
}

// Health reports service liveness.
func (handlers *PublicHandlers) Health(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{"status": statusValueOK})
}

func (handlers *PublicHandlers) isRateLimited(ip string) bool {
	nowBucket := time.Now().Unix() / int64(handlers.rateWindow.Seconds())
	key := fmt.Sprintf("%s:%d", ip, nowBucket)

	handlers.rateCountersMutex.Lock()
	defer handlers.rateCountersMutex.Unlock()

	handlers.rateCountersByIP[key]++
	return handlers.rateCountersByIP[key] > handlers.maxRequestsPerIPPerWindow
}
