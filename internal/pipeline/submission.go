package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
	"github.com/MachineDeskLabs/qr_support_svc/internal/storage"
)

const (
	actorPublicOperator = "public:operator"
	actorPipeline       = "system:pipeline"

	actionTicketCreated         = "ticket.created"
	actionSpamDropped           = "ticket.spam_dropped"
	actionMachineAutoRegistered = "machine.auto_registered"

	entityTypeTicket  = "ticket"
	entityTypeMachine = "machine"

	noteHoneypotFilled = "honeypot field filled"

	logEventEmailRenderFailed  = "email_render_failed"
	logEventEmailDispatch      = "email_dispatch"
	logEventEmailLogSaveFailed = "email_log_save_failed"
	logEventAuditSaveFailed    = "audit_save_failed"
	logFieldTicketID           = "ticket_id"
	logFieldMachineSerial      = "machine_serial"
	logFieldEmailStatus        = "email_status"

	errorMessageInvalidSubmission = "pipeline: invalid submission"
	errorMessageUnknownMachine    = "pipeline: unknown machine"
	errorMessageTicketPersistence = "pipeline: save ticket"
	errorMessageResolveMachine    = "pipeline: resolve machine"
	errorMessageRegisterMachine   = "pipeline: register machine"
)

var (
	// ErrInvalidSubmission indicates the submission failed field validation.
	// This is one of only two user-visible failures.
	ErrInvalidSubmission = errors.New(errorMessageInvalidSubmission)
	// ErrUnknownMachine indicates the referenced machine is not registered.
	ErrUnknownMachine = errors.New(errorMessageUnknownMachine)
	// ErrTicketPersistence indicates the ticket could not be committed. The
	// request fails because there is nothing to log against.
	ErrTicketPersistence = errors.New(errorMessageTicketPersistence)
)

// Config controls pipeline behavior.
type Config struct {
	SupportRecipient     string
	AutoRegisterMachines bool
}

// Pipeline orchestrates one ticket submission: validation, machine
// resolution, ticket persistence, email rendering and dispatch, and
// email/audit logging. Once the ticket has committed the caller always sees
// success, whatever happens to the email.
type Pipeline struct {
	database      *gorm.DB
	logger        *zap.Logger
	dispatcher    *mailer.Dispatcher
	configuration Config
}

// New builds a Pipeline.
func New(database *gorm.DB, logger *zap.Logger, dispatcher *mailer.Dispatcher, configuration Config) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		database:      database,
		logger:        logger,
		dispatcher:    dispatcher,
		configuration: configuration,
	}
}

// SubmissionInput is one operator form submission.
type SubmissionInput struct {
	MachineType   string
	MachineSerial string
	OperatorName  string
	OperatorPhone string
	Summary       string
	Honeypot      string
}

// SubmissionResult reports the stored ticket and the email outcome. A spam
// drop leaves both fields empty while the caller still reports success.
type SubmissionResult struct {
	TicketID    string
	EmailStatus string
}

// Submit runs the submission pipeline.
func (pipeline *Pipeline) Submit(ctx context.Context, input SubmissionInput) (SubmissionResult, error) {
	if strings.TrimSpace(input.Honeypot) != "" {
		pipeline.appendAuditEvent(ctx, actorPublicOperator, actionSpamDropped, entityTypeTicket, "", noteHoneypotFilled)
		return SubmissionResult{}, nil
	}

	if validationErr := validateSubmission(input); validationErr != nil {
		return SubmissionResult{}, validationErr
	}

	machine, resolveErr := pipeline.resolveMachine(ctx, input)
	if resolveErr != nil {
		return SubmissionResult{}, resolveErr
	}

	ticket, ticketErr := model.NewTicket(model.TicketInput{
		MachineID:     machine.ID,
		OperatorName:  input.OperatorName,
		OperatorPhone: input.OperatorPhone,
		Summary:       input.Summary,
	})
	if ticketErr != nil {
		return SubmissionResult{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, ticketErr)
	}

	// The ticket commit must land before any email work starts; a ticket is
	// never lost to a notification failure.
	if createErr := pipeline.database.WithContext(ctx).Create(&ticket).Error; createErr != nil {
		return SubmissionResult{}, fmt.Errorf("%w: %w", ErrTicketPersistence, createErr)
	}

	pipeline.appendAuditEvent(ctx, actorPublicOperator, actionTicketCreated, entityTypeTicket, ticket.ID, machine.Serial)

	emailStatus := pipeline.notifySupport(ctx, machine, ticket)
	pipeline.logger.Info(logEventEmailDispatch,
		zap.String(logFieldTicketID, ticket.ID),
		zap.String(logFieldEmailStatus, emailStatus),
	)

	return SubmissionResult{TicketID: ticket.ID, EmailStatus: emailStatus}, nil
}

func validateSubmission(input SubmissionInput) error {
	if strings.TrimSpace(input.MachineSerial) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, model.ErrInvalidMachineSerial)
	}
	if strings.TrimSpace(input.MachineType) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, model.ErrInvalidMachineType)
	}
	if contentErr := model.ValidateTicketContent(input.OperatorName, input.OperatorPhone, input.Summary); contentErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, contentErr)
	}
	return nil
}

func (pipeline *Pipeline) resolveMachine(ctx context.Context, input SubmissionInput) (model.Machine, error) {
	trimmedSerial := strings.TrimSpace(input.MachineSerial)
	trimmedType := strings.TrimSpace(input.MachineType)

	var machine model.Machine
	lookupErr := pipeline.database.WithContext(ctx).
		First(&machine, "serial = ? AND type = ?", trimmedSerial, trimmedType).Error
	if lookupErr == nil {
		return machine, nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return model.Machine{}, fmt.Errorf("%s: %w", errorMessageResolveMachine, lookupErr)
	}

	if !pipeline.configuration.AutoRegisterMachines {
		return model.Machine{}, fmt.Errorf("%w: %s %s", ErrUnknownMachine, trimmedType, trimmedSerial)
	}

	registered, registerErr := model.NewMachine(model.MachineInput{Serial: trimmedSerial, Type: trimmedType})
	if registerErr != nil {
		return model.Machine{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, registerErr)
	}
	if createErr := pipeline.database.WithContext(ctx).Create(&registered).Error; createErr != nil {
		return model.Machine{}, fmt.Errorf("%s: %w", errorMessageRegisterMachine, createErr)
	}
	pipeline.appendAuditEvent(ctx, actorPipeline, actionMachineAutoRegistered, entityTypeMachine, registered.ID, registered.Serial)
	return registered, nil
}

// notifySupport renders and dispatches the notification email and appends the
// email log row. Every failure in here is absorbed: the submission already
// succeeded when the ticket committed.
func (pipeline *Pipeline) notifySupport(ctx context.Context, machine model.Machine, ticket model.Ticket) string {
	recipient := pipeline.configuration.SupportRecipient

	rendered, renderErr := mailer.RenderTicketEmail(mailer.TicketEmailData{
		MachineType:   machine.Type,
		MachineSerial: machine.Serial,
		OperatorName:  ticket.OperatorName,
		OperatorPhone: ticket.OperatorPhone,
		Summary:       ticket.Summary,
		SubmittedAt:   ticket.CreatedAt,
	})
	if renderErr != nil {
		pipeline.logger.Warn(logEventEmailRenderFailed,
			zap.Error(renderErr),
			zap.String(logFieldTicketID, ticket.ID),
			zap.String(logFieldMachineSerial, machine.Serial),
		)
		pipeline.appendEmailLog(ctx, ticket.ID, recipient, mailer.RenderedEmail{}, mailer.Outcome{
			Status: mailer.StatusFailed,
			Error:  renderErr.Error(),
		})
		return mailer.StatusFailed
	}

	outcome := pipeline.dispatcher.Dispatch(ctx, recipient, ticket.ID, rendered)
	pipeline.appendEmailLog(ctx, ticket.ID, recipient, rendered, outcome)
	return outcome.Status
}

func (pipeline *Pipeline) appendEmailLog(ctx context.Context, ticketID string, recipient string, rendered mailer.RenderedEmail, outcome mailer.Outcome) {
	emailLog := model.EmailLog{
		ID:                storage.NewID(),
		TicketID:          ticketID,
		ToAddress:         recipient,
		Subject:           rendered.Subject,
		Body:              rendered.TextBody,
		Status:            outcome.Status,
		ProviderMessageID: outcome.ProviderMessageID,
		Error:             outcome.Error,
		PayloadHash:       rendered.PayloadHash,
	}
	if saveErr := pipeline.database.WithContext(ctx).Create(&emailLog).Error; saveErr != nil {
		pipeline.logger.Warn(logEventEmailLogSaveFailed, zap.Error(saveErr), zap.String(logFieldTicketID, ticketID))
	}
}

func (pipeline *Pipeline) appendAuditEvent(ctx context.Context, actor string, action string, entityType string, entityID string, note string) {
	auditEvent := model.AuditEvent{
		ID:         storage.NewID(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Note:       note,
	}
	if saveErr := pipeline.database.WithContext(ctx).Create(&auditEvent).Error; saveErr != nil {
		pipeline.logger.Warn(logEventAuditSaveFailed, zap.Error(saveErr), zap.String("action", action))
	}
}
