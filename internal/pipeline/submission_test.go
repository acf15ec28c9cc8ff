package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
	"github.com/MachineDeskLabs/qr_support_svc/internal/testutil"
)

const (
	testSupportRecipient = "support@example.com"
	testMachineSerial    = "FL-002"
	testMachineType      = "forklift"
)

func validSubmission() SubmissionInput {
	return SubmissionInput{
		MachineType:   testMachineType,
		MachineSerial: testMachineSerial,
		OperatorName:  "J. Doe",
		OperatorPhone: "555-0100",
		Summary:       "Hydraulic leak",
	}
}

func seedMachine(t *testing.T, database *gorm.DB) model.Machine {
	t.Helper()
	machine, err := model.NewMachine(model.MachineInput{Serial: testMachineSerial, Type: testMachineType})
	require.NoError(t, err)
	require.NoError(t, database.Create(&machine).Error)
	return machine
}

func newTestPipeline(t *testing.T, database *gorm.DB, dispatcherConfig mailer.Config, pipelineConfig Config) *Pipeline {
	t.Helper()
	if dispatcherConfig.OutboxDirectory == "" {
		dispatcherConfig.OutboxDirectory = t.TempDir()
	}
	if pipelineConfig.SupportRecipient == "" {
		pipelineConfig.SupportRecipient = testSupportRecipient
	}
	return New(database, nil, mailer.NewDispatcher(dispatcherConfig, nil), pipelineConfig)
}

func TestSubmitCreatesTicketAndOneEmailLog(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	seedMachine(t, database)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{})

	result, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	require.NotEmpty(t, result.TicketID)
	require.Equal(t, mailer.StatusFallback, result.EmailStatus)

	var ticket model.Ticket
	require.NoError(t, database.First(&ticket, "id = ?", result.TicketID).Error)
	require.Equal(t, model.TicketStatusNew, ticket.Status)

	var emailLogs []model.EmailLog
	require.NoError(t, database.Find(&emailLogs, "ticket_id = ?", result.TicketID).Error)
	require.Len(t, emailLogs, 1)
	require.Equal(t, mailer.StatusFallback, emailLogs[0].Status)
	require.Equal(t, testSupportRecipient, emailLogs[0].ToAddress)
	require.NotEmpty(t, emailLogs[0].PayloadHash)
	require.Empty(t, emailLogs[0].Error)

	var auditCount int64
	require.NoError(t, database.Model(&model.AuditEvent{}).
		Where("action = ? AND entity_id = ?", actionTicketCreated, result.TicketID).
		Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestSubmitHoneypotReportsSuccessWithoutTicket(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	seedMachine(t, database)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{})

	input := validSubmission()
	input.Honeypot = "spam"
	result, err := submissionPipeline.Submit(context.Background(), input)
	require.NoError(t, err)
	require.Empty(t, result.TicketID)

	var ticketCount int64
	require.NoError(t, database.Model(&model.Ticket{}).Count(&ticketCount).Error)
	require.Zero(t, ticketCount)

	var emailLogCount int64
	require.NoError(t, database.Model(&model.EmailLog{}).Count(&emailLogCount).Error)
	require.Zero(t, emailLogCount)

	var auditCount int64
	require.NoError(t, database.Model(&model.AuditEvent{}).
		Where("action = ?", actionSpamDropped).
		Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestSubmitEmptySummaryFailsValidationWithoutSideEffects(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	seedMachine(t, database)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{})

	input := validSubmission()
	input.Summary = "   "
	_, err := submissionPipeline.Submit(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidSubmission)
	require.ErrorIs(t, err, model.ErrInvalidSummary)

	var ticketCount int64
	require.NoError(t, database.Model(&model.Ticket{}).Count(&ticketCount).Error)
	require.Zero(t, ticketCount)

	var emailLogCount int64
	require.NoError(t, database.Model(&model.EmailLog{}).Count(&emailLogCount).Error)
	require.Zero(t, emailLogCount)
}

func TestSubmitUnknownMachineIsRejectedByDefault(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{})

	_, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.ErrorIs(t, err, ErrUnknownMachine)

	var ticketCount int64
	require.NoError(t, database.Model(&model.Ticket{}).Count(&ticketCount).Error)
	require.Zero(t, ticketCount)
}

func TestSubmitUnknownMachineAutoRegistersWhenConfigured(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{AutoRegisterMachines: true})

	result, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	require.NotEmpty(t, result.TicketID)

	var machine model.Machine
	require.NoError(t, database.First(&machine, "serial = ?", testMachineSerial).Error)
	require.Equal(t, testMachineType, machine.Type)

	var auditCount int64
	require.NoError(t, database.Model(&model.AuditEvent{}).
		Where("action = ? AND entity_id = ?", actionMachineAutoRegistered, machine.ID).
		Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestSubmitDispatchFailureStillSucceedsAndIsLogged(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	seedMachine(t, database)
	// Enabled without host: the dispatcher reports failed without touching
	// the network.
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: true}, Config{})

	result, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	require.NotEmpty(t, result.TicketID)
	require.Equal(t, mailer.StatusFailed, result.EmailStatus)

	var emailLogs []model.EmailLog
	require.NoError(t, database.Find(&emailLogs, "ticket_id = ?", result.TicketID).Error)
	require.Len(t, emailLogs, 1)
	require.Equal(t, mailer.StatusFailed, emailLogs[0].Status)
	require.NotEmpty(t, emailLogs[0].Error)
}

func TestSubmitAppendsOneEmailLogPerAttempt(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	seedMachine(t, database)
	submissionPipeline := newTestPipeline(t, database, mailer.Config{Enabled: false}, Config{})

	first, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	second, err := submissionPipeline.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	require.NotEqual(t, first.TicketID, second.TicketID)

	var emailLogCount int64
	require.NoError(t, database.Model(&model.EmailLog{}).Count(&emailLogCount).Error)
	require.EqualValues(t, 2, emailLogCount)
}
