package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
	"github.com/MachineDeskLabs/qr_support_svc/internal/pipeline"
	"github.com/MachineDeskLabs/qr_support_svc/internal/testutil"
)

const (
	testPublicMachineSerial = "FL-002"
	testPublicMachineType   = "forklift"
	testPublicMachineLabel  = "Warehouse B forklift"
	testPublicOperatorName  = "J. Doe"
	testPublicOperatorPhone = "555-0100"
	testPublicSummary       = "Hydraulic leak near the mast"

	ticketsPath      = "/api/tickets"
	supportFormRoute = "/support/form"
	healthzPath      = "/healthz"
	contentTypeForm  = "application/x-www-form-urlencoded"
)

func newPublicTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *PublicHandlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := testutil.OpenMigratedDatabase(t)
	logger := zap.NewNop()
	dispatcher := mailer.NewDispatcher(mailer.Config{OutboxDirectory: t.TempDir()}, logger)
	submissionPipeline := pipeline.New(database, logger, dispatcher, pipeline.Config{
		SupportRecipient: "support@example.com",
	})

	handlers := NewPublicHandlers(database, logger, submissionPipeline)
	router := gin.New()
	router.GET(supportFormRoute, handlers.ShowForm)
	router.POST(ticketsPath, handlers.CreateTicket)
	router.GET(healthzPath, handlers.Health)
	return router, database, handlers
}

func seedPublicMachine(t *testing.T, database *gorm.DB) model.Machine {
	t.Helper()
	machine, machineErr := model.NewMachine(model.MachineInput{
		Serial: testPublicMachineSerial,
		Type:   testPublicMachineType,
		Label:  testPublicMachineLabel,
	})
	require.NoError(t, machineErr)
	require.NoError(t, database.Create(&machine).Error)
	return machine
}

func ticketFormValues() url.Values {
	return url.Values{
		"machine_type":   {testPublicMachineType},
		"machine_serial": {testPublicMachineSerial},
		"operator_name":  {testPublicOperatorName},
		"operator_phone": {testPublicOperatorPhone},
		"summary":        {testPublicSummary},
	}
}

func postForm(router *gin.Engine, path string, values url.Values) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	request.Header.Set("Content-Type", contentTypeForm)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestCreateTicketPersistsAndReturnsOK(t *testing.T) {
	router, database, _ := newPublicTestRouter(t)
	seedPublicMachine(t, database)

	recorder := postForm(router, ticketsPath, ticketFormValues())
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), statusValueOK)

	var tickets []model.Ticket
	require.NoError(t, database.Find(&tickets).Error)
	require.Len(t, tickets, 1)
	require.Equal(t, testPublicOperatorName, tickets[0].OperatorName)
	require.Equal(t, model.TicketStatusNew, tickets[0].Status)
}

func TestCreateTicketRejectsMissingSummary(t *testing.T) {
	router, database, _ := newPublicTestRouter(t)
	seedPublicMachine(t, database)

	values := ticketFormValues()
	values.Set("summary", "")
	recorder := postForm(router, ticketsPath, values)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), errorValueInvalidSubmission)

	var ticketCount int64
	require.NoError(t, database.Model(&model.Ticket{}).Count(&ticketCount).Error)
	require.Zero(t, ticketCount)
}

func TestCreateTicketRejectsUnknownMachine(t *testing.T) {
	router, _, _ := newPublicTestRouter(t)

	recorder := postForm(router, ticketsPath, ticketFormValues())
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Contains(t, recorder.Body.String(), errorValueUnknownMachine)
}

func TestCreateTicketSwallowsHoneypotSubmissions(t *testing.T) {
	router, database, _ := newPublicTestRouter(t)
	seedPublicMachine(t, database)

	values := ticketFormValues()
	values.Set("website", "https://spam.example.com")
	recorder := postForm(router, ticketsPath, values)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), statusValueOK)

	var ticketCount int64
	require.NoError(t, database.Model(&model.Ticket{}).Count(&ticketCount).Error)
	require.Zero(t, ticketCount)
}

func TestCreateTicketRateLimitsPerIP(t *testing.T) {
	router, database, handlers := newPublicTestRouter(t)
	seedPublicMachine(t, database)
	handlers.maxRequestsPerIPPerWindow = 2

	var lastCode int
	for attempt := 0; attempt < 3; attempt++ {
		recorder := postForm(router, ticketsPath, ticketFormValues())
		lastCode = recorder.Code
	}
	require.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestShowFormPrefillsFromQRToken(t *testing.T) {
	router, database, _ := newPublicTestRouter(t)
	machine := seedPublicMachine(t, database)

	qrToken, tokenErr := model.NewQRToken(machine.ID, 0)
	require.NoError(t, tokenErr)
	require.NoError(t, database.Create(&qrToken).Error)

	request := httptest.NewRequest(http.MethodGet, supportFormRoute+"?t="+qrToken.Token, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(t, body, testPublicMachineSerial)
	require.Contains(t, body, testPublicMachineType)
	require.Contains(t, body, "readonly")
}

func TestShowFormIgnoresExpiredQRToken(t *testing.T) {
	router, database, _ := newPublicTestRouter(t)
	machine := seedPublicMachine(t, database)

	qrToken, tokenErr := model.NewQRToken(machine.ID, 0)
	require.NoError(t, tokenErr)
	expiredAt := time.Now().UTC().Add(-time.Hour)
	qrToken.ExpiresAt = &expiredAt
	require.NoError(t, database.Create(&qrToken).Error)

	request := httptest.NewRequest(http.MethodGet, supportFormRoute+"?t="+qrToken.Token, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotContains(t, recorder.Body.String(), "readonly")
}

func TestShowFormPrefillsFromQueryParameters(t *testing.T) {
	router, _, _ := newPublicTestRouter(t)

	request := httptest.NewRequest(http.MethodGet,
		supportFormRoute+"?machine_type=crane&machine_serial=CR-009", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(t, body, "CR-009")
	require.Contains(t, body, "crane")
}

func TestHealthReportsOK(t *testing.T) {
	router, _, _ := newPublicTestRouter(t)

	request := httptest.NewRequest(http.MethodGet, healthzPath, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), statusValueOK)
}
