package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
	"github.com/MachineDeskLabs/qr_support_svc/internal/storage"
)

const (
	errorValueInvalidCredentials = "invalid_credentials"
	errorValueTooManyAttempts    = "too_many_attempts"
	errorValueMachineExists      = "machine_exists"
	errorValueMachineHasTickets  = "machine_has_tickets"
	errorValueUnknownTicket      = "unknown_ticket"
	errorValueInvalidStatus      = "invalid_status"
	errorValueNothingToUpdate    = "nothing_to_update"
	errorValueQueryFailed        = "query_failed"
	errorValueDeleteFailed       = "delete_failed"
	errorValueQRGenerationFailed = "qr_generation_failed"

	actionAdminLoginSuccess   = "admin.login.success"
	actionAdminLoginFailure   = "admin.login.failure"
	actionAdminLoginLockout   = "admin.login.lockout"
	actionAdminLogout         = "admin.logout"
	actionMachineCreated      = "machine.created"
	actionMachineUpdated      = "machine.updated"
	actionMachineDeleted      = "machine.deleted"
	actionQRTokenMinted       = "qr_token.minted"
	actionTicketStatusChanged = "ticket.status_changed"

	auditActorPrefix = "admin:"

	supportFormPath      = "/support/form"
	qrTokenQueryPattern  = "?t="
	qrImageSizePixels    = 256
	contentTypePNG       = "image/png"
	ticketListLimit      = 500
	emailLogListLimit    = 500
	auditListLimit       = 200
	dateOnlyHoursInDay   = 24
	timeFilterDateLayout = "2006-01-02"

	logEventAdminQueryFailed = "admin_query_failed"
	logEventAdminSaveFailed  = "admin_save_failed"
)

// Credentials is the configured admin credential pair. PasswordHash is a
// bcrypt hash, never a plaintext password.
type Credentials struct {
	Username     string
	PasswordHash string
}

// AdminHandlers serves the admin portal: login, machine management, QR code
// issuance, and ticket/email-log/audit review.
type AdminHandlers struct {
	database      *gorm.DB
	logger        *zap.Logger
	sessionStore  sessions.Store
	credentials   Credentials
	loginLimiter  *loginLimiter
	publicBaseURL string
}

// NewAdminHandlers builds the admin handler set.
func NewAdminHandlers(database *gorm.DB, logger *zap.Logger, sessionStore sessions.Store, credentials Credentials, publicBaseURL string) *AdminHandlers {
	return &AdminHandlers{
		database:      database,
		logger:        logger,
		sessionStore:  sessionStore,
		credentials:   credentials,
		loginLimiter:  newLoginLimiter(),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type createMachineRequest struct {
	Serial string `form:"serial" json:"serial"`
	Type   string `form:"type" json:"type"`
	Label  string `form:"label" json:"label"`
}

type updateMachineRequest struct {
	Serial *string `json:"serial"`
	Type   *string `json:"type"`
	Label  *string `json:"label"`
}

type updateTicketStatusRequest struct {
	Status string `form:"status" json:"status"`
}

type machineResponse struct {
	ID          string `json:"id"`
	Serial      string `json:"serial"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	TicketCount int64  `json:"ticket_count"`
	CreatedAt   int64  `json:"created_at"`
}

type ticketResponse struct {
	ID            string `json:"id"`
	MachineID     string `json:"machine_id"`
	OperatorName  string `json:"operator_name"`
	OperatorPhone string `json:"operator_phone"`
	Summary       string `json:"summary"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"created_at"`
}

type emailLogResponse struct {
	ID                string `json:"id"`
	TicketID          string `json:"ticket_id"`
	ToAddress         string `json:"to_address"`
	Subject           string `json:"subject"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"provider_message_id"`
	Error             string `json:"error"`
	PayloadHash       string `json:"payload_hash"`
	CreatedAt         int64  `json:"created_at"`
}

type auditEventResponse struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Note       string `json:"note"`
	CreatedAt  int64  `json:"created_at"`
}

type mintQRTokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type adminDashboardView struct {
	AdminUser        string
	MachineCount     int64
	NewTicketCount   int64
	OpenTicketCount  int64
	FailedEmailCount int64
}

// ShowLogin renders the login page.
func (handlers *AdminHandlers) ShowLogin(context *gin.Context) {
	context.Status(http.StatusOK)
	context.Header("Content-Type", "text/html; charset=utf-8")
	_ = adminLoginTemplate.Execute(context.Writer, nil)
}

// Login authenticates the configured admin credential pair, throttled per
// client IP.
func (handlers *AdminHandlers) Login(context *gin.Context) {
	clientIP := context.ClientIP()

	allowed, retryAfter := handlers.loginLimiter.Allow(clientIP)
	if !allowed {
		handlers.appendAuditEvent(context, clientIP, actionAdminLoginLockout, "session", "", retryAfter.String())
		context.JSON(http.StatusTooManyRequests, gin.H{"error": errorValueTooManyAttempts})
		return
	}

	var payload loginRequest
	if bindErr := context.ShouldBind(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidPayload})
		return
	}

	if !handlers.credentialsMatch(payload.Username, payload.Password) {
		handlers.loginLimiter.RecordFailure(clientIP)
		handlers.appendAuditEvent(context, payload.Username, actionAdminLoginFailure, "session", "", clientIP)
		context.JSON(http.StatusUnauthorized, gin.H{"error": errorValueInvalidCredentials})
		return
	}

	handlers.loginLimiter.RecordSuccess(clientIP)

	session, _ := handlers.sessionStore.Get(context.Request, adminSessionName)
	session.Values[sessionKeyAdminUser] = handlers.credentials.Username
	if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	handlers.appendAuditEvent(context, handlers.credentials.Username, actionAdminLoginSuccess, "session", "", clientIP)
	context.JSON(http.StatusOK, gin.H{"status": statusValueOK})
}

func (handlers *AdminHandlers) credentialsMatch(username string, password string) bool {
	normalizedProvided := strings.ToLower(strings.TrimSpace(username))
	normalizedConfigured := strings.ToLower(strings.TrimSpace(handlers.credentials.Username))
	if normalizedProvided != normalizedConfigured {
		return false
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(handlers.credentials.PasswordHash), []byte(password))
	return compareErr == nil
}

// Logout drops the admin session.
func (handlers *AdminHandlers) Logout(context *gin.Context) {
	adminUser, _ := AdminUserFromContext(context)

	session, _ := handlers.sessionStore.Get(context.Request, adminSessionName)
	session.Options.MaxAge = -1
	_ = session.Save(context.Request, context.Writer)

	handlers.appendAuditEvent(context, adminUser, actionAdminLogout, "session", "", "")
	context.JSON(http.StatusOK, gin.H{"status": statusValueOK})
}

// Dashboard renders the admin landing page with operational counts.
func (handlers *AdminHandlers) Dashboard(context *gin.Context) {
	adminUser, _ := AdminUserFromContext(context)
	requestContext := context.Request.Context()

	view := adminDashboardView{AdminUser: adminUser}
	handlers.database.WithContext(requestContext).Model(&model.Machine{}).Count(&view.MachineCount)
	handlers.database.WithContext(requestContext).Model(&model.Ticket{}).
		Where("status = ?", model.TicketStatusNew).Count(&view.NewTicketCount)
	handlers.database.WithContext(requestContext).Model(&model.Ticket{}).
		Where("status = ?", model.TicketStatusOpen).Count(&view.OpenTicketCount)
	handlers.database.WithContext(requestContext).Model(&model.EmailLog{}).
		Where("status = ? AND created_at >= ?", mailer.StatusFailed, time.Now().UTC().Add(-dateOnlyHoursInDay*time.Hour)).
		Count(&view.FailedEmailCount)

	context.Status(http.StatusOK)
	context.Header("Content-Type", "text/html; charset=utf-8")
	_ = adminDashboardTemplate.Execute(context.Writer, view)
}

// CreateMachine registers a machine.
func (handlers *AdminHandlers) CreateMachine(context *gin.Context) {
	var payload createMachineRequest
	if bindErr := context.ShouldBind(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidPayload})
		return
	}

	machine, machineErr := model.NewMachine(model.MachineInput{
		Serial: payload.Serial,
		Type:   payload.Type,
		Label:  payload.Label,
	})
	if machineErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidSubmission})
		return
	}

	var existingCount int64
	handlers.database.WithContext(context.Request.Context()).Model(&model.Machine{}).
		Where("serial = ?", machine.Serial).Count(&existingCount)
	if existingCount > 0 {
		context.JSON(http.StatusConflict, gin.H{"error": errorValueMachineExists})
		return
	}

	if createErr := handlers.database.WithContext(context.Request.Context()).Create(&machine).Error; createErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(createErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	handlers.appendAdminAudit(context, actionMachineCreated, "machine", machine.ID, machine.Serial)
	context.JSON(http.StatusOK, handlers.machineToResponse(context, machine))
}

// ListMachines returns all machines with their ticket counts.
func (handlers *AdminHandlers) ListMachines(context *gin.Context) {
	var machines []model.Machine
	if queryErr := handlers.database.WithContext(context.Request.Context()).
		Order("created_at desc").Find(&machines).Error; queryErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	responses := make([]machineResponse, 0, len(machines))
	for _, machine := range machines {
		responses = append(responses, handlers.machineToResponse(context, machine))
	}
	context.JSON(http.StatusOK, gin.H{"machines": responses})
}

// UpdateMachine applies partial updates to a machine.
func (handlers *AdminHandlers) UpdateMachine(context *gin.Context) {
	machineID := context.Param("id")

	var machine model.Machine
	if lookupErr := handlers.database.WithContext(context.Request.Context()).
		First(&machine, "id = ?", machineID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownMachine})
		return
	}

	var payload updateMachineRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidPayload})
		return
	}
	if payload.Serial == nil && payload.Type == nil && payload.Label == nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueNothingToUpdate})
		return
	}

	if payload.Serial != nil {
		machine.Serial = *payload.Serial
	}
	if payload.Type != nil {
		machine.Type = *payload.Type
	}
	if payload.Label != nil {
		machine.Label = *payload.Label
	}

	validated, validateErr := model.NewMachine(model.MachineInput{
		Serial: machine.Serial,
		Type:   machine.Type,
		Label:  machine.Label,
	})
	if validateErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidSubmission})
		return
	}
	machine.Serial = validated.Serial
	machine.Type = validated.Type
	machine.Label = validated.Label

	if saveErr := handlers.database.WithContext(context.Request.Context()).Save(&machine).Error; saveErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	handlers.appendAdminAudit(context, actionMachineUpdated, "machine", machine.ID, machine.Serial)
	context.JSON(http.StatusOK, handlers.machineToResponse(context, machine))
}

// DeleteMachine removes a machine that has no tickets. Machines referenced by
// tickets are never deleted.
func (handlers *AdminHandlers) DeleteMachine(context *gin.Context) {
	machineID := context.Param("id")
	requestContext := context.Request.Context()

	var machine model.Machine
	if lookupErr := handlers.database.WithContext(requestContext).
		First(&machine, "id = ?", machineID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownMachine})
		return
	}

	var ticketCount int64
	handlers.database.WithContext(requestContext).Model(&model.Ticket{}).
		Where("machine_id = ?", machine.ID).Count(&ticketCount)
	if ticketCount > 0 {
		context.JSON(http.StatusConflict, gin.H{"error": errorValueMachineHasTickets})
		return
	}

	if deleteErr := handlers.database.WithContext(requestContext).
		Where("machine_id = ?", machine.ID).Delete(&model.QRToken{}).Error; deleteErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(deleteErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueDeleteFailed})
		return
	}
	if deleteErr := handlers.database.WithContext(requestContext).Delete(&machine).Error; deleteErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(deleteErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueDeleteFailed})
		return
	}

	handlers.appendAdminAudit(context, actionMachineDeleted, "machine", machine.ID, machine.Serial)
	context.JSON(http.StatusOK, gin.H{"status": statusValueOK})
}

// MintQRToken issues a fresh QR token for a machine.
func (handlers *AdminHandlers) MintQRToken(context *gin.Context) {
	machineID := context.Param("id")

	var machine model.Machine
	if lookupErr := handlers.database.WithContext(context.Request.Context()).
		First(&machine, "id = ?", machineID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownMachine})
		return
	}

	qrToken, tokenErr := model.NewQRToken(machine.ID, 0)
	if tokenErr != nil {
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}
	if createErr := handlers.database.WithContext(context.Request.Context()).Create(&qrToken).Error; createErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(createErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	handlers.appendAdminAudit(context, actionQRTokenMinted, "machine", machine.ID, machine.Serial)
	context.JSON(http.StatusOK, mintQRTokenResponse{
		Token: qrToken.Token,
		URL:   handlers.supportFormURL(qrToken.Token),
	})
}

// QRCodePNG renders the machine's current QR token as a PNG image, minting a
// token on first use.
func (handlers *AdminHandlers) QRCodePNG(context *gin.Context) {
	machineID := context.Param("id")
	requestContext := context.Request.Context()

	var machine model.Machine
	if lookupErr := handlers.database.WithContext(requestContext).
		First(&machine, "id = ?", machineID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownMachine})
		return
	}

	var qrToken model.QRToken
	lookupErr := handlers.database.WithContext(requestContext).
		Where("machine_id = ?", machine.ID).
		Order("created_at desc").
		First(&qrToken).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		minted, tokenErr := model.NewQRToken(machine.ID, 0)
		if tokenErr != nil {
			context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
			return
		}
		if createErr := handlers.database.WithContext(requestContext).Create(&minted).Error; createErr != nil {
			handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(createErr))
			context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
			return
		}
		qrToken = minted
	} else if lookupErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(lookupErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	pngBytes, encodeErr := qrcode.Encode(handlers.supportFormURL(qrToken.Token), qrcode.Medium, qrImageSizePixels)
	if encodeErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(encodeErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQRGenerationFailed})
		return
	}

	context.Data(http.StatusOK, contentTypePNG, pngBytes)
}

// ListTickets returns tickets filtered by optional status and date range.
func (handlers *AdminHandlers) ListTickets(context *gin.Context) {
	query := handlers.database.WithContext(context.Request.Context()).Model(&model.Ticket{})

	if status := strings.TrimSpace(context.Query("status")); status != "" {
		if statusErr := model.ValidateTicketStatus(status); statusErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidStatus})
			return
		}
		query = query.Where("status = ?", status)
	}
	query = applyTimeRangeFilters(query, context.Query("from"), context.Query("to"))

	var tickets []model.Ticket
	if queryErr := query.Order("created_at desc").Limit(ticketListLimit).Find(&tickets).Error; queryErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	responses := make([]ticketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		responses = append(responses, ticketToResponse(ticket))
	}
	context.JSON(http.StatusOK, gin.H{"tickets": responses})
}

// UpdateTicketStatus moves a ticket through its lifecycle.
func (handlers *AdminHandlers) UpdateTicketStatus(context *gin.Context) {
	ticketID := context.Param("id")

	var payload updateTicketStatusRequest
	if bindErr := context.ShouldBind(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidPayload})
		return
	}
	if statusErr := model.ValidateTicketStatus(payload.Status); statusErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidStatus})
		return
	}

	var ticket model.Ticket
	if lookupErr := handlers.database.WithContext(context.Request.Context()).
		First(&ticket, "id = ?", ticketID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownTicket})
		return
	}

	previousStatus := ticket.Status
	ticket.Status = payload.Status
	if saveErr := handlers.database.WithContext(context.Request.Context()).Save(&ticket).Error; saveErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	handlers.appendAdminAudit(context, actionTicketStatusChanged, "ticket", ticket.ID, previousStatus+" -> "+ticket.Status)
	context.JSON(http.StatusOK, ticketToResponse(ticket))
}

// ListTicketEmails returns the email log rows for one ticket.
func (handlers *AdminHandlers) ListTicketEmails(context *gin.Context) {
	ticketID := context.Param("id")
	requestContext := context.Request.Context()

	var ticket model.Ticket
	if lookupErr := handlers.database.WithContext(requestContext).
		First(&ticket, "id = ?", ticketID).Error; lookupErr != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownTicket})
		return
	}

	var emailLogs []model.EmailLog
	if queryErr := handlers.database.WithContext(requestContext).
		Where("ticket_id = ?", ticket.ID).
		Order("created_at asc").
		Find(&emailLogs).Error; queryErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	responses := make([]emailLogResponse, 0, len(emailLogs))
	for _, emailLog := range emailLogs {
		responses = append(responses, emailLogToResponse(emailLog))
	}
	context.JSON(http.StatusOK, gin.H{"ticket_id": ticket.ID, "emails": responses})
}

// ListEmailLogs returns email log rows filtered by optional status and date
// range.
func (handlers *AdminHandlers) ListEmailLogs(context *gin.Context) {
	query := handlers.database.WithContext(context.Request.Context()).Model(&model.EmailLog{})
	if status := strings.TrimSpace(context.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	query = applyTimeRangeFilters(query, context.Query("from"), context.Query("to"))

	var emailLogs []model.EmailLog
	if queryErr := query.Order("created_at desc").Limit(emailLogListLimit).Find(&emailLogs).Error; queryErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	responses := make([]emailLogResponse, 0, len(emailLogs))
	for _, emailLog := range emailLogs {
		responses = append(responses, emailLogToResponse(emailLog))
	}
	context.JSON(http.StatusOK, gin.H{"emails": responses})
}

// ListAuditEvents returns the most recent audit events.
func (handlers *AdminHandlers) ListAuditEvents(context *gin.Context) {
	var auditEvents []model.AuditEvent
	if queryErr := handlers.database.WithContext(context.Request.Context()).
		Order("created_at desc").
		Limit(auditListLimit).
		Find(&auditEvents).Error; queryErr != nil {
		handlers.logger.Warn(logEventAdminQueryFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueQueryFailed})
		return
	}

	responses := make([]auditEventResponse, 0, len(auditEvents))
	for _, auditEvent := range auditEvents {
		responses = append(responses, auditEventResponse{
			ID:         auditEvent.ID,
			Actor:      auditEvent.Actor,
			Action:     auditEvent.Action,
			EntityType: auditEvent.EntityType,
			EntityID:   auditEvent.EntityID,
			Note:       auditEvent.Note,
			CreatedAt:  auditEvent.CreatedAt.Unix(),
		})
	}
	context.JSON(http.StatusOK, gin.H{"events": responses})
}

func (handlers *AdminHandlers) machineToResponse(context *gin.Context, machine model.Machine) machineResponse {
	var ticketCount int64
	handlers.database.WithContext(context.Request.Context()).Model(&model.Ticket{}).
		Where("machine_id = ?", machine.ID).Count(&ticketCount)
	return machineResponse{
		ID:          machine.ID,
		Serial:      machine.Serial,
		Type:        machine.Type,
		Label:       machine.Label,
		TicketCount: ticketCount,
		CreatedAt:   machine.CreatedAt.Unix(),
	}
}

func (handlers *AdminHandlers) supportFormURL(token string) string {
	return handlers.publicBaseURL + supportFormPath + qrTokenQueryPattern + token
}

func (handlers *AdminHandlers) appendAdminAudit(context *gin.Context, action string, entityType string, entityID string, note string) {
	adminUser, _ := AdminUserFromContext(context)
	handlers.appendAuditEvent(context, adminUser, action, entityType, entityID, note)
}

func (handlers *AdminHandlers) appendAuditEvent(context *gin.Context, actor string, action string, entityType string, entityID string, note string) {
	auditEvent := model.AuditEvent{
		ID:         storage.NewID(),
		Actor:      auditActorPrefix + actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Note:       note,
	}
	if saveErr := handlers.database.WithContext(context.Request.Context()).Create(&auditEvent).Error; saveErr != nil {
		handlers.logger.Warn(logEventAdminSaveFailed, zap.Error(saveErr))
	}
}

func ticketToResponse(ticket model.Ticket) ticketResponse {
	return ticketResponse{
		ID:            ticket.ID,
		MachineID:     ticket.MachineID,
		OperatorName:  ticket.OperatorName,
		OperatorPhone: ticket.OperatorPhone,
		Summary:       ticket.Summary,
		Status:        ticket.Status,
		CreatedAt:     ticket.CreatedAt.Unix(),
	}
}

func emailLogToResponse(emailLog model.EmailLog) emailLogResponse {
	return emailLogResponse{
		ID:                emailLog.ID,
		TicketID:          emailLog.TicketID,
		ToAddress:         emailLog.ToAddress,
		Subject:           emailLog.Subject,
		Status:            emailLog.Status,
		ProviderMessageID: emailLog.ProviderMessageID,
		Error:             emailLog.Error,
		PayloadHash:       emailLog.PayloadHash,
		CreatedAt:         emailLog.CreatedAt.Unix(),
	}
}

func applyTimeRangeFilters(query *gorm.DB, fromValue string, toValue string) *gorm.DB {
	if from := parseTimeFilter(fromValue); from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to := parseTimeFilter(toValue); to != nil {
		query = query.Where("created_at < ?", *to)
	}
	return query
}

func parseTimeFilter(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if parsed, parseErr := time.Parse(time.RFC3339, trimmed); parseErr == nil {
		return &parsed
	}
	if parsed, parseErr := time.Parse(timeFilterDateLayout, trimmed); parseErr == nil {
		return &parsed
	}
	return nil
}
