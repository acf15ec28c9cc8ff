package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/MachineDeskLabs/qr_support_svc/internal/httpapi"
)

const (
	publicRouteHealth      = "/healthz"
	publicRouteSupportForm = "/support/form"
	publicRouteTickets     = "/api/tickets"

	adminRouteLogin     = "/admin/login"
	adminRouteLogout    = "/admin/logout"
	adminRouteDashboard = "/admin"

	adminAPIPrefix            = "/api/admin"
	adminAPIRouteMachines     = "/machines"
	adminAPIRouteMachineByID  = "/machines/:id"
	adminAPIRouteMachineQR    = "/machines/:id/qr"
	adminAPIRouteMachineQRPNG = "/machines/:id/qr.png"
	adminAPIRouteTickets      = "/tickets"
	adminAPIRouteTicketStatus = "/tickets/:id/status"
	adminAPIRouteTicketEmails = "/tickets/:id/emails"
	adminAPIRouteEmails       = "/emails"
	adminAPIRouteAudit        = "/audit"

	corsOriginWildcard    = "*"
	corsHeaderContentType = "Content-Type"
	corsPreflightMaxAge   = 12 * time.Hour
	httpMethodGet         = "GET"
	httpMethodOptions     = "OPTIONS"
	httpMethodPost        = "POST"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
	corsAllowOrigins   = []string{corsOriginWildcard}
)

func registerRoutes(
	router *gin.Engine,
	publicHandlers *httpapi.PublicHandlers,
	adminHandlers *httpapi.AdminHandlers,
	sessionStore sessions.Store,
) {
	publicCORS := cors.New(cors.Config{
		AllowOrigins:     corsAllowOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsPreflightMaxAge,
	})

	router.GET(publicRouteHealth, publicHandlers.Health)
	router.GET(publicRouteSupportForm, publicHandlers.ShowForm)

	publicGroup := router.Group("/")
	publicGroup.Use(publicCORS)
	publicGroup.POST(publicRouteTickets, publicHandlers.CreateTicket)

	router.GET(adminRouteLogin, adminHandlers.ShowLogin)
	router.POST(adminRouteLogin, adminHandlers.Login)

	adminWeb := router.Group("", httpapi.AdminSessionRequired(sessionStore))
	adminWeb.GET(adminRouteDashboard, adminHandlers.Dashboard)
	adminWeb.POST(adminRouteLogout, adminHandlers.Logout)

	adminAPI := router.Group(adminAPIPrefix, httpapi.AdminSessionRequired(sessionStore))
	adminAPI.POST(adminAPIRouteMachines, adminHandlers.CreateMachine)
	adminAPI.GET(adminAPIRouteMachines, adminHandlers.ListMachines)
	adminAPI.PATCH(adminAPIRouteMachineByID, adminHandlers.UpdateMachine)
	adminAPI.DELETE(adminAPIRouteMachineByID, adminHandlers.DeleteMachine)
	adminAPI.POST(adminAPIRouteMachineQR, adminHandlers.MintQRToken)
	adminAPI.GET(adminAPIRouteMachineQRPNG, adminHandlers.QRCodePNG)
	adminAPI.GET(adminAPIRouteTickets, adminHandlers.ListTickets)
	adminAPI.PATCH(adminAPIRouteTicketStatus, adminHandlers.UpdateTicketStatus)
	adminAPI.GET(adminAPIRouteTicketEmails, adminHandlers.ListTicketEmails)
	adminAPI.GET(adminAPIRouteEmails, adminHandlers.ListEmailLogs)
	adminAPI.GET(adminAPIRouteAudit, adminHandlers.ListAuditEvents)
}
