package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	adminSessionName    = "qr_admin_session"
	sessionKeyAdminUser = "admin_user"
	contextKeyAdminUser = "admin_user"

	errorValueNotAuthorized = "not_authorized"
)

// RequestLogger logs one line per request with method, path, status, and
// timing.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// AdminSessionRequired rejects requests without an authenticated admin
// session and exposes the admin username on the request context.
func AdminSessionRequired(sessionStore sessions.Store) gin.HandlerFunc {
	return func(context *gin.Context) {
		session, _ := sessionStore.Get(context.Request, adminSessionName)
		adminUser, hasUser := session.Values[sessionKeyAdminUser].(string)
		if !hasUser || adminUser == "" {
			context.AbortWithStatusJSON(401, gin.H{"error": errorValueNotAuthorized})
			return
		}
		context.Set(contextKeyAdminUser, adminUser)
		context.Next()
	}
}

// AdminUserFromContext returns the authenticated admin username, if any.
func AdminUserFromContext(context *gin.Context) (string, bool) {
	value, exists := context.Get(contextKeyAdminUser)
	if !exists {
		return "", false
	}
	adminUser, isString := value.(string)
	if !isString || adminUser == "" {
		return "", false
	}
	return adminUser, true
}
