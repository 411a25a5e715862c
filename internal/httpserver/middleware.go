package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/restclient"
)

const sessionCtxKey = "cart_session_id"

// requestLogger emits one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("http request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// bearerMiddleware forwards the caller's credential to backend calls.
func bearerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			c.Request = c.Request.WithContext(restclient.WithBearer(c.Request.Context(), token))
		}
		c.Next()
	}
}

func requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c.GetHeader("Authorization")) == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "bearer token required", nil)
			return
		}
		c.Next()
	}
}

func sessionMiddleware(sessions SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(sessionHeader))
		if token == "" {
			abortError(c, http.StatusUnauthorized, "missing_session", sessionHeader+" header required", nil)
			return
		}
		sessionID, err := sessions.Lookup(c.Request.Context(), token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid_session", "session expired or invalid", nil)
			return
		}
		c.Set(sessionCtxKey, sessionID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
