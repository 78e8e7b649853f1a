package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"whatsapp-campaigns/pkg/logger"
)

// LoggerConfig contains logger middleware configuration
type LoggerConfig struct {
	SkipPaths []string
}

// RequestLogger logs HTTP requests with detailed information
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return RequestLoggerWithConfig(log, LoggerConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/favicon.ico",
		},
	})
}

// RequestLoggerWithConfig creates a logger middleware with custom config
func RequestLoggerWithConfig(log *logger.Logger, config LoggerConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		// Skip logging for certain paths
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		statusCode := c.Writer.Status()
		zl := log.Zerolog()

		var event *zerolog.Event
		switch {
		case statusCode >= 500:
			event = zl.Error()
		case statusCode >= 400:
			event = zl.Warn()
		default:
			event = zl.Info()
		}

		event = event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", statusCode).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Str("client_ip", GetClientIP(c)).
			Str("user_agent", c.Request.UserAgent())

		if tenant, ok := GetTenant(c); ok {
			event = event.Str("tenant", tenant)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)

		c.Next()
	}
}

// Recovery converts panics into 500 responses and logs them
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(500, gin.H{"success": false, "error": "Internal server error"})
	})
}
