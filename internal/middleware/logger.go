package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
)

// loggerKey is the gin context key under which the request-scoped logger lives.
const loggerKey = "logger"

// quietPaths are hit by scrapes and probes every few seconds; completed-request
// lines for them drown out real traffic. Their handlers still receive a
// context logger so failures inside them are reported normally.
var quietPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// Logger attaches a request-scoped child logger carrying the request ID to
// the context and emits one structured line per completed request.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := log.WithRequestID(GetRequestID(c))
		c.Set(loggerKey, requestLogger)

		c.Next()

		if quietPaths[c.Request.URL.Path] {
			return
		}

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"bytes":       c.Writer.Size(),
			"ip":          c.ClientIP(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields["query"] = query
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			requestLogger.Error("Request completed with server error", nil, fields)
		case status >= 400:
			requestLogger.Warn("Request completed with client error", fields)
		default:
			requestLogger.Info("Request completed", fields)
		}
	}
}

// GetLogger returns the request-scoped logger set by Logger, or nil when the
// middleware did not run (handlers invoked directly in tests, for example).
func GetLogger(c *gin.Context) *logger.Logger {
	if v, exists := c.Get(loggerKey); exists {
		if requestLogger, ok := v.(*logger.Logger); ok {
			return requestLogger
		}
	}
	return nil
}
