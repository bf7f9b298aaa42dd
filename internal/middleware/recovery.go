package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
)

// Recovery turns handler panics into structured 500 responses instead of
// crashing the process. Map clients abort in-flight requests while panning,
// and a write to the dead socket surfaces as a panic; those are logged as
// disconnects and dropped without a response, since none can be written.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			requestLogger := GetLogger(c)
			if requestLogger == nil {
				requestLogger = log
			}

			if isClientDisconnect(r) {
				requestLogger.Warn("Client disconnected mid-response", map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  fmt.Sprint(r),
				})
				c.Abort()
				return
			}

			requestLogger.Error(
				"Panic recovered",
				fmt.Errorf("panic: %v", r),
				map[string]interface{}{
					"request_id": GetRequestID(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"route":      c.FullPath(),
					"stack":      string(debug.Stack()),
				},
			)

			// The errors package imports this one, so the envelope is
			// assembled by hand to keep the import graph acyclic.
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":       "INTERNAL_SERVER_ERROR",
					"message":    "An unexpected error occurred",
					"request_id": GetRequestID(c),
				},
			})
		}()

		c.Next()
	}
}

// isClientDisconnect reports whether a recovered panic value is a write to a
// closed connection, which net/http surfaces as a *net.OpError.
func isClientDisconnect(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var callErr *os.SyscallError
	if !errors.As(opErr.Err, &callErr) {
		return false
	}
	msg := strings.ToLower(callErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
