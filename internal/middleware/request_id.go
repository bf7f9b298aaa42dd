package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDKey is the gin context key under which the request ID is stored.
	RequestIDKey = "request_id"
	// RequestIDHeader carries the request ID on both requests and responses.
	RequestIDHeader = "X-Request-ID"

	// maxInboundIDLength caps how long a caller-supplied request ID may be
	// before it is replaced. The API is reachable from browsers, so inbound
	// header values cannot be assumed well-formed.
	maxInboundIDLength = 64
)

// RequestID tags every request with an ID used for log and error correlation.
// An X-Request-ID supplied by an upstream proxy is reused when it fits the
// length cap; otherwise a fresh UUID is issued. The ID is echoed on the
// response so clients can quote it when reporting problems.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxInboundIDLength {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)

		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID, or an empty string
// when the middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
