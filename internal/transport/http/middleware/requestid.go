package middleware

import (
	"github.com/ErlanBelekov/interview-genie/internal/requestid"
	"github.com/gin-gonic/gin"
)

const headerRequestID = "X-Request-ID"

// RequestID puts a request ID into the request context and the response
// header. A well-formed incoming X-Request-ID is kept; anything else is
// replaced with a fresh UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if !requestid.Accept(id) {
			id = requestid.New()
		}

		ctx := requestid.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, id)
		c.Next()
	}
}
