package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

// RequestInfo stores the caller's IP, user agent and Accept-Language in the
// request context so services can audit and localize without gin.
// Authenticate later adds the user.
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := audit.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Language:  c.GetHeader("Accept-Language"),
		}
		c.Request = c.Request.WithContext(audit.WithRequestInfo(c.Request.Context(), info))
		c.Next()
	}
}
