package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cafe-robusta/backend/internal/auth"
	"github.com/cafe-robusta/backend/pkg/response"
)

// ContextSessionID is the key for the registration session ID in gin context.
const ContextSessionID = "session_id"

// Session returns a middleware that validates the session token and sets
// the session ID in context.
func Session(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		sessionID, err := tokens.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired session token")
			c.Abort()
			return
		}
		c.Set(ContextSessionID, sessionID)
		c.Next()
	}
}
