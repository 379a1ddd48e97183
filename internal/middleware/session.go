package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bandroomhq/bandroom/internal/auth"
)

// SessionSource reports the current session, nil when signed out. Satisfied by
// the passwordless session provider.
type SessionSource interface {
	Session() *auth.Session
}

// RequireSession rejects requests with 401 when no session is present. The
// gateway owns the session itself, so there is no token to validate per
// request; presence of a live provider session is the whole check.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions.Session() == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Sign in required",
			})
			return
		}
		c.Next()
	}
}
