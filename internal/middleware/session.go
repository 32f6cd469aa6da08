package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-meet/engagement/internal/auth"
	"github.com/aura-meet/engagement/pkg/response"
)

const (
	// ContextMeetingID is the key for the session's meeting ID in gin context.
	ContextMeetingID = "meeting_id"
	// ContextFingerprint is the key for the visitor fingerprint in gin context.
	ContextFingerprint = "fingerprint"
)

// Session returns a middleware that validates a Bearer session token and
// sets the meeting claims in context. Guards mutating meeting endpoints.
func Session(sessions *auth.SessionService) gin.HandlerFunc {
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
		claims, err := sessions.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired session token")
			c.Abort()
			return
		}
		c.Set(ContextMeetingID, claims.MeetingID)
		c.Set(ContextFingerprint, claims.Fingerprint)
		c.Next()
	}
}
