package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by the middleware.
const (
	ContextMemberID = "member_id"
	ContextRoomID   = "room_id"
)

// Middleware validates the session token and puts the member and room ids in
// the request context. The token comes from the Authorization header or, for
// streaming endpoints where custom headers are awkward, the `token` query
// parameter.
func Middleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		claims, err := issuer.Validate(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		memberID, err := uuid.Parse(claims.MemberID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}
		roomID, err := uuid.Parse(claims.RoomID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(ContextMemberID, memberID)
		c.Set(ContextRoomID, roomID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return header
	}
	return c.Query("token")
}

// MemberID returns the authenticated member id from the request context.
func MemberID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextMemberID)
	memberID, _ := id.(uuid.UUID)
	return memberID
}
