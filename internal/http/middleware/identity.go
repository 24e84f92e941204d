package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderUserID carries the authenticated user id set by the upstream
// gateway. Sessions and passwords are handled there.
const HeaderUserID = "X-User-ID"

const userIDKey = "userID"

// Identity copies a well-formed X-User-ID into the Gin context under
// "userID". Requests without the header stay anonymous; a malformed value
// is rejected with 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			c.Next()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			abortUnauthorized(c, "invalid "+HeaderUserID)
			return
		}
		c.Set(userIDKey, id.String())
		c.Next()
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// UserID returns the caller's id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
