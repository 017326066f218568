package middleware

import (
	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey    = "auth_claims"
	UserIDKey    = "user_id"
	RequestIDKey = "request_id"
)

// UserID returns the authenticated user id set by the bearer gate.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*auth.Claims)
	return cl, ok
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
