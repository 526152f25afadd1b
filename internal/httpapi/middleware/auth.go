package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/creator-scout/internal/auth"
	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/logging"
)

const UserIDKey = "user_id"

// AuthRequired resolves the bearer JWT to a user id.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			common.AbortFail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		uid, err := auth.ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			common.AbortFail(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), uid))
		c.Next()
	}
}
