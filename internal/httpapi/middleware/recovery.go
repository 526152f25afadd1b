package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/logging"
)

// Recovery turns a handler panic into the JSON 500 envelope.
func Recovery(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logging.With(c.Request.Context(), log).Error().
					Interface("panic", p).
					Str("path", c.Request.URL.Path).
					Msg("handler panicked")
				common.AbortFail(c, http.StatusInternalServerError, 50001, "internal error")
			}
		}()
		c.Next()
	}
}
