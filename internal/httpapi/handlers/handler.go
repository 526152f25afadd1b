package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/httpapi/middleware"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

// Stopper records cooperative stop requests. redisstore.Store satisfies it.
type Stopper interface {
	RequestStop(ctx context.Context, taskID string) error
}

type Handler struct {
	ChatSvc *chat.Service
	Tasks   *task.Dispatcher
	Stopper Stopper
	Log     *zerolog.Logger
}

func NewHandler(chatSvc *chat.Service, tasks *task.Dispatcher, stopper Stopper, log *zerolog.Logger) *Handler {
	return &Handler{ChatSvc: chatSvc, Tasks: tasks, Stopper: stopper, Log: logging.OrNop(log)}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// requireUser writes 401 when the auth middleware did not run.
func requireUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}
