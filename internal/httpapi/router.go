package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/httpapi/handlers"
	"github.com/suPer8Hu/creator-scout/internal/httpapi/middleware"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

func NewRouter(h *handlers.Handler, jwtSecret string, log *zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))

	// Chat (JWT required)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.PATCH("/chat/sessions/:session_id", h.RenameChatSession)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.POST("/chat/messages", h.SendChatMessage)

	// Tasks
	authGroup.GET("/tasks/:task_id", h.GetTask)
	authGroup.POST("/tasks/:task_id/stop", h.StopTask)
	for _, topic := range task.AllTopics {
		authGroup.POST(topic.Endpoint(), h.CreateTask(topic))
	}
	return r
}
