package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/logging"
)

type createSessionReq struct {
	Title    string `json:"title" binding:"max=128"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}

	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid, req.Title, req.Provider, req.Model)
	if err != nil {
		logging.With(c.Request.Context(), h.Log).Error().Err(err).Msg("create session failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}
	sessions, err := h.ChatSvc.ListSessions(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list sessions")
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

type renameSessionReq struct {
	Title string `json:"title" binding:"required,max=128"`
}

func (h *Handler) RenameChatSession(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}
	sid, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil || sid == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}
	var req renameSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.ChatSvc.RenameSession(c.Request.Context(), uid, sid, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, sess)
}

// sendMessageReq: a missing or negative session_id starts a new session.
type sendMessageReq struct {
	SessionID int64  `json:"session_id"`
	Message   string `json:"message" binding:"required,max=8000"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	res, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		logging.With(c.Request.Context(), h.Log).Error().Err(err).Int64("session_id", req.SessionID).Msg("send message failed")
		common.Fail(c, http.StatusBadGateway, 50201, "failed to send message")
		return
	}
	common.OK(c, res)
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}

	sessionID, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil || sessionID == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeIDStr := c.Query("before_id")
	var beforeID uint64
	if beforeIDStr != "" {
		if n, err := strconv.ParseUint(beforeIDStr, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, sessionID, limit, beforeID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}
