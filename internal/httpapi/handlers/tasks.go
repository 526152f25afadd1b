package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/creator-scout/internal/common"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

const stoppedByUser = "stopped by user"

// loadOwnTask hides tasks of other users behind 404.
func (h *Handler) loadOwnTask(c *gin.Context, uid uint64) (*task.Task, bool) {
	t, err := h.Tasks.Store().FindByTaskID(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "task not found")
			return nil, false
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return nil, false
	}
	if t.UserID != uid {
		common.Fail(c, http.StatusNotFound, 40402, "task not found")
		return nil, false
	}
	return t, true
}

func (h *Handler) GetTask(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}
	t, okk := h.loadOwnTask(c, uid)
	if !okk {
		return
	}
	if !t.Status.Terminal() {
		h.ChatSvc.MarkPolling(c.Request.Context(), t.TaskID)
	}
	common.OK(c, t)
}

// StopTask fails a pending task at once and flags a running one for the
// worker, which fails it at its next stage boundary.
func (h *Handler) StopTask(c *gin.Context) {
	uid, okk := requireUser(c)
	if !okk {
		return
	}
	t, okk := h.loadOwnTask(c, uid)
	if !okk {
		return
	}
	ctx := c.Request.Context()
	log := logging.With(logging.WithTaskID(ctx, t.TaskID), h.Log)

	if t.Status.Terminal() {
		common.OK(c, gin.H{"taskId": t.TaskID, "status": t.Status, "stopRequested": false})
		return
	}

	if h.Stopper != nil {
		if err := h.Stopper.RequestStop(ctx, t.TaskID); err != nil {
			log.Error().Err(err).Msg("request stop failed")
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to request stop")
			return
		}
	}

	status := t.Status
	if t.Status == task.StatusPending {
		err := h.Tasks.Store().UpdateWithRetry(ctx, t.TaskID, task.Failed(stoppedByUser, time.Now()))
		switch {
		case err == nil:
			status = task.StatusFailed
			if done, ferr := h.Tasks.Store().FindByTaskID(ctx, t.TaskID); ferr == nil {
				if _, cerr := h.ChatSvc.CompleteTask(ctx, done); cerr != nil {
					log.Warn().Err(cerr).Msg("write stop to chat failed")
				}
			}
		case errors.Is(err, task.ErrInvalidTransition):
			// a worker picked it up meanwhile; the flag covers it
		default:
			log.Error().Err(err).Msg("fail pending task on stop")
		}
	}
	log.Info().Str("status", string(status)).Msg("task stop requested")
	common.OK(c, gin.H{"taskId": t.TaskID, "status": status, "stopRequested": true})
}

type createTaskReq struct {
	TaskID  string `json:"task_id" binding:"omitempty,max=64"`
	Query   string `json:"query" binding:"max=2000"`
	Profile string `json:"profile" binding:"max=512"`
}

// CreateTask serves the direct per-intent endpoints, e.g. POST /instagram/search.
func (h *Handler) CreateTask(topic task.Topic) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, okk := requireUser(c)
		if !okk {
			return
		}
		var req createTaskReq
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}

		var in task.Input
		if topic.IsSearch() {
			in.Query = strings.TrimSpace(req.Query)
			if in.Query == "" {
				common.Fail(c, http.StatusBadRequest, 10002, "query required")
				return
			}
		} else {
			u, ok := discovery.CanonicalProfileURL(topic.Platform(), req.Profile)
			if !ok {
				common.Fail(c, http.StatusBadRequest, 10002, "valid profile required")
				return
			}
			in.Profile = u
		}

		ctx := c.Request.Context()
		if req.TaskID != "" {
			if _, err := h.Tasks.Store().FindByTaskID(ctx, req.TaskID); err == nil {
				common.Fail(c, http.StatusConflict, 40901, "task already exists")
				return
			}
		}

		t := &task.Task{TaskID: req.TaskID, UserID: uid, Topic: topic}
		if err := t.SetInput(in); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		if err := h.Tasks.Submit(ctx, t); err != nil {
			logging.With(ctx, h.Log).Error().Err(err).Str("task_id", t.TaskID).Msg("create task failed")
			common.Fail(c, http.StatusInternalServerError, 50004, "failed to start task")
			return
		}
		common.OK(c, gin.H{"taskId": t.TaskID, "status": t.Status})
	}
}
