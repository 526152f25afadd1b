package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/creator-scout/internal/logging"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrMissingTaskID     = errors.New("task id is required")
)

type Store struct {
	db  *gorm.DB
	log *zerolog.Logger
}

func NewStore(db *gorm.DB, log *zerolog.Logger) *Store {
	return &Store{db: db, log: logging.OrNop(log)}
}

func NewTaskID() string { return uuid.NewString() }

// Create inserts the task as pending. It must run before the job is published.
func (s *Store) Create(ctx context.Context, t *Task) error {
	if t.TaskID == "" {
		return ErrMissingTaskID
	}
	t.Status = StatusPending
	t.Result = nil
	t.Error = nil
	t.StartedAt = nil
	t.CompletedAt = nil
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) FindByTaskID(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update applies p only if the row currently holds a legal predecessor of p.Status.
// A terminal row is never changed.
func (s *Store) Update(ctx context.Context, taskID string, p Patch) error {
	from, ok := predecessors[p.Status]
	if !ok {
		return fmt.Errorf("%w: to %q", ErrInvalidTransition, p.Status)
	}

	updates := map[string]any{"status": p.Status}
	if p.Result != nil {
		updates["result"] = *p.Result
	}
	if p.Error != nil {
		updates["error"] = *p.Error
	}
	if p.StartedAt != nil {
		updates["started_at"] = *p.StartedAt
	}
	if p.CompletedAt != nil {
		updates["completed_at"] = *p.CompletedAt
	}

	res := s.db.WithContext(ctx).Model(&Task{}).
		Where("task_id = ? AND status IN ?", taskID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	cur, err := s.FindByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, p.Status)
}

// UpdateWithRetry retries a failed store call once. Not-found and illegal
// transitions are returned as is.
func (s *Store) UpdateWithRetry(ctx context.Context, taskID string, p Patch) error {
	err := s.Update(ctx, taskID, p)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	s.log.Warn().Err(err).Str("task_id", taskID).Str("status", string(p.Status)).Msg("task update failed, retrying once")
	return s.Update(ctx, taskID, p)
}
