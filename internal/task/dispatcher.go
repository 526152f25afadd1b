package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
)

// Publisher enqueues a job for a topic. rabbitmq.Publisher satisfies it.
type Publisher interface {
	PublishJob(ctx context.Context, topic, taskID string) error
}

type Dispatcher struct {
	store *Store
	pub   Publisher
	log   *zerolog.Logger
}

func NewDispatcher(store *Store, pub Publisher, log *zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, pub: pub, log: logging.OrNop(log)}
}

func (d *Dispatcher) Store() *Store { return d.store }

// Submit persists t as pending and then publishes its job. When publishing
// fails the task is marked failed so pollers see a terminal state.
func (d *Dispatcher) Submit(ctx context.Context, t *Task) error {
	if t.TaskID == "" {
		t.TaskID = NewTaskID()
	}
	if err := d.store.Create(ctx, t); err != nil {
		metrics.IncTaskStoreError("create")
		return fmt.Errorf("create task: %w", err)
	}

	if err := d.pub.PublishJob(ctx, string(t.Topic), t.TaskID); err != nil {
		metrics.IncTaskDispatched(string(t.Topic), "enqueue_failed")
		msg := "enqueue failed: " + err.Error()
		if uerr := d.store.UpdateWithRetry(ctx, t.TaskID, Failed(msg, time.Now())); uerr != nil {
			metrics.IncTaskStoreError("update")
			d.log.Error().Err(uerr).Str("task_id", t.TaskID).Msg("mark task failed after enqueue error")
		}
		return fmt.Errorf("enqueue task: %w", err)
	}

	metrics.IncTaskDispatched(string(t.Topic), "ok")
	d.log.Info().Str("task_id", t.TaskID).Str("topic", string(t.Topic)).Uint64("user_id", t.UserID).Msg("task dispatched")
	return nil
}
