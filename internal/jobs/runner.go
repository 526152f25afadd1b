package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/enrich"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/store/redisstore"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

var (
	ErrUnknownTopic    = errors.New("unknown task topic")
	ErrMissingInput    = errors.New("task input is missing")
	ErrProfileNotFound = errors.New("profile not found")
	ErrStopped         = errors.New("stopped by user")
)

// Coordinator guards against duplicate execution and carries stop requests.
// redisstore.Store satisfies it.
type Coordinator interface {
	TryLock(ctx context.Context, taskID string) (string, error)
	Unlock(ctx context.Context, taskID, token string) error
	IsStopped(ctx context.Context, taskID string) (bool, error)
}

// Completer writes the chat side of a finished task. chat.Service satisfies it.
type Completer interface {
	CompleteTask(ctx context.Context, t *task.Task) (*chat.Message, error)
}

// Runner executes one task per call. Coord and Completer are optional.
type Runner struct {
	Store     *task.Store
	Extractor discovery.Extractor
	Searcher  discovery.Searcher
	Fetcher   discovery.ProfileFetcher
	Evaluator enrich.Evaluator
	Sink      enrich.Sink
	Coord     Coordinator
	Completer Completer
	Log       *zerolog.Logger
}

// Handle runs the task and always leaves it terminal unless another delivery
// owns it. The returned error is for infrastructure failures only; the caller
// dead-letters the message on error and acks otherwise.
func (r *Runner) Handle(ctx context.Context, taskID string) (err error) {
	ctx = logging.WithTaskID(ctx, taskID)
	log := logging.With(ctx, r.Log)
	start := time.Now()

	if r.Coord != nil {
		token, lerr := r.Coord.TryLock(ctx, taskID)
		switch {
		case errors.Is(lerr, redisstore.ErrLocked):
			log.Info().Msg("task already being processed, skipping duplicate delivery")
			return nil
		case lerr != nil:
			log.Warn().Err(lerr).Msg("task lock unavailable, relying on guarded transitions")
		default:
			defer func() {
				if uerr := r.Coord.Unlock(context.WithoutCancel(ctx), taskID, token); uerr != nil {
					log.Warn().Err(uerr).Msg("task unlock failed")
				}
			}()
		}
	}

	t, err := r.Store.FindByTaskID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}
	if t.Status != task.StatusPending {
		log.Info().Str("status", string(t.Status)).Msg("task is not pending, skipping")
		return nil
	}

	if err := r.Store.UpdateWithRetry(ctx, taskID, task.Running(time.Now())); err != nil {
		if errors.Is(err, task.ErrInvalidTransition) {
			log.Info().Msg("task claimed by another worker")
			return nil
		}
		metrics.IncTaskStoreError("running")
		return fmt.Errorf("mark task running: %w", err)
	}
	setupCost := time.Since(start)

	var result string
	var runErr error
	func() {
		// outermost isolation: a panic fails the task instead of the worker
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Msg("task handler panicked")
				runErr = fmt.Errorf("internal error: %v", p)
			}
		}()
		result, runErr = r.run(ctx, t)
	}()
	runCost := time.Since(start) - setupCost

	r.finish(context.WithoutCancel(ctx), log, t, result, runErr)

	total := time.Since(start)
	metrics.ObserveTaskDuration(string(t.Topic), total.Seconds())
	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("topic", string(t.Topic)).
		Dur("setup", setupCost).
		Dur("run", runCost).
		Dur("total", total).
		Msg("job_timing")
	return nil
}

func (r *Runner) run(ctx context.Context, t *task.Task) (string, error) {
	in, err := t.DecodeInput()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingInput, err)
	}
	switch t.Topic {
	case task.TopicInstagramSearch, task.TopicTikTokSearch:
		return r.runSearch(ctx, t, in)
	case task.TopicInstagramAnalysis, task.TopicTikTokAnalysis:
		return r.runAnalysis(ctx, t, in)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, t.Topic)
	}
}

func (r *Runner) finish(ctx context.Context, log *zerolog.Logger, t *task.Task, result string, runErr error) {
	now := time.Now()
	patch := task.Completed(result, now)
	status := task.StatusCompleted
	if runErr != nil {
		patch = task.Failed(runErr.Error(), now)
		status = task.StatusFailed
	}
	metrics.IncTaskProcessed(string(t.Topic), string(status))

	if err := r.Store.UpdateWithRetry(ctx, t.TaskID, patch); err != nil {
		metrics.IncTaskStoreError("finish")
		log.Error().Err(err).Str("status", string(status)).Msg("write terminal task status failed")
		return
	}
	if r.Completer == nil {
		return
	}

	done, err := r.Store.FindByTaskID(ctx, t.TaskID)
	if err != nil {
		log.Error().Err(err).Msg("reload finished task failed")
		return
	}
	if _, err := r.Completer.CompleteTask(ctx, done); err != nil {
		log.Error().Err(err).Msg("write task completion to chat failed")
	}
}

// checkpoint fails the run when a stop was requested for the task.
func (r *Runner) checkpoint(taskID string) func(ctx context.Context, stage string) error {
	return func(ctx context.Context, stage string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Coord == nil {
			return nil
		}
		stopped, err := r.Coord.IsStopped(ctx, taskID)
		if err != nil {
			logging.With(ctx, r.Log).Warn().Err(err).Str("stage", stage).Msg("stop flag check failed")
			return nil
		}
		if stopped {
			return ErrStopped
		}
		return nil
	}
}
