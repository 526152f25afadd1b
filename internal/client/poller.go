package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

type State string

const (
	StateIdle     State = "idle"
	StatePolling  State = "polling"
	StateResolved State = "resolved"
	StateTimedOut State = "timedOut"
	StateStopped  State = "stopped"
)

const DefaultInterval = 3 * time.Second

var (
	ErrAlreadyStarted  = errors.New("poller already started")
	ErrStopUnconfirmed = errors.New("task did not stop in time")
)

// CeilingFor is how long a task of platform is polled before giving up.
// TikTok scrapes run longer.
func CeilingFor(platform string) time.Duration {
	if platform == task.PlatformTikTok {
		return 35 * time.Minute
	}
	return 20 * time.Minute
}

type PollerConfig struct {
	Interval time.Duration
	// zero means CeilingFor(platform)
	Ceiling time.Duration
	// history refetches after a terminal status, waiting for the reply message
	RefetchAttempts int
	RefetchDelay    time.Duration
	// status checks after a stop request
	StopChecks     int
	StopCheckDelay time.Duration
}

func (c PollerConfig) withDefaults(platform string) PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Ceiling <= 0 {
		c.Ceiling = CeilingFor(platform)
	}
	if c.RefetchAttempts <= 0 {
		c.RefetchAttempts = 5
	}
	if c.RefetchDelay <= 0 {
		c.RefetchDelay = time.Second
	}
	if c.StopChecks <= 0 {
		c.StopChecks = 5
	}
	if c.StopCheckDelay <= 0 {
		c.StopCheckDelay = time.Second
	}
	return c
}

// Poller watches one task: idle -> polling -> resolved | timedOut | stopped.
type Poller struct {
	api       API
	view      *View
	log       *zerolog.Logger
	cfg       PollerConfig
	taskID    string
	sessionID int64

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	final  *task.Task
}

func NewPoller(api API, view *View, sessionID int64, taskID, platform string, cfg PollerConfig, log *zerolog.Logger) *Poller {
	return &Poller{
		api:       api,
		view:      view,
		log:       logging.OrNop(log),
		cfg:       cfg.withDefaults(platform),
		taskID:    taskID,
		sessionID: sessionID,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

func (p *Poller) TaskID() string { return p.taskID }

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Final is the terminal task seen by the poller, if any.
func (p *Poller) Final() *task.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.final
}

// Done is closed when the polling loop exits.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) transition(from, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != from {
		return false
	}
	p.state = to
	return true
}

// Start shows the placeholder under t and begins polling.
func (p *Poller) Start(ctx context.Context, t Ticket) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.state = StatePolling
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.view.SetActiveTask(p.sessionID, p.taskID)
	p.view.Append(t, Item{Role: chat.RoleAssistant, Content: PlaceholderText, TaskID: p.taskID, Local: true})
	go p.loop(ctx)
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ceiling := time.NewTimer(p.cfg.Ceiling)
	defer ceiling.Stop()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ceiling.C:
			p.timeout()
			return
		case <-ticker.C:
			tk, err := p.api.GetTask(ctx, p.taskID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn().Err(err).Str("task_id", p.taskID).Msg("poll task failed")
				continue
			}
			if !tk.Status.Terminal() {
				continue
			}
			if !p.transition(StatePolling, StateResolved) {
				return
			}
			p.mu.Lock()
			p.final = tk
			p.mu.Unlock()
			p.view.ClearActiveTask(p.sessionID, p.taskID)
			p.reconcile(ctx, tk)
			return
		}
	}
}

// timeout clears the indicator and the placeholder without inventing an answer.
func (p *Poller) timeout() {
	if !p.transition(StatePolling, StateTimedOut) {
		return
	}
	p.view.ClearActiveTask(p.sessionID, p.taskID)
	p.view.RemoveTaskItem(p.taskID)
	p.log.Info().Str("task_id", p.taskID).Dur("ceiling", p.cfg.Ceiling).Msg("task polling timed out")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// hasCompletion reports whether the completion message of taskID is in msgs.
// Other assistant replies in the session do not count.
func hasCompletion(msgs []chat.Message, taskID string) bool {
	for _, m := range msgs {
		if m.Role == chat.RoleAssistant && m.TaskID != nil && *m.TaskID == taskID {
			return true
		}
	}
	return false
}

// reconcile refetches history until the completion message has landed, then
// replaces the view. The completion handler writes that message after the
// status flips, so the first fetch may miss it.
func (p *Poller) reconcile(ctx context.Context, tk *task.Task) {
	for attempt := 0; attempt < p.cfg.RefetchAttempts; attempt++ {
		if attempt > 0 && !sleepCtx(ctx, p.cfg.RefetchDelay) {
			return
		}
		t, ok := p.view.TicketFor(p.sessionID)
		if !ok {
			// another session is showing; its next load reads the truth
			p.view.RemoveTaskItem(p.taskID)
			return
		}
		msgs, err := p.api.ListMessages(ctx, uint64(p.sessionID))
		if err != nil {
			p.log.Warn().Err(err).Str("task_id", p.taskID).Msg("refetch history failed")
			continue
		}
		if hasCompletion(msgs, p.taskID) {
			if !p.view.ReplaceHistory(t, msgs) {
				// the user switched sessions during the fetch
				p.view.RemoveTaskItem(p.taskID)
			}
			return
		}
	}

	// the reply has not landed yet; show the task's own outcome until the next load
	p.view.SetTaskText(p.taskID, outcomeText(tk))
}

func outcomeText(tk *task.Task) string {
	if tk.Status == task.StatusFailed {
		msg := ""
		if tk.Error != nil {
			msg = *tk.Error
		}
		return chat.FailureText(msg)
	}
	if tk.Result != nil && *tk.Result != "" {
		return *tk.Result
	}
	return "The task finished without results."
}

// Stop asks the server to stop the task and waits a bounded number of checks
// for it to leave the active state. A completion that arrives later is picked
// up by the next history load.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return nil
	}
	p.state = StateStopped
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	<-p.done
	p.view.SetTaskText(p.taskID, StoppingText)

	if err := p.api.StopTask(ctx, p.taskID); err != nil {
		p.view.SetTaskText(p.taskID, StopFailedText)
		p.view.ClearActiveTask(p.sessionID, p.taskID)
		return err
	}

	for i := 0; i < p.cfg.StopChecks; i++ {
		tk, err := p.api.GetTask(ctx, p.taskID)
		if err == nil && tk.Status.Terminal() {
			p.mu.Lock()
			p.final = tk
			p.mu.Unlock()
			p.view.ClearActiveTask(p.sessionID, p.taskID)
			p.reconcile(ctx, tk)
			return nil
		}
		if !sleepCtx(ctx, p.cfg.StopCheckDelay) {
			break
		}
	}
	p.view.SetTaskText(p.taskID, StopFailedText)
	p.view.ClearActiveTask(p.sessionID, p.taskID)
	return ErrStopUnconfirmed
}
