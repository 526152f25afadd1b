package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/logging"
)

var ErrUnknownTask = errors.New("no poller for task")

// Controller ties sends, history loads and task pollers to one View.
type Controller struct {
	API  API
	View *View
	Poll PollerConfig
	Log  *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pollers map[string]*Poller
}

func NewController(api API, view *View, poll PollerConfig, log *zerolog.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		API:     api,
		View:    view,
		Poll:    poll,
		Log:     logging.OrNop(log),
		ctx:     ctx,
		cancel:  cancel,
		pollers: make(map[string]*Poller),
	}
}

// Close stops every poller loop without touching server-side tasks.
func (c *Controller) Close() {
	c.cancel()
}

func (c *Controller) RefreshSessions(ctx context.Context) error {
	list, err := c.API.ListSessions(ctx)
	if err != nil {
		return err
	}
	c.View.SetSessions(list)
	return nil
}

// Open activates a session and loads its history.
func (c *Controller) Open(ctx context.Context, sessionID int64) error {
	c.View.Activate(sessionID)
	return c.Reload(ctx)
}

// Reload replaces the active session's history, unless a session swap asked
// for this one reload to be skipped. A result for a session that is no
// longer active is dropped.
func (c *Controller) Reload(ctx context.Context) error {
	t := c.View.Ticket()
	if t.SessionID <= 0 {
		return nil
	}
	if c.View.ConsumeSuppressReload(t.SessionID) {
		return nil
	}
	msgs, err := c.API.ListMessages(ctx, uint64(t.SessionID))
	if err != nil {
		return err
	}
	c.View.ReplaceHistory(t, msgs)
	return nil
}

// Send posts text to the active session, creating a local session first
// when none is active. A reply that starts a task gets a placeholder and a poller.
func (c *Controller) Send(ctx context.Context, text string) (*chat.SendResult, error) {
	t := c.View.Ticket()
	if t.SessionID == 0 {
		c.View.NewLocalSession(chat.TitleFrom(text))
		t = c.View.Ticket()
	}
	local := t.SessionID
	c.View.Append(t, Item{Role: chat.RoleUser, Content: text, Local: true})

	req := local
	if req < 0 {
		req = 0
	}
	res, err := c.API.SendMessage(ctx, req, text)
	if err != nil {
		return nil, err
	}

	server := int64(res.SessionID)
	if local < 0 && server > 0 {
		c.View.SwapSession(local, server)
	}
	if !c.View.Valid(t) {
		return res, nil
	}

	switch {
	case res.TaskID != "" && res.Reply == "":
		p := NewPoller(c.API, c.View, server, res.TaskID, platformOf(res.DetectedEndpoint), c.Poll, c.Log)
		c.mu.Lock()
		c.pollers[res.TaskID] = p
		c.mu.Unlock()
		if err := p.Start(c.ctx, t); err != nil {
			return res, err
		}
	case res.Reply != "":
		c.View.Append(t, Item{ID: res.MessageID, Role: chat.RoleAssistant, Content: res.Reply, Endpoint: res.DetectedEndpoint})
	}
	return res, nil
}

func (c *Controller) Poller(taskID string) (*Poller, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pollers[taskID]
	return p, ok
}

func (c *Controller) Stop(ctx context.Context, taskID string) error {
	p, ok := c.Poller(taskID)
	if !ok {
		return ErrUnknownTask
	}
	return p.Stop(ctx)
}

// platformOf reads the platform from an endpoint like /tiktok/search.
func platformOf(endpoint string) string {
	p, _, _ := strings.Cut(strings.TrimPrefix(endpoint, "/"), "/")
	return p
}
