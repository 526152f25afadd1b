package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

// TaskSubmitter creates a pending task and enqueues it. task.Dispatcher satisfies it.
type TaskSubmitter interface {
	Submit(ctx context.Context, t *task.Task) error
}

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	tasks             TaskSubmitter
	contextWindowSize int
	log               *zerolog.Logger
}

func NewService(repo *Repo, registry *ai.Registry, tasks TaskSubmitter, contextWindowSize int, log *zerolog.Logger) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		repo:              repo,
		registry:          registry,
		tasks:             tasks,
		contextWindowSize: contextWindowSize,
		log:               logging.OrNop(log),
	}
}

const titleMaxRunes = 60

// TitleFrom derives a session title from the first user message.
func TitleFrom(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(s) <= titleMaxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:titleMaxRunes])) + "..."
}

func (s *Service) CreateSession(ctx context.Context, userID uint64, title, provider, model string) (*Session, error) {
	sess := &Session{UserID: userID, Provider: provider, Model: model}
	if t := strings.TrimSpace(title); t != "" {
		sess.Title = &t
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID)
}

func (s *Service) RenameSession(ctx context.Context, userID, sessionID uint64, title string) (*Session, error) {
	title = strings.TrimSpace(title)
	if err := s.repo.UpdateSessionTitle(ctx, userID, sessionID, title); err != nil {
		return nil, err
	}
	return s.repo.GetSession(ctx, userID, sessionID)
}

func (s *Service) ListMessages(ctx context.Context, userID, sessionID uint64, limit int, beforeID uint64) ([]Message, error) {
	if _, err := s.repo.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, userID, sessionID, limit, beforeID)
}

func (s *Service) providerForSession(ctx context.Context, sess *Session) (ai.Provider, error) {
	return s.registry.Get(ctx, sess.Provider, sess.Model)
}

// SendResult describes one chat turn. Reply is empty and TaskID set when the
// turn started a task; the answer arrives later as its own message.
type SendResult struct {
	SessionID        uint64 `json:"session_id"`
	UserMessageID    uint64 `json:"user_message_id"`
	MessageID        uint64 `json:"message_id,omitempty"`
	Reply            string `json:"reply"`
	TaskID           string `json:"task_id,omitempty"`
	DetectedEndpoint string `json:"detected_endpoint,omitempty"`
	SessionCreated   bool   `json:"session_created,omitempty"`
}

// SendMessage stores the user message, asks the chat model, and either answers
// directly or starts the task the answer's marker names. A sessionID of zero
// or below creates a new session titled after content.
func (s *Service) SendMessage(ctx context.Context, userID uint64, sessionID int64, content string) (*SendResult, error) {
	log := logging.With(ctx, s.log)
	res := &SendResult{}

	// 1) resolve session (create on first message)
	var sess *Session
	var err error
	if sessionID <= 0 {
		sess, err = s.CreateSession(ctx, userID, TitleFrom(content), "", "")
		res.SessionCreated = true
	} else {
		sess, err = s.repo.GetSession(ctx, userID, uint64(sessionID))
	}
	if err != nil {
		return nil, err
	}
	res.SessionID = sess.ID

	provider, err := s.providerForSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	// 2) store user message first
	userMsg := &Message{SessionID: sess.ID, UserID: userID, Role: RoleUser, Content: content}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	res.UserMessageID = userMsg.ID
	if err := s.repo.TouchSession(ctx, sess.ID); err != nil {
		log.Warn().Err(err).Uint64("session_id", sess.ID).Msg("touch session failed")
	}

	// 3) recent history, oldest -> newest, behind the intent menu
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, sess.ID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}
	providerMsgs := make([]ai.Message, 0, len(recentDesc)+1)
	providerMsgs = append(providerMsgs, ai.Message{Role: ai.RoleSystem, Content: intentSystemPrompt})
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		providerMsgs = append(providerMsgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	c, err := ai.Complete(ctx, provider, providerMsgs)
	if err != nil {
		return nil, err
	}
	metrics.ObserveLLMTokens("chat", c.Usage.PromptTokens, c.Usage.CompletionTokens)

	intent, reply := DetectIntent(c.Text)
	if intent.None() {
		msg, err := s.insertAssistant(ctx, sess.ID, userID, reply, "")
		if err != nil {
			return nil, err
		}
		res.Reply, res.MessageID = reply, msg.ID
		return res, nil
	}

	endpoint := intent.Endpoint()
	res.DetectedEndpoint = endpoint
	log.Info().Str("endpoint", endpoint).Uint64("session_id", sess.ID).Msg("chat intent detected")

	// 4) narrow second call for the task input
	in, _, err := ExtractParams(ctx, provider, intent.Topic, content)
	if err != nil {
		if !errors.Is(err, ErrParamsMissing) {
			return nil, err
		}
		text := clarifyText(intent.Topic)
		msg, err := s.insertAssistant(ctx, sess.ID, userID, text, endpoint)
		if err != nil {
			return nil, err
		}
		res.Reply, res.MessageID = text, msg.ID
		return res, nil
	}

	// 5) create and enqueue the task
	t := &task.Task{TaskID: task.NewTaskID(), UserID: userID, Topic: intent.Topic}
	if err := t.SetInput(in); err != nil {
		return nil, err
	}
	link := &TaskLink{
		TaskID:    t.TaskID,
		SessionID: sess.ID,
		MessageID: userMsg.ID,
		UserID:    userID,
		Endpoint:  endpoint,
		Status:    LinkPending,
	}
	if err := s.repo.CreateLink(ctx, link); err != nil {
		log.Warn().Err(err).Str("task_id", t.TaskID).Msg("create task link failed")
	}

	if err := s.tasks.Submit(ctx, t); err != nil {
		log.Error().Err(err).Str("task_id", t.TaskID).Msg("start task failed")
		text := FailureText(err.Error())
		msg, ierr := s.insertAssistant(ctx, sess.ID, userID, text, endpoint)
		if ierr != nil {
			return nil, ierr
		}
		if _, lerr := s.repo.SetLinkStatus(ctx, t.TaskID, LinkFailed); lerr != nil {
			log.Warn().Err(lerr).Str("task_id", t.TaskID).Msg("update task link failed")
		}
		res.Reply, res.MessageID, res.TaskID = text, msg.ID, t.TaskID
		return res, nil
	}

	res.TaskID = t.TaskID
	return res, nil
}

func newAssistant(sessionID, userID uint64, content, endpoint string) *Message {
	m := &Message{SessionID: sessionID, UserID: userID, Role: RoleAssistant, Content: content}
	if endpoint != "" {
		m.DetectedEndpoint = &endpoint
	}
	return m
}

func (s *Service) insertAssistant(ctx context.Context, sessionID, userID uint64, content, endpoint string) (*Message, error) {
	m := newAssistant(sessionID, userID, content, endpoint)
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkPolling records that a client is watching a chat-started task.
func (s *Service) MarkPolling(ctx context.Context, taskID string) {
	if _, err := s.repo.SetLinkStatus(ctx, taskID, LinkPolling); err != nil {
		s.log.Warn().Err(err).Str("task_id", taskID).Msg("update task link failed")
	}
}

// CompleteTask writes the assistant message for a terminal task that was
// started from chat. Tasks without a link and repeated completions are no-ops.
func (s *Service) CompleteTask(ctx context.Context, t *task.Task) (*Message, error) {
	if !t.Status.Terminal() {
		return nil, task.ErrInvalidTransition
	}
	link, err := s.repo.GetLinkByTaskID(ctx, t.TaskID)
	if errors.Is(err, ErrLinkNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	status := LinkCompleted
	content := ""
	if t.Status == task.StatusFailed {
		status = LinkFailed
		errMsg := ""
		if t.Error != nil {
			errMsg = *t.Error
		}
		content = FailureText(errMsg)
	} else if t.Result != nil {
		content = *t.Result
	}
	if strings.TrimSpace(content) == "" {
		content = "The task finished without results."
	}

	// the claim and the message commit together, so a failed write leaves the
	// link open for the next completion attempt
	var msg *Message
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		won, err := tx.SetLinkStatus(ctx, t.TaskID, status)
		if err != nil || !won {
			return err
		}
		m := newAssistant(link.SessionID, link.UserID, content, link.Endpoint)
		taskID := t.TaskID
		m.TaskID = &taskID
		if err := tx.InsertMessage(ctx, m); err != nil {
			return err
		}
		msg = m
		return tx.SetLinkResultMessage(ctx, t.TaskID, m.ID)
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	if err := s.repo.TouchSession(ctx, link.SessionID); err != nil {
		s.log.Warn().Err(err).Uint64("session_id", link.SessionID).Msg("touch session failed")
	}
	s.log.Info().
		Str("task_id", t.TaskID).
		Str("status", string(t.Status)).
		Uint64("message_id", msg.ID).
		Dur("age", time.Since(t.CreatedAt)).
		Msg("task completion written to chat")
	return msg, nil
}
