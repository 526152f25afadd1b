// Package client is the chat-side task observer: it sends chat messages,
// polls the tasks they start and reconciles the local view with server history.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

// API is the subset of the service the client needs. Messages are returned
// oldest first.
type API interface {
	SendMessage(ctx context.Context, sessionID int64, text string) (*chat.SendResult, error)
	ListMessages(ctx context.Context, sessionID uint64) ([]chat.Message, error)
	ListSessions(ctx context.Context) ([]chat.Session, error)
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	StopTask(ctx context.Context, taskID string) error
}

// APIError is a non-zero envelope code.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// IsNotFound reports a 404 envelope.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.HTTPStatus == http.StatusNotFound
}

// HTTPClient talks to the JSON API with a bearer token.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode envelope (http %d): %w", method, path, resp.StatusCode, err)
	}
	if env.Code != 0 || resp.StatusCode >= 300 {
		return &APIError{HTTPStatus: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, sessionID int64, text string) (*chat.SendResult, error) {
	var res chat.SendResult
	body := map[string]any{"message": text}
	if sessionID > 0 {
		body["session_id"] = sessionID
	}
	if err := c.do(ctx, http.MethodPost, "/chat/messages", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListMessages(ctx context.Context, sessionID uint64) ([]chat.Message, error) {
	var page struct {
		Messages []chat.Message `json:"messages"`
	}
	q := url.Values{}
	q.Set("limit", "100")
	path := "/chat/sessions/" + strconv.FormatUint(sessionID, 10) + "/messages?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	// server pages newest first
	msgs := page.Messages
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]chat.Session, error) {
	var out struct {
		Sessions []chat.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) StopTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/stop", nil, nil)
}
