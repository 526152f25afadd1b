package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	// JSONMode asks the model for a JSON object answer.
	JSONMode bool
	Client   *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   string      `json:"format,omitempty"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message         ollamaMsg `json:"message"`
	PromptEvalCount int       `json:"prompt_eval_count"`
	EvalCount       int       `json:"eval_count"`
	Error           string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	c, err := p.Complete(ctx, messages)
	return c.Text, err
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message) (Completion, error) {
	reqBody := ollamaChatReq{
		Model:  p.Model,
		Stream: false,
		Messages: func() []ollamaMsg {
			out := make([]ollamaMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}
	if p.JSONMode {
		reqBody.Format = "json"
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, upstream.RequestSetup("ollama", "chat", err)
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	raw, err := postJSON(ctx, p.Client, "ollama", url, b, nil)
	if err != nil {
		return Completion{}, err
	}

	var decoded ollamaChatResp
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Completion{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if decoded.Error != "" {
		return Completion{}, errors.New("ollama: " + decoded.Error)
	}
	return Completion{
		Text: decoded.Message.Content,
		Usage: Usage{
			PromptTokens:     decoded.PromptEvalCount,
			CompletionTokens: decoded.EvalCount,
			TotalTokens:      decoded.PromptEvalCount + decoded.EvalCount,
		},
	}, nil
}
