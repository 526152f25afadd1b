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

// OpenRouterProvider talks to any OpenAI-compatible /chat/completions endpoint.
// Search-capable models (e.g. ":online" variants) make it usable as a Searcher too.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	c, err := p.Complete(ctx, messages)
	return c.Text, err
}

func (p *OpenRouterProvider) Complete(ctx context.Context, messages []Message) (Completion, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return Completion{}, upstream.RequestSetup("openrouter", "chat", errors.New("api key is required"))
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return Completion{}, upstream.RequestSetup("openrouter", "chat", errors.New("model is required"))
	}

	reqBody := openRouterChatReq{
		Model:  model,
		Stream: false,
		Messages: func() []openRouterMsg {
			out := make([]openRouterMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, openRouterMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, upstream.RequestSetup("openrouter", "chat", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}
	if p.SiteURL != "" {
		headers["HTTP-Referer"] = p.SiteURL
	}
	if p.AppName != "" {
		headers["X-Title"] = p.AppName
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	raw, err := postJSON(ctx, p.Client, "openrouter", url, b, headers)
	if err != nil {
		return Completion{}, err
	}

	var decoded openRouterChatResp
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Completion{}, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return Completion{}, errors.New("openrouter: " + decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, errors.New("openrouter: empty response")
	}
	out := Completion{Text: decoded.Choices[0].Message.Content}
	if decoded.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		}
	}
	return out, nil
}
