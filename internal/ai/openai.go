package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

// OpenAIProvider uses the official SDK. Pointed at a search model
// (gpt-4o-search-preview and friends) it serves as the search-augmented provider.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 180 * time.Second}),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{client: openai.NewClient(opts...), model: model}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	c, err := p.Complete(ctx, messages)
	return c.Text, err
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai: empty response")
	}
	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return upstream.HTTPStatus("openai", "chat", apiErr.StatusCode, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return upstream.NoResponse("openai", "chat", err)
}
