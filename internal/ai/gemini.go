package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

// GeminiProvider calls Gemini through the official SDK. With Grounded set the
// request carries the Google Search tool, making it a search-augmented provider.
type GeminiProvider struct {
	client   *genai.Client
	model    string
	Grounded bool
}

func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string, grounded bool) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: c, model: model, Grounded: grounded}, nil
}

func (g *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	c, err := g.Complete(ctx, messages)
	return c.Text, err
}

func (g *GeminiProvider) Complete(ctx context.Context, messages []Message) (Completion, error) {
	if len(messages) == 0 {
		return Completion{}, upstream.RequestSetup("gemini", "generate", errors.New("no messages"))
	}

	cfg := &genai.GenerateContentConfig{}
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant, "model":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if g.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Completion{}, classifyGemini(err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	out := Completion{Text: sb.String()}
	if resp != nil && resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return upstream.HTTPStatus("gemini", "generate", apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return upstream.NoResponse("gemini", "generate", err)
}
