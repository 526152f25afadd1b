package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

func (u Usage) IsZero() bool { return u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 }

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

type Completion struct {
	Text  string
	Usage Usage
}

// Completer is implemented by providers that report token usage.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}

// Complete calls p and returns usage when p reports it.
func Complete(ctx context.Context, p Provider, messages []Message) (Completion, error) {
	if c, ok := p.(Completer); ok {
		return c.Complete(ctx, messages)
	}
	text, err := p.Chat(ctx, messages)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text}, nil
}

// Ask is a single system+user exchange.
func Ask(ctx context.Context, p Provider, system, user string) (Completion, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return Complete(ctx, p, msgs)
}
