package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens for providers that do not report usage.
// The encoding is loaded on first use; if it cannot be loaded a
// four-bytes-per-token approximation is used.
type Estimator struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
}

func NewEstimator(encoding string) *Estimator {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &Estimator{encoding: encoding}
}

func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(e.encoding)
		if err == nil {
			e.enc = enc
		}
	})
	if e.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}

func (e *Estimator) Usage(messages []Message, answer string) Usage {
	prompt := 0
	for _, m := range messages {
		// per-message framing overhead used by chat formats
		prompt += e.Count(m.Content) + 4
	}
	completion := e.Count(answer)
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}
