package ai

import (
	"context"
	"time"

	"github.com/suPer8Hu/creator-scout/internal/metrics"
)

type instrumented struct {
	inner Provider
	name  string
	est   *Estimator
}

// Instrument records call latency for inner under name and fills in usage
// from est when the provider reports none. est may be nil.
func Instrument(inner Provider, name string, est *Estimator) Provider {
	return &instrumented{inner: inner, name: name, est: est}
}

func (i *instrumented) Chat(ctx context.Context, messages []Message) (string, error) {
	c, err := i.Complete(ctx, messages)
	return c.Text, err
}

func (i *instrumented) Complete(ctx context.Context, messages []Message) (Completion, error) {
	start := time.Now()
	c, err := Complete(ctx, i.inner, messages)
	metrics.ObserveLLMCall(i.name, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return c, err
	}
	if c.Usage.IsZero() && i.est != nil {
		c.Usage = i.est.Usage(messages, c.Text)
	}
	return c, nil
}
