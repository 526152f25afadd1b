package ai

import "context"

type limited struct {
	inner Provider
	sem   chan struct{}
}

// NewLimited caps concurrent calls to inner. maxConcurrent <= 0 disables the cap.
func NewLimited(inner Provider, maxConcurrent int) Provider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limited{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limited) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limited) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.Chat(ctx, messages)
}

func (l *limited) Complete(ctx context.Context, messages []Message) (Completion, error) {
	if err := l.acquire(ctx); err != nil {
		return Completion{}, err
	}
	defer func() { <-l.sem }()
	return Complete(ctx, l.inner, messages)
}
