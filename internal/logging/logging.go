package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/config"
)

// New creates a zerolog logger from config. Format "console" gives
// human-readable output; anything else is JSON.
func New(cfg config.LogConfig) *zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(w)
	}
	base = base.Level(level).With().Timestamp().Logger()
	return &base
}

// Nop returns a disabled logger for tests and optional wiring.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// OrNop returns l, or a disabled logger when l is nil.
func OrNop(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxUserID    ctxKey = "user_id"
	ctxTaskID    ctxKey = "task_id"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func WithUserID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}

func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTaskID, id)
}

// With attaches the ids carried by ctx to a child of base.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := OrNop(base).With()
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		l = l.Str("request_id", v)
	}
	if v, ok := ctx.Value(ctxUserID).(uint64); ok {
		l = l.Uint64("user_id", v)
	}
	if v, ok := ctx.Value(ctxTaskID).(string); ok {
		l = l.Str("task_id", v)
	}
	logger := l.Logger()
	return &logger
}

// Preview shortens free text (queries, model answers) for log lines.
func Preview(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
