package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry resolves providers by name. Chat, extraction and scoring use the
// default provider; discovery asks for the search provider by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	def       string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func normName(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *Registry) Register(name string, f ProviderFactory) {
	name = normName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	if r.def == "" {
		r.def = name
	}
}

// SetDefault picks the provider Get falls back to for an empty name.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = normName(name)
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normName(name)
	r.mu.RLock()
	if name == "" {
		name = r.def
	}
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// Default returns the default provider with its configured model.
func (r *Registry) Default(ctx context.Context) (Provider, error) {
	return r.Get(ctx, "", "")
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
