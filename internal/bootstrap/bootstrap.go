// Package bootstrap builds the shared dependencies of the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/config"
	"github.com/suPer8Hu/creator-scout/internal/scraper"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

func modelOr(model, def string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return def
}

// memo builds one provider per (name, model) so the concurrency limit is
// shared by every caller of that model.
type memo struct {
	mu    sync.Mutex
	built map[string]ai.Provider
}

func (m *memo) factory(name string, build ai.ProviderFactory) ai.ProviderFactory {
	return func(ctx context.Context, model string) (ai.Provider, error) {
		key := name + "|" + model
		m.mu.Lock()
		defer m.mu.Unlock()
		if p, ok := m.built[key]; ok {
			return p, nil
		}
		p, err := build(ctx, model)
		if err != nil {
			return nil, err
		}
		m.built[key] = p
		return p, nil
	}
}

// Providers registers every configured provider, each behind the
// concurrency limit and token instrumentation. cfg.AIProvider is the default.
func Providers(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	est := ai.NewEstimator("cl100k_base")
	m := &memo{built: make(map[string]ai.Provider)}
	wrap := func(name string, p ai.Provider) ai.Provider {
		return ai.Instrument(ai.NewLimited(p, cfg.AIConcurrentLimit), name, est)
	}
	register := func(name string, build ai.ProviderFactory) {
		reg.Register(name, m.factory(name, build))
	}

	register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		return wrap("ollama", ai.NewOllamaProvider(cfg.OllamaBaseURL, modelOr(model, cfg.OllamaModel))), nil
	})
	if cfg.OpenRouterAPIKey != "" {
		register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
			p := ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
				modelOr(model, cfg.OpenRouterModel), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
			return wrap("openrouter", p), nil
		})
	}
	if cfg.OpenAIAPIKey != "" {
		register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
			return wrap("openai", ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, modelOr(model, cfg.OpenAIModel))), nil
		})
	}
	if cfg.GeminiAPIKey != "" {
		register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
			p, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, modelOr(model, cfg.GeminiModel), false)
			if err != nil {
				return nil, err
			}
			return wrap("gemini", p), nil
		})
		// grounded variant for discovery
		register("gemini-search", func(ctx context.Context, model string) (ai.Provider, error) {
			p, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, modelOr(model, cfg.GeminiModel), true)
			if err != nil {
				return nil, err
			}
			return wrap("gemini-search", p), nil
		})
	}
	reg.SetDefault(cfg.AIProvider)
	return reg
}

// SearchProvider resolves the provider discovery prompts go to. Gemini is
// used in its grounded form.
func SearchProvider(ctx context.Context, reg *ai.Registry, cfg config.Config) (ai.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.SearchProvider))
	if name == "gemini" {
		name = "gemini-search"
	}
	p, err := reg.Get(ctx, name, cfg.SearchModel)
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}
	return p, nil
}

func Scraper(cfg config.Config, log *zerolog.Logger) *scraper.Client {
	return scraper.New(scraper.Config{
		BaseURL: cfg.ScraperBaseURL,
		APIKey:  cfg.ScraperAPIKey,
		Datasets: map[string]string{
			task.PlatformInstagram: cfg.ScraperInstagramDataset,
			task.PlatformTikTok:    cfg.ScraperTikTokDataset,
		},
		PollInterval: cfg.ScraperPollInterval,
		MaxWait:      cfg.ScraperMaxWait,
	}, log)
}

// TopicNames lists the queue suffixes of every task topic.
func TopicNames() []string {
	out := make([]string, 0, len(task.AllTopics))
	for _, t := range task.AllTopics {
		out = append(out, string(t))
	}
	return out
}
