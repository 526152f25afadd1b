package discovery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

// MinStageOneProfiles is the number of scraped profiles below which the
// permissive second stage runs.
const MinStageOneProfiles = 5

type Searcher interface {
	Search(ctx context.Context, prompt string) (ai.Completion, error)
}

type ProfileFetcher interface {
	Fetch(ctx context.Context, platform string, urls []string) ([]payload.Value, error)
}

// ProviderSearcher adapts a search-augmented chat provider.
type ProviderSearcher struct {
	Provider ai.Provider
}

func (s ProviderSearcher) Search(ctx context.Context, prompt string) (ai.Completion, error) {
	return ai.Ask(ctx, s.Provider, searchSystemPrompt, prompt)
}

type StageResult struct {
	Prompt string   `json:"prompt"`
	Answer string   `json:"answer"`
	URLs   []string `json:"urls"`
	// URLs sent to the scraper in this stage
	Fetched []string `json:"fetched"`
	Usage   ai.Usage `json:"usage"`
}

type Result struct {
	Platform     string          `json:"platform"`
	Query        string          `json:"query"`
	Context      SearchContext   `json:"context"`
	ContextUsage ai.Usage        `json:"contextUsage"`
	Stage1       StageResult     `json:"stage1"`
	Stage2       *StageResult    `json:"stage2,omitempty"`
	Stage2Ran    bool            `json:"stage2Ran"`
	URLs         []string        `json:"urls"`
	Profiles     []payload.Value `json:"profiles"`
	Usage        ai.Usage        `json:"usage"`
}

type Pipeline struct {
	Extractor Extractor
	Searcher  Searcher
	Fetcher   ProfileFetcher
	// Checkpoint runs between stages; a non-nil error aborts the run.
	Checkpoint func(ctx context.Context, stage string) error
	Log        *zerolog.Logger
}

// profileSet keeps scraped profiles keyed by canonical URL, first occurrence wins.
type profileSet struct {
	platform string
	order    []string
	byURL    map[string]payload.Value
}

func newProfileSet(platform string) *profileSet {
	return &profileSet{platform: platform, byURL: map[string]payload.Value{}}
}

func (s *profileSet) add(v payload.Value) bool {
	key := ProfileKey(s.platform, v)
	if key == "" {
		return false
	}
	if _, ok := s.byURL[key]; ok {
		return false
	}
	s.byURL[key] = v
	s.order = append(s.order, key)
	return true
}

func (s *profileSet) has(url string) bool {
	_, ok := s.byURL[url]
	return ok
}

func (s *profileSet) values() []payload.Value {
	out := make([]payload.Value, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byURL[k])
	}
	return out
}

// ProfileKey is the canonical profile URL of a scraped record, or "".
func ProfileKey(platform string, v payload.Value) string {
	p := payload.ExtractProfile(v)
	if p.URL != "" {
		if u, ok := CanonicalProfileURL(platform, p.URL); ok {
			return u
		}
	}
	if p.Account != "" {
		if u, ok := CanonicalProfileURL(platform, p.Account); ok {
			return u
		}
	}
	return ""
}

func (p *Pipeline) checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Checkpoint == nil {
		return nil
	}
	return p.Checkpoint(ctx, stage)
}

// Run executes context extraction, stage 1 and, when stage 1 yields fewer than
// MinStageOneProfiles scraped profiles, stage 2.
func (p *Pipeline) Run(ctx context.Context, platform, query string) (*Result, error) {
	log := logging.With(ctx, p.Log)
	res := &Result{Platform: platform, Query: query}

	sc, usage, err := p.Extractor.Extract(ctx, platform, query)
	res.Context, res.ContextUsage = sc, usage
	res.Usage = res.Usage.Add(usage)
	metrics.ObserveLLMTokens("context", usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		return res, err
	}
	if err := sc.Validate(); err != nil {
		return res, err
	}

	set := newProfileSet(platform)
	seen := map[string]bool{}

	// stage 1
	if err := p.checkpoint(ctx, "stage1"); err != nil {
		return res, err
	}
	st1, err := p.runStage(ctx, platform, Stage1Prompt(platform, query, sc), seen, set)
	res.Stage1 = st1
	res.Usage = res.Usage.Add(st1.Usage)
	metrics.ObserveLLMTokens("stage1", st1.Usage.PromptTokens, st1.Usage.CompletionTokens)
	if err != nil {
		return res, fmt.Errorf("stage 1: %w", err)
	}
	stage1Count := len(set.order)
	log.Info().Str("platform", platform).Int("urls", len(st1.URLs)).Int("profiles", stage1Count).Msg("discovery stage 1 done")

	// stage 2
	if stage1Count < MinStageOneProfiles {
		if err := p.checkpoint(ctx, "stage2"); err != nil {
			return res, err
		}
		metrics.IncStage2(platform)
		res.Stage2Ran = true
		st2, err := p.runStage(ctx, platform, Stage2Prompt(platform, query, sc, set.order), seen, set)
		res.Stage2 = &st2
		res.Usage = res.Usage.Add(st2.Usage)
		metrics.ObserveLLMTokens("stage2", st2.Usage.PromptTokens, st2.Usage.CompletionTokens)
		if err != nil {
			return res, fmt.Errorf("stage 2: %w", err)
		}
		log.Info().Str("platform", platform).Int("urls", len(st2.URLs)).Int("profiles", len(set.order)-stage1Count).Msg("discovery stage 2 done")
	}

	res.URLs = mergeURLs(res.Stage1.URLs, res.Stage2)
	res.Profiles = set.values()
	return res, nil
}

func (p *Pipeline) runStage(ctx context.Context, platform, prompt string, seen map[string]bool, set *profileSet) (StageResult, error) {
	st := StageResult{Prompt: prompt}
	c, err := p.Searcher.Search(ctx, prompt)
	if err != nil {
		return st, fmt.Errorf("search: %w", err)
	}
	st.Answer, st.Usage = c.Text, c.Usage
	st.URLs = ExtractProfileURLs(platform, c.Text)

	for _, u := range st.URLs {
		if seen[u] || set.has(u) {
			continue
		}
		seen[u] = true
		st.Fetched = append(st.Fetched, u)
	}
	if len(st.Fetched) == 0 {
		return st, nil
	}

	records, err := p.Fetcher.Fetch(ctx, platform, st.Fetched)
	if err != nil {
		return st, fmt.Errorf("fetch profiles: %w", err)
	}
	for _, r := range records {
		set.add(r)
	}
	return st, nil
}

func mergeURLs(first []string, st2 *StageResult) []string {
	out := append([]string(nil), first...)
	if st2 == nil {
		return out
	}
	have := map[string]bool{}
	for _, u := range out {
		have[u] = true
	}
	for _, u := range st2.URLs {
		if !have[u] {
			have[u] = true
			out = append(out, u)
		}
	}
	return out
}
