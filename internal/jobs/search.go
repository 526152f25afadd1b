package jobs

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/enrich"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

type UsageReport struct {
	Context ai.Usage  `json:"context"`
	Stage1  ai.Usage  `json:"stage1"`
	Stage2  *ai.Usage `json:"stage2,omitempty"`
	Scoring ai.Usage  `json:"scoring"`
	Total   ai.Usage  `json:"total"`
}

// SearchResult is the stored result of a search task and the content of its
// completion message.
type SearchResult struct {
	Platform         string                  `json:"platform"`
	Query            string                  `json:"query"`
	Context          discovery.SearchContext `json:"context"`
	Stage2Ran        bool                    `json:"stage2Ran"`
	URLs             []string                `json:"urls"`
	AnalyzedProfiles []enrich.Scored         `json:"analyzedProfiles"`
	Excluded         []enrich.Excluded       `json:"excluded,omitempty"`
	Usage            UsageReport             `json:"usage"`
}

func (r *Runner) runSearch(ctx context.Context, t *task.Task, in task.Input) (string, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", ErrMissingInput
	}
	platform := t.Topic.Platform()
	check := r.checkpoint(t.TaskID)

	p := discovery.Pipeline{
		Extractor:  r.Extractor,
		Searcher:   r.Searcher,
		Fetcher:    r.Fetcher,
		Checkpoint: check,
		Log:        r.Log,
	}
	found, err := p.Run(ctx, platform, query)
	if err != nil {
		return "", err
	}

	e := enrich.Enricher{Evaluator: r.Evaluator, Sink: r.Sink, Checkpoint: check, Log: r.Log}
	out, err := e.Enrich(ctx, t.TaskID, platform, query, found.Profiles)
	if err != nil {
		return "", err
	}

	res := SearchResult{
		Platform:         platform,
		Query:            query,
		Context:          found.Context,
		Stage2Ran:        found.Stage2Ran,
		URLs:             found.URLs,
		AnalyzedProfiles: out.Accepted,
		Excluded:         out.Excluded,
		Usage: UsageReport{
			Context: found.ContextUsage,
			Stage1:  found.Stage1.Usage,
			Scoring: out.Usage,
			Total:   found.Usage.Add(out.Usage),
		},
	}
	if found.Stage2 != nil {
		u := found.Stage2.Usage
		res.Usage.Stage2 = &u
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
