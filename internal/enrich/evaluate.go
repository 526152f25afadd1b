package enrich

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

const (
	// RelevanceThreshold is inclusive: 70 passes, 69 is dropped.
	RelevanceThreshold = 70

	DefaultScore     = 3
	DefaultRelevance = 100
	MinScore         = 1
	MaxScore         = 5

	privateSummary = "This account is private, so it cannot be analyzed."
)

type Evaluation struct {
	Summary   string `json:"analysisSummary"`
	Score     int    `json:"analysisScore"`
	Relevance int    `json:"relevance"`
	// Fallback is set when the model answer could not be parsed.
	Fallback bool `json:"-"`
	Private  bool `json:"-"`
}

func (e Evaluation) Relevant() bool { return e.Relevance >= RelevanceThreshold }

// PrivateEvaluation is used for private profiles, which are never prompted.
func PrivateEvaluation() Evaluation {
	return Evaluation{Summary: privateSummary, Score: 0, Relevance: 0, Private: true}
}

// ParseEvaluation turns a model answer into a bounded Evaluation. It never fails.
func ParseEvaluation(answer string, p payload.Profile) Evaluation {
	var raw map[string]any
	if err := ai.DecodeJSONAnswer(answer, &raw); err != nil {
		return Evaluation{Summary: FallbackSummary(p), Score: DefaultScore, Relevance: DefaultRelevance, Fallback: true}
	}
	v := payload.FromAny(raw)

	ev := Evaluation{Score: DefaultScore, Relevance: DefaultRelevance}
	if n, ok := payload.PickNumber(v, "score", "analysisScore", "rating"); ok {
		ev.Score = clamp(n, MinScore, MaxScore, DefaultScore)
	}
	if n, ok := payload.PickNumber(v, "relevance", "relevance_score", "relevanceScore"); ok {
		ev.Relevance = clamp(n, 0, 100, DefaultRelevance)
	}
	ev.Summary, _ = payload.PickString(v, "summary", "analysisSummary", "analysis")
	ev.Summary = strings.TrimSpace(ev.Summary)
	if ev.Summary == "" {
		ev.Summary = FallbackSummary(p)
	}
	return ev
}

func clamp(n float64, lo, hi, def int) int {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}
	// compare as float; converting an out-of-range float to int is undefined
	r := math.Round(n)
	if r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}

// FallbackSummary is built only from scraped fields.
func FallbackSummary(p payload.Profile) string {
	name := p.Account
	if name == "" {
		name = "This creator"
	} else {
		name = "@" + name
	}
	s := fmt.Sprintf("%s has %s followers", name, formatCount(p.Followers))
	if p.PostCount > 0 {
		s += fmt.Sprintf(" and %d posts", p.PostCount)
	}
	s += "."
	if bio := strings.TrimSpace(p.Bio); bio != "" {
		s += " Bio: " + bio
	}
	return s
}

func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 10_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "k"
	default:
		return strconv.FormatInt(n, 10)
	}
}

type Evaluator interface {
	Evaluate(ctx context.Context, p payload.Profile, query string) (Evaluation, ai.Usage, error)
}

// Scorer runs one short LLM evaluation per profile.
type Scorer struct {
	Provider ai.Provider
}

func (s Scorer) Evaluate(ctx context.Context, p payload.Profile, query string) (Evaluation, ai.Usage, error) {
	if p.IsPrivate {
		return PrivateEvaluation(), ai.Usage{}, nil
	}
	c, err := ai.Ask(ctx, s.Provider, scoreSystemPrompt, ScorePrompt(p, query))
	if err != nil {
		return Evaluation{}, ai.Usage{}, fmt.Errorf("score @%s: %w", p.Account, err)
	}
	return ParseEvaluation(c.Text, p), c.Usage, nil
}

const scoreSystemPrompt = `You evaluate social media creators for brand partnerships.
Answer with one JSON object and nothing else:
{"summary": "<2-3 sentences>", "score": <integer 1-5, overall creator quality>, "relevance": <integer 0-100, fit with the request>}`

func ScorePrompt(p payload.Profile, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Account: @%s\n", p.Account)
	if p.FullName != "" {
		fmt.Fprintf(&sb, "Name: %s\n", p.FullName)
	}
	fmt.Fprintf(&sb, "Followers: %d\n", p.Followers)
	fmt.Fprintf(&sb, "Private: %t\n", p.IsPrivate)
	fmt.Fprintf(&sb, "Bio: %s\n", strings.TrimSpace(p.Bio))
	n := 0
	for _, post := range p.Posts {
		if post.Caption == "" {
			continue
		}
		if n == 0 {
			sb.WriteString("Recent captions:\n")
		}
		fmt.Fprintf(&sb, "- %s\n", truncate(post.Caption, 200))
		if n++; n == 5 {
			break
		}
	}
	if query != "" {
		fmt.Fprintf(&sb, "\nRequest to judge relevance against: %s\n", query)
	} else {
		sb.WriteString("\nNo request given; set relevance to 100.\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
