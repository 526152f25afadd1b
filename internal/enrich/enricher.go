package enrich

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

// Scored is an accepted profile as it appears in analyzedProfiles.
type Scored struct {
	Account    string `json:"account"`
	FullName   string `json:"fullName,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
	Followers  int64  `json:"followers"`
	IsPrivate  bool   `json:"isPrivate"`
	Bio        string `json:"bio,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	Evaluation
}

type Excluded struct {
	Account string `json:"account"`
	Reason  string `json:"reason"` // private|relevance
}

type Outcome struct {
	Accepted []Scored   `json:"analyzedProfiles"`
	Excluded []Excluded `json:"excluded,omitempty"`
	Usage    ai.Usage   `json:"usage"`
}

type Enricher struct {
	Evaluator Evaluator
	Sink      Sink
	// Checkpoint runs before each profile; a non-nil error aborts.
	Checkpoint func(ctx context.Context, stage string) error
	Log        *zerolog.Logger
}

// Enrich scores profiles one at a time, drops private and irrelevant ones and
// persists each accepted profile right after scoring it.
func (e *Enricher) Enrich(ctx context.Context, taskID, platform, query string, records []payload.Value) (*Outcome, error) {
	log := logging.With(ctx, e.Log)
	out := &Outcome{Accepted: []Scored{}}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if e.Checkpoint != nil {
			if err := e.Checkpoint(ctx, "enrich"); err != nil {
				return out, err
			}
		}

		p := payload.ExtractProfile(rec)
		if p.IsPrivate {
			metrics.IncProfileFiltered("private")
			out.Excluded = append(out.Excluded, Excluded{Account: p.Account, Reason: "private"})
			continue
		}

		t0 := time.Now()
		ev, usage, err := e.Evaluator.Evaluate(ctx, p, query)
		if err != nil {
			return out, err
		}
		out.Usage = out.Usage.Add(usage)
		metrics.ObserveLLMTokens("scoring", usage.PromptTokens, usage.CompletionTokens)

		if ev.Private || !ev.Relevant() {
			metrics.IncProfileFiltered("relevance")
			out.Excluded = append(out.Excluded, Excluded{Account: p.Account, Reason: "relevance"})
			log.Debug().Str("account", p.Account).Int("relevance", ev.Relevance).Msg("profile below relevance threshold")
			continue
		}

		scored := Scored{
			Account:    p.Account,
			FullName:   p.FullName,
			ProfileURL: p.URL,
			Followers:  p.Followers,
			IsPrivate:  p.IsPrivate,
			Bio:        p.Bio,
			AvatarURL:  p.AvatarURL,
			Evaluation: ev,
		}
		e.persist(ctx, log, taskID, platform, scored, rec)
		out.Accepted = append(out.Accepted, scored)
		log.Info().
			Str("account", p.Account).
			Int("score", ev.Score).
			Int("relevance", ev.Relevance).
			Bool("fallback", ev.Fallback).
			Dur("cost", time.Since(t0)).
			Msg("profile scored")
	}
	return out, nil
}

func (e *Enricher) persist(ctx context.Context, log *zerolog.Logger, taskID, platform string, s Scored, raw payload.Value) {
	if e.Sink == nil {
		return
	}
	rawJSON, err := raw.MarshalJSON()
	if err != nil {
		rawJSON = nil
	}
	row := &AnalyzedProfile{
		TaskID:          taskID,
		Platform:        platform,
		Account:         s.Account,
		ProfileURL:      s.ProfileURL,
		Followers:       s.Followers,
		IsPrivate:       s.IsPrivate,
		AnalysisSummary: s.Summary,
		AnalysisScore:   s.Score,
		Relevance:       s.Relevance,
		Raw:             datatypes.JSON(rawJSON),
	}
	if err := e.Sink.Save(ctx, row); err != nil {
		log.Warn().Err(err).Str("account", s.Account).Msg("persist analyzed profile failed, retrying once")
		row.ID = 0
		if err := e.Sink.Save(ctx, row); err != nil {
			metrics.IncTaskStoreError("analyzed_profile")
			log.Error().Err(err).Str("account", s.Account).Msg("persist analyzed profile failed")
		}
	}
}
