package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&AnalyzedProfile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func record(t *testing.T, raw string) payload.Value {
	t.Helper()
	v, err := payload.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return v
}

func TestParseEvaluation_BoundsUnderAdversarialOutput(t *testing.T) {
	p := payload.Profile{Account: "chef", Followers: 12300, Bio: "cook"}
	cases := []struct {
		answer        string
		score, relev  int
		fallback      bool
	}{
		{`{"summary":"s","score":4,"relevance":88}`, 4, 88, false},
		{`{"summary":"s","score":11,"relevance":250}`, 5, 100, false},
		{`{"summary":"s","score":-3,"relevance":-10}`, 1, 0, false},
		{`{"summary":"s","score":0}`, 1, 100, false},
		{`{"summary":"s","score":"great","relevance":"high"}`, 3, 100, false},
		{`{"summary":"s","score":"4.6","relevance":"69.4"}`, 5, 69, false},
		{`{"summary":"s"}`, 3, 100, false},
		{`Here: {"summary":"s","score":2,"relevance":75} thanks`, 2, 75, false},
		{`I think this creator is a 4/5`, 3, 100, true},
		{``, 3, 100, true},
		{`{"summary":"s","score":1e400}`, 3, 100, true},
		{`{"summary":"great","score":1e300,"relevance":1e300}`, 5, 100, false},
		{`{"summary":"s","score":-1e300,"relevance":-1e300}`, 1, 0, false},
	}
	for _, c := range cases {
		ev := ParseEvaluation(c.answer, p)
		if ev.Score < MinScore || ev.Score > MaxScore || ev.Relevance < 0 || ev.Relevance > 100 {
			t.Fatalf("%q: out of bounds %+v", c.answer, ev)
		}
		if ev.Score != c.score || ev.Relevance != c.relev || ev.Fallback != c.fallback {
			t.Fatalf("%q: got score=%d relevance=%d fallback=%v", c.answer, ev.Score, ev.Relevance, ev.Fallback)
		}
		if ev.Summary == "" {
			t.Fatalf("%q: empty summary", c.answer)
		}
	}

	fb := ParseEvaluation("nope", p)
	if !strings.Contains(fb.Summary, "@chef") || !strings.Contains(fb.Summary, "12.3k") {
		t.Fatalf("fallback summary should come from raw fields: %q", fb.Summary)
	}
}

type scriptedEvaluator struct {
	relevance map[string]int
	failOn    string
	prompted  []string
}

func (s *scriptedEvaluator) Evaluate(ctx context.Context, p payload.Profile, query string) (Evaluation, ai.Usage, error) {
	s.prompted = append(s.prompted, p.Account)
	if p.Account == s.failOn {
		return Evaluation{}, ai.Usage{}, errors.New("llm: upstream returned HTTP 500")
	}
	return Evaluation{Summary: "ok " + p.Account, Score: 4, Relevance: s.relevance[p.Account]}, ai.Usage{TotalTokens: 10}, nil
}

func TestEnrich_RelevanceBoundaryAndPrivacy(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	ev := &scriptedEvaluator{relevance: map[string]int{"at69": 69, "at70": 70, "high": 95}}
	e := &Enricher{Evaluator: ev, Sink: repo}

	recs := []payload.Value{
		record(t, `{"account":"at69","followers":100}`),
		record(t, `{"account":"secret","is_private":true,"followers":5000}`),
		record(t, `{"account":"at70","followers":200}`),
		record(t, `{"account":"high","followers":300}`),
	}
	out, err := e.Enrich(ctx, "task-1", "instagram", "cooking", recs)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if len(out.Accepted) != 2 || out.Accepted[0].Account != "at70" || out.Accepted[1].Account != "high" {
		t.Fatalf("accepted %+v", out.Accepted)
	}
	for _, p := range ev.prompted {
		if p == "secret" {
			t.Fatalf("private profile must never be prompted")
		}
	}
	if len(out.Excluded) != 2 {
		t.Fatalf("excluded %+v", out.Excluded)
	}

	rows, err := repo.ListByTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].Account != "at70" || rows[0].Relevance != 70 {
		t.Fatalf("persisted rows %+v", rows)
	}
	if len(rows[0].Raw) == 0 {
		t.Fatalf("raw record not stored")
	}
	if out.Usage.TotalTokens != 30 {
		t.Fatalf("usage %+v", out.Usage)
	}
}

func TestEnrich_PersistsIncrementally(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	ev := &scriptedEvaluator{relevance: map[string]int{"a": 90, "b": 90, "c": 90}, failOn: "c"}
	e := &Enricher{Evaluator: ev, Sink: repo}

	recs := []payload.Value{
		record(t, `{"account":"a"}`),
		record(t, `{"account":"b"}`),
		record(t, `{"account":"c"}`),
	}
	if _, err := e.Enrich(ctx, "task-2", "tiktok", "q", recs); err == nil {
		t.Fatalf("expected scoring failure")
	}
	rows, _ := repo.ListByTask(ctx, "task-2")
	if len(rows) != 2 {
		t.Fatalf("profiles scored before the failure must survive, got %d", len(rows))
	}
}

type failingSink struct{ calls int }

func (s *failingSink) Save(ctx context.Context, p *AnalyzedProfile) error {
	s.calls++
	return errors.New("db down")
}

func TestEnrich_SinkFailureIsNotFatal(t *testing.T) {
	sink := &failingSink{}
	e := &Enricher{Evaluator: &scriptedEvaluator{relevance: map[string]int{"a": 80}}, Sink: sink}
	out, err := e.Enrich(context.Background(), "t", "instagram", "q", []payload.Value{record(t, `{"account":"a"}`)})
	if err != nil {
		t.Fatalf("store failure should not fail enrichment: %v", err)
	}
	if len(out.Accepted) != 1 || sink.calls != 2 {
		t.Fatalf("expected one retry, calls=%d accepted=%d", sink.calls, len(out.Accepted))
	}
}

type fixedProvider struct {
	text  string
	calls int
}

func (p *fixedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.calls++
	return p.text, nil
}

func TestScorer_PrivateShortCircuit(t *testing.T) {
	prov := &fixedProvider{text: `{"summary":"x","score":5,"relevance":100}`}
	s := Scorer{Provider: prov}

	ev, _, err := s.Evaluate(context.Background(), payload.Profile{Account: "p", IsPrivate: true}, "q")
	if err != nil || ev.Score != 0 || !ev.Private || prov.calls != 0 {
		t.Fatalf("private: %+v calls=%d err=%v", ev, prov.calls, err)
	}

	ev, _, err = s.Evaluate(context.Background(), payload.Profile{Account: "open"}, "q")
	if err != nil || ev.Score != 5 || prov.calls != 1 {
		t.Fatalf("open: %+v err=%v", ev, err)
	}
}

func TestScorePrompt_IncludesQueryAndCaptions(t *testing.T) {
	p := payload.Profile{
		Account:   "chef",
		Followers: 10,
		Bio:       "bio",
		Posts:     []payload.Post{{Caption: "bacalhau night"}, {}},
	}
	got := ScorePrompt(p, "portuguese cooking")
	for _, want := range []string{"@chef", "Followers: 10", "bacalhau night", "portuguese cooking"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestScorePrompt_TruncatesOnRuneBoundary(t *testing.T) {
	caption := strings.Repeat("é", 250)
	got := ScorePrompt(payload.Profile{Account: "chef", Posts: []payload.Post{{Caption: caption}}}, "")
	if !utf8.ValidString(got) {
		t.Fatalf("prompt is not valid UTF-8")
	}
	if !strings.Contains(got, "- "+strings.Repeat("é", 200)+"...\n") {
		t.Fatalf("caption not cut at 200 runes:\n%s", got)
	}
}
