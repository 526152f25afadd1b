package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

type fakeExtractor struct {
	sc  SearchContext
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, platform, query string) (SearchContext, ai.Usage, error) {
	return f.sc, ai.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10}, f.err
}

type scriptedSearcher struct {
	answers []string
	prompts []string
}

func (s *scriptedSearcher) Search(ctx context.Context, prompt string) (ai.Completion, error) {
	s.prompts = append(s.prompts, prompt)
	i := len(s.prompts) - 1
	if i >= len(s.answers) {
		return ai.Completion{}, errors.New("unexpected search call")
	}
	return ai.Completion{Text: s.answers[i], Usage: ai.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}, nil
}

// fakeFetcher returns one record per requested URL whose handle is known.
type fakeFetcher struct {
	known map[string]string // handle -> bio
	calls [][]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, platform string, urls []string) ([]payload.Value, error) {
	f.calls = append(f.calls, append([]string(nil), urls...))
	var out []payload.Value
	for _, u := range urls {
		handle := strings.TrimSuffix(strings.TrimPrefix(u, "https://www.instagram.com/"), "/")
		bio, ok := f.known[handle]
		if !ok {
			continue
		}
		v, err := payload.Parse([]byte(fmt.Sprintf(`{"account":%q,"profile_url":%q,"biography":%q,"followers":1000}`, handle, u, bio)))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func urlsFor(handles ...string) string {
	var sb strings.Builder
	for _, h := range handles {
		sb.WriteString("https://www.instagram.com/" + h + "/ (source: example.com)\n")
	}
	return sb.String()
}

func known(handles ...string) map[string]string {
	m := map[string]string{}
	for _, h := range handles {
		m[h] = "bio of " + h
	}
	return m
}

func cooking() SearchContext {
	return SearchContext{Category: "cooking", Location: "Portugal"}
}

func TestRun_FewerThanFiveTriggersStage2(t *testing.T) {
	search := &scriptedSearcher{answers: []string{
		urlsFor("a", "b", "c", "ghost"),
		urlsFor("b", "d", "e"),
	}}
	fetch := &fakeFetcher{known: known("a", "b", "c", "d", "e")}
	p := &Pipeline{Extractor: fakeExtractor{sc: cooking()}, Searcher: search, Fetcher: fetch}

	res, err := p.Run(context.Background(), "instagram", "find 5 Portuguese cooking creators")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Stage2Ran || res.Stage2 == nil {
		t.Fatalf("stage 2 should run with 3 scraped profiles")
	}
	if len(fetch.calls) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(fetch.calls))
	}
	// stage 2 only fetches unseen urls
	if len(fetch.calls[1]) != 2 || fetch.calls[1][0] != "https://www.instagram.com/d/" {
		t.Fatalf("stage 2 fetched %v", fetch.calls[1])
	}
	if len(res.Profiles) != 5 {
		t.Fatalf("expected 5 merged profiles, got %d", len(res.Profiles))
	}
	if len(res.URLs) != 6 {
		t.Fatalf("merged url list %v", res.URLs)
	}
	if !strings.Contains(search.prompts[1], "https://www.instagram.com/a/") {
		t.Fatalf("stage 2 prompt should list found profiles")
	}
	if res.Usage.TotalTokens != 10+120+120 {
		t.Fatalf("usage %+v", res.Usage)
	}
	if res.Stage1.Prompt == "" || res.Stage2.Answer == "" {
		t.Fatalf("stage artifacts missing")
	}
}

func TestRun_ExactlyFiveSkipsStage2(t *testing.T) {
	search := &scriptedSearcher{answers: []string{urlsFor("a", "b", "c", "d", "e")}}
	fetch := &fakeFetcher{known: known("a", "b", "c", "d", "e")}
	p := &Pipeline{Extractor: fakeExtractor{sc: cooking()}, Searcher: search, Fetcher: fetch}

	res, err := p.Run(context.Background(), "instagram", "cooking creators")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stage2Ran || len(search.prompts) != 1 {
		t.Fatalf("stage 2 must not run with exactly 5 profiles")
	}
	if len(res.Profiles) != 5 {
		t.Fatalf("got %d profiles", len(res.Profiles))
	}
}

func TestRun_CountsScrapedProfilesNotURLs(t *testing.T) {
	// six urls but the scraper only knows four of them
	search := &scriptedSearcher{answers: []string{
		urlsFor("a", "b", "c", "d", "x", "y"),
		"nothing new",
	}}
	fetch := &fakeFetcher{known: known("a", "b", "c", "d")}
	p := &Pipeline{Extractor: fakeExtractor{sc: cooking()}, Searcher: search, Fetcher: fetch}

	res, err := p.Run(context.Background(), "instagram", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Stage2Ran {
		t.Fatalf("stage 2 should run: 4 scraped profiles")
	}
	if len(fetch.calls) != 1 {
		t.Fatalf("stage 2 found no urls, no second fetch expected")
	}
}

func TestRun_FirstOccurrenceWins(t *testing.T) {
	search := &scriptedSearcher{answers: []string{urlsFor("a"), urlsFor("a", "b")}}
	fetch := &fakeFetcher{known: known("a", "b")}
	p := &Pipeline{Extractor: fakeExtractor{sc: cooking()}, Searcher: search, Fetcher: fetch}

	res, err := p.Run(context.Background(), "instagram", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Profiles) != 2 {
		t.Fatalf("got %d profiles", len(res.Profiles))
	}
	if got := payload.ExtractProfile(res.Profiles[0]).Account; got != "a" {
		t.Fatalf("order by first occurrence, got %q", got)
	}
	for _, c := range fetch.calls[1] {
		if c == "https://www.instagram.com/a/" {
			t.Fatalf("already scraped url fetched again")
		}
	}
}

func TestRun_MissingCategoryFails(t *testing.T) {
	search := &scriptedSearcher{}
	p := &Pipeline{Extractor: fakeExtractor{sc: SearchContext{Location: "Portugal"}}, Searcher: search, Fetcher: &fakeFetcher{}}

	_, err := p.Run(context.Background(), "instagram", "find creators in Portugal")
	if !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
	if len(search.prompts) != 0 {
		t.Fatalf("no search may run without a category")
	}
}

func TestRun_FetchErrorSurfaces(t *testing.T) {
	search := &scriptedSearcher{answers: []string{urlsFor("a")}}
	boom := errors.New("upstream returned HTTP 502")
	p := &Pipeline{
		Extractor: fakeExtractor{sc: cooking()},
		Searcher:  search,
		Fetcher:   failingFetcher{err: boom},
	}
	if _, err := p.Run(context.Background(), "instagram", "q"); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestRun_CheckpointStops(t *testing.T) {
	stopped := errors.New("stopped by user")
	search := &scriptedSearcher{answers: []string{urlsFor("a")}}
	p := &Pipeline{
		Extractor: fakeExtractor{sc: cooking()},
		Searcher:  search,
		Fetcher:   &fakeFetcher{known: known("a")},
		Checkpoint: func(ctx context.Context, stage string) error {
			if stage == "stage2" {
				return stopped
			}
			return nil
		},
	}
	if _, err := p.Run(context.Background(), "instagram", "q"); !errors.Is(err, stopped) {
		t.Fatalf("expected stop, got %v", err)
	}
	if len(search.prompts) != 1 {
		t.Fatalf("stage 2 search should not run after stop")
	}
}

type failingFetcher struct{ err error }

func (f failingFetcher) Fetch(ctx context.Context, platform string, urls []string) ([]payload.Value, error) {
	return nil, f.err
}

func TestExtractProfileURLs(t *testing.T) {
	text := `Top picks:
1. https://www.instagram.com/chef.lisboa/ - Time Out
2. instagram.com/Chef.Lisboa (duplicate)
3. https://instagram.com/p/Cx123/ (a post, not a profile)
4. https://www.instagram.com/tasca_da_ana?hl=en
5. https://www.tiktok.com/@tok.cook`
	got := ExtractProfileURLs("instagram", text)
	want := []string{"https://www.instagram.com/chef.lisboa/", "https://www.instagram.com/tasca_da_ana/"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v", got)
	}
	tt := ExtractProfileURLs("tiktok", text)
	if len(tt) != 1 || tt[0] != "https://www.tiktok.com/@tok.cook" {
		t.Fatalf("tiktok %v", tt)
	}
}

func TestParseSearchContext(t *testing.T) {
	sc := ParseSearchContext("instagram", "Sure:\n```json\n{\"category\":\"cooking\",\"location\":\"Portugal\",\"results_count\":\"5\"}\n```")
	if sc.Category != "cooking" || sc.Location != "Portugal" || sc.ResultsCount != 5 {
		t.Fatalf("got %+v", sc)
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	tt := ParseSearchContext("tiktok", `{"category":"fitness","location":"Brazil","search_phrases":["fitness brasil","treino em casa","academia","extra"]}`)
	if tt.CountryCode != "BR" {
		t.Fatalf("country code %q", tt.CountryCode)
	}
	if len(tt.SearchPhrases) != 3 || tt.SearchPhrases[0] != "fitness brasil" {
		t.Fatalf("phrases %v", tt.SearchPhrases)
	}

	few := ParseSearchContext("tiktok", `{"category":"baking","country_code":"pt"}`)
	if few.CountryCode != "PT" || len(few.SearchPhrases) < 2 {
		t.Fatalf("got %+v", few)
	}

	empty := ParseSearchContext("instagram", `{"location":"Lisbon"}`)
	if !errors.Is(empty.Validate(), ErrMissingCategory) {
		t.Fatalf("missing category should fail validation")
	}
	if !errors.Is(ParseSearchContext("instagram", "garbage").Validate(), ErrMissingCategory) {
		t.Fatalf("unparseable answer should fail validation")
	}
}

type fixedProvider struct{ text string }

func (p fixedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return p.text, nil
}

func TestLLMExtractor(t *testing.T) {
	e := LLMExtractor{Provider: fixedProvider{text: `{"category":"cooking","location":"Portugal"}`}}
	sc, _, err := e.Extract(context.Background(), "instagram", "find 5 Portuguese cooking creators on Instagram")
	if err != nil || sc.Category != "cooking" || sc.Location != "Portugal" {
		t.Fatalf("got %+v err=%v", sc, err)
	}
	e = LLMExtractor{Provider: fixedProvider{text: `{"category":""}`}}
	if _, _, err := e.Extract(context.Background(), "instagram", "x"); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("got %v", err)
	}
}

func TestNormalizeCountryCode(t *testing.T) {
	cases := []struct{ code, location, want string }{
		{"br", "", "BR"},
		{"UK", "", "GB"},
		{"", "Japan", "JP"},
		{"", "Lisbon, Portugal", "PT"},
		{"", "Portugal or Spain", "PT"},
		{"", "Spain or Portugal", "PT"},
		{"", "somewhere", ""},
	}
	for _, c := range cases {
		// repeat so an unordered lookup would show up as a flaky result
		for i := 0; i < 20; i++ {
			if got := NormalizeCountryCode(c.code, c.location); got != c.want {
				t.Fatalf("NormalizeCountryCode(%q, %q) = %q, want %q", c.code, c.location, got, c.want)
			}
		}
	}
}
