package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

var ErrMissingCategory = errors.New("search context: category is required")

// SearchContext is what the extractor pulls out of the user's free-text query.
type SearchContext struct {
	Category       string   `json:"category" validate:"required"`
	Location       string   `json:"location,omitempty"`
	FollowersRange string   `json:"followers_range,omitempty"`
	ResultsCount   int      `json:"results_count,omitempty" validate:"gte=0,lte=100"`
	CountryCode    string   `json:"country_code,omitempty" validate:"omitempty,len=2,alpha"`
	SearchPhrases  []string `json:"search_phrases,omitempty" validate:"omitempty,max=3,dive,required"`
}

var validate = validator.New()

// Validate reports ErrMissingCategory for an empty category and a wrapped
// validator error for anything else.
func (sc SearchContext) Validate() error {
	if strings.TrimSpace(sc.Category) == "" {
		return ErrMissingCategory
	}
	if err := validate.Struct(sc); err != nil {
		return fmt.Errorf("search context: %w", err)
	}
	return nil
}

type Extractor interface {
	Extract(ctx context.Context, platform, query string) (SearchContext, ai.Usage, error)
}

// LLMExtractor asks a chat model to turn the query into a SearchContext.
type LLMExtractor struct {
	Provider ai.Provider
}

func (e LLMExtractor) Extract(ctx context.Context, platform, query string) (SearchContext, ai.Usage, error) {
	c, err := ai.Ask(ctx, e.Provider, contextSystemPrompt(platform), query)
	if err != nil {
		return SearchContext{}, ai.Usage{}, fmt.Errorf("extract search context: %w", err)
	}
	sc := ParseSearchContext(platform, c.Text)
	if err := sc.Validate(); err != nil {
		return sc, c.Usage, err
	}
	return sc, c.Usage, nil
}

// ParseSearchContext reads a model answer leniently. A missing category is left
// empty for Validate to reject.
func ParseSearchContext(platform, answer string) SearchContext {
	var raw map[string]any
	if err := ai.DecodeJSONAnswer(answer, &raw); err != nil {
		return SearchContext{}
	}
	v := payload.FromAny(raw)

	var sc SearchContext
	sc.Category, _ = payload.PickString(v, "category", "niche", "topic")
	sc.Location, _ = payload.PickString(v, "location", "country", "region", "city")
	sc.FollowersRange, _ = payload.PickString(v, "followers_range", "followersRange", "followers")
	if n, ok := payload.PickNumber(v, "results_count", "resultsCount", "count"); ok && n > 0 {
		sc.ResultsCount = int(n)
		if sc.ResultsCount > 100 {
			sc.ResultsCount = 100
		}
	}
	sc.Category = strings.TrimSpace(sc.Category)

	if platform == "tiktok" {
		cc, _ := payload.PickString(v, "country_code", "countryCode")
		sc.CountryCode = NormalizeCountryCode(cc, sc.Location)
		if items, ok := payload.PickArray(v, "search_phrases", "searchPhrases", "phrases"); ok {
			for _, it := range items {
				if s, ok := it.Text(); ok && strings.TrimSpace(s) != "" {
					sc.SearchPhrases = append(sc.SearchPhrases, strings.TrimSpace(s))
				}
			}
		}
		sc.SearchPhrases = rankPhrases(sc)
	}
	return sc
}

// ordered: the first name found in a location wins
var countryNames = []struct{ name, code string }{
	{"portugal", "PT"},
	{"brazil", "BR"},
	{"brasil", "BR"},
	{"spain", "ES"},
	{"france", "FR"},
	{"germany", "DE"},
	{"italy", "IT"},
	{"united kingdom", "GB"},
	{"uk", "GB"},
	{"united states", "US"},
	{"usa", "US"},
	{"canada", "CA"},
	{"mexico", "MX"},
	{"india", "IN"},
	{"japan", "JP"},
}

// NormalizeCountryCode returns an upper-case ISO-3166 alpha-2 code, or "".
func NormalizeCountryCode(code, location string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "UK" {
		code = "GB"
	}
	if len(code) == 2 && isAlpha(code) {
		return code
	}
	loc := strings.ToLower(strings.TrimSpace(location))
	for _, c := range countryNames {
		if loc == c.name {
			return c.code
		}
	}
	for _, c := range countryNames {
		if len(c.name) > 3 && strings.Contains(loc, c.name) {
			return c.code
		}
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// rankPhrases keeps two or three distinct literal phrases, synthesizing from
// category and location when the model gave too few.
func rankPhrases(sc SearchContext) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] || len(out) >= 3 {
			return
		}
		seen[k] = true
		out = append(out, s)
	}
	for _, p := range sc.SearchPhrases {
		add(p)
	}
	if sc.Category != "" {
		if sc.Location != "" {
			add(sc.Category + " " + sc.Location)
		}
		add(sc.Category)
		add(sc.Category + " creator")
	}
	return out
}
