package client

import (
	"encoding/json"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/payload"
)

type Kind string

const (
	KindText          Kind = "text"
	KindAnalysisCard  Kind = "analysis_card"
	KindSearchResults Kind = "search_results"
)

type ProfileCard struct {
	Account   string
	FullName  string
	URL       string
	AvatarURL string
	Bio       string
	Followers int64
	IsPrivate bool
	Summary   string
	Score     int
	Relevance int
}

type Hashtag struct {
	Tag   string
	Count int
}

type Rendered struct {
	Kind     Kind
	Text     string
	Platform string
	Profiles []ProfileCard
	// analysis cards only
	Posts          []payload.Post
	TopHashtags    []Hashtag
	EngagementRate float64
}

// Render classifies assistant content: an analysis card by its sentinel,
// search results by the presence of analyzedProfiles, anything else as text.
func Render(content string) Rendered {
	if platform, raw, ok := chat.SplitAnalysisCard(content); ok {
		if r, ok := renderCard(platform, raw); ok {
			return r
		}
	}
	if r, ok := renderSearch(content); ok {
		return r
	}
	return Rendered{Kind: KindText, Text: content}
}

func renderCard(platform string, raw json.RawMessage) (Rendered, bool) {
	v, err := payload.Parse(raw)
	if err != nil || !v.IsObject() {
		return Rendered{}, false
	}
	card := profileCard(v.Get("profile"))
	applyEvaluation(&card, v.Get("analysis"))

	r := Rendered{Kind: KindAnalysisCard, Platform: platform, Profiles: []ProfileCard{card}}
	data := v.Get("data")
	if posts, ok := payload.PickArray(data, "posts"); ok {
		for _, p := range posts {
			r.Posts = append(r.Posts, payload.ExtractPost(p))
		}
	}
	if tags, ok := payload.PickArray(data, "topHashtags", "top_hashtags"); ok {
		for _, t := range tags {
			tag, _ := payload.PickString(t, "tag")
			n, _ := payload.PickNumber(t, "count")
			if tag != "" {
				r.TopHashtags = append(r.TopHashtags, Hashtag{Tag: tag, Count: int(n)})
			}
		}
	}
	r.EngagementRate, _ = payload.PickNumber(data, "engagementRate", "engagement_rate")
	return r, true
}

func renderSearch(content string) (Rendered, bool) {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "{") {
		return Rendered{}, false
	}
	v, err := payload.Parse([]byte(s))
	if err != nil || !v.IsObject() {
		return Rendered{}, false
	}
	list := v.Get("analyzedProfiles")
	if !list.IsArray() {
		return Rendered{}, false
	}
	r := Rendered{Kind: KindSearchResults}
	r.Platform, _ = payload.PickString(v, "platform")
	for _, item := range list.Items() {
		card := profileCard(item)
		applyEvaluation(&card, item)
		r.Profiles = append(r.Profiles, card)
	}
	return r, true
}

func profileCard(v payload.Value) ProfileCard {
	p := payload.ExtractProfile(v)
	c := ProfileCard{
		Account:   p.Account,
		FullName:  p.FullName,
		URL:       p.URL,
		AvatarURL: p.AvatarURL,
		Bio:       p.Bio,
		Followers: p.Followers,
		IsPrivate: p.IsPrivate,
	}
	if c.AvatarURL == "" {
		c.AvatarURL, _ = payload.PickImageURL(v, "avatarUrl")
	}
	return c
}

func applyEvaluation(c *ProfileCard, v payload.Value) {
	c.Summary, _ = payload.PickString(v, "analysisSummary", "summary")
	if n, ok := payload.PickNumber(v, "analysisScore", "score"); ok {
		c.Score = int(n)
	}
	if n, ok := payload.PickNumber(v, "relevance"); ok {
		c.Relevance = int(n)
	}
}
