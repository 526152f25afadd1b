package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/enrich"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/payload"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

const (
	cardMaxPosts    = 12
	cardMaxHashtags = 10
)

type ProfileSummary struct {
	Account    string `json:"account"`
	FullName   string `json:"fullName,omitempty"`
	ProfileURL string `json:"profileUrl"`
	Followers  int64  `json:"followers"`
	Following  int64  `json:"following,omitempty"`
	PostsCount int64  `json:"postsCount,omitempty"`
	IsPrivate  bool   `json:"isPrivate"`
	IsVerified bool   `json:"isVerified,omitempty"`
	Bio        string `json:"bio,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type ProfileData struct {
	Posts          []payload.Post `json:"posts"`
	TopHashtags    []HashtagCount `json:"topHashtags"`
	AvgLikes       float64        `json:"avgLikes"`
	AvgComments    float64        `json:"avgComments"`
	EngagementRate float64        `json:"engagementRate"`
}

type ProfileAnalysis struct {
	enrich.Evaluation
	Usage ai.Usage `json:"usage"`
}

func (r *Runner) runAnalysis(ctx context.Context, t *task.Task, in task.Input) (string, error) {
	platform := t.Topic.Platform()
	if strings.TrimSpace(in.Profile) == "" {
		return "", ErrMissingInput
	}
	url, ok := discovery.CanonicalProfileURL(platform, in.Profile)
	if !ok {
		return "", fmt.Errorf("%w: invalid profile %q", ErrMissingInput, in.Profile)
	}
	check := r.checkpoint(t.TaskID)

	if err := check(ctx, "fetch"); err != nil {
		return "", err
	}
	recs, err := r.Fetcher.Fetch(ctx, platform, []string{url})
	if err != nil {
		return "", fmt.Errorf("fetch profile: %w", err)
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrProfileNotFound, url)
	}
	rec := recs[0]
	p := payload.ExtractProfile(rec)
	if p.URL == "" {
		p.URL = url
	}

	if err := check(ctx, "analysis"); err != nil {
		return "", err
	}
	ev, usage, err := r.Evaluator.Evaluate(ctx, p, "")
	if err != nil {
		return "", err
	}
	if !ev.Private && r.Sink != nil {
		row := &enrich.AnalyzedProfile{
			TaskID:          t.TaskID,
			Platform:        platform,
			Account:         p.Account,
			ProfileURL:      p.URL,
			Followers:       p.Followers,
			IsPrivate:       p.IsPrivate,
			AnalysisSummary: ev.Summary,
			AnalysisScore:   ev.Score,
			Relevance:       ev.Relevance,
		}
		if raw, err := rec.MarshalJSON(); err == nil {
			row.Raw = raw
		}
		if err := r.Sink.Save(ctx, row); err != nil {
			logging.With(ctx, r.Log).Warn().Err(err).Msg("persist analyzed profile failed")
		}
	}

	return chat.FormatAnalysisCard(platform, chat.AnalysisCard{
		Profile: ProfileSummary{
			Account:    p.Account,
			FullName:   p.FullName,
			ProfileURL: p.URL,
			Followers:  p.Followers,
			Following:  p.Following,
			PostsCount: p.PostCount,
			IsPrivate:  p.IsPrivate,
			IsVerified: p.Verified,
			Bio:        p.Bio,
			AvatarURL:  p.AvatarURL,
		},
		Data:     BuildProfileData(p),
		Analysis: ProfileAnalysis{Evaluation: ev, Usage: usage},
	})
}

// BuildProfileData summarizes the merged pinned and recent posts of a profile.
func BuildProfileData(p payload.Profile) ProfileData {
	d := ProfileData{Posts: []payload.Post{}, TopHashtags: []HashtagCount{}}
	counts := map[string]int{}
	var order []string
	var likes, comments int64
	for _, post := range p.Posts {
		likes += post.Likes
		comments += post.Comments
		for _, tag := range post.Hashtags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	if n := len(p.Posts); n > 0 {
		d.AvgLikes = float64(likes) / float64(n)
		d.AvgComments = float64(comments) / float64(n)
		if p.Followers > 0 {
			d.EngagementRate = (d.AvgLikes + d.AvgComments) / float64(p.Followers) * 100
		}
	}

	for _, tag := range order {
		d.TopHashtags = append(d.TopHashtags, HashtagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(d.TopHashtags, func(i, j int) bool { return d.TopHashtags[i].Count > d.TopHashtags[j].Count })
	if len(d.TopHashtags) > cardMaxHashtags {
		d.TopHashtags = d.TopHashtags[:cardMaxHashtags]
	}

	d.Posts = append(d.Posts, p.Posts...)
	if len(d.Posts) > cardMaxPosts {
		d.Posts = d.Posts[:cardMaxPosts]
	}
	return d
}
