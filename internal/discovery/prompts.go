package discovery

import (
	"fmt"
	"strings"
)

func platformLabel(platform string) string {
	if platform == "tiktok" {
		return "TikTok"
	}
	return "Instagram"
}

func contextSystemPrompt(platform string) string {
	var sb strings.Builder
	sb.WriteString("Extract search parameters for finding ")
	sb.WriteString(platformLabel(platform))
	sb.WriteString(" creators from the user's request.\n")
	sb.WriteString("Answer with one JSON object and nothing else. Fields:\n")
	sb.WriteString(`- "category": the creator niche (required; empty string if none is stated)` + "\n")
	sb.WriteString(`- "location": country, region or city, if any` + "\n")
	sb.WriteString(`- "followers_range": e.g. "10k-100k", if any` + "\n")
	sb.WriteString(`- "results_count": number of creators requested, if any` + "\n")
	if platform == "tiktok" {
		sb.WriteString(`- "country_code": ISO 3166 two-letter code for the location, if any` + "\n")
		sb.WriteString(`- "search_phrases": 2 or 3 literal search phrases, best first` + "\n")
	}
	return sb.String()
}

const searchSystemPrompt = "You are a research assistant with web search. Report only what your sources support."

func describe(sc SearchContext) string {
	parts := []string{"category: " + sc.Category}
	if sc.Location != "" {
		parts = append(parts, "location: "+sc.Location)
	}
	if sc.CountryCode != "" {
		parts = append(parts, "country code: "+sc.CountryCode)
	}
	if sc.FollowersRange != "" {
		parts = append(parts, "followers: "+sc.FollowersRange)
	}
	if len(sc.SearchPhrases) > 0 {
		parts = append(parts, "search phrases: "+strings.Join(sc.SearchPhrases, "; "))
	}
	return strings.Join(parts, "\n")
}

func wanted(sc SearchContext) int {
	if sc.ResultsCount > 0 {
		return sc.ResultsCount
	}
	return 10
}

// Stage1Prompt only accepts profiles a credible external source names.
func Stage1Prompt(platform, query string, sc SearchContext) string {
	label := platformLabel(platform)
	return fmt.Sprintf(`Find up to %d %s creator profiles for this request.

Request: %s
%s

Rules:
- List only profiles that a credible external source (press article, agency list, directory, the creator's own site) links or names.
- Never invent or guess handles.
- Answer with one full profile URL per line (%s), then the source for each.`,
		wanted(sc), label, query, describe(sc), profileURLExample(platform))
}

// Stage2Prompt widens the net: inference from bios, linked sites and
// cross-platform mentions is allowed.
func Stage2Prompt(platform, query string, sc SearchContext, exclude []string) string {
	label := platformLabel(platform)
	var ex string
	if len(exclude) > 0 {
		ex = "\nAlready found (do not repeat):\n" + strings.Join(exclude, "\n") + "\n"
	}
	return fmt.Sprintf(`Find more %s creator profiles for this request.

Request: %s
%s
%s
You may infer profiles from creator bios, personal or linked websites, and mentions on other platforms (YouTube, blogs, podcasts).
Answer with one full profile URL per line (%s).`,
		label, query, describe(sc), ex, profileURLExample(platform))
}

func profileURLExample(platform string) string {
	if platform == "tiktok" {
		return "https://www.tiktok.com/@handle"
	}
	return "https://www.instagram.com/handle/"
}
