package discovery

import (
	"regexp"
	"strings"
)

var (
	instagramURL = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/([A-Za-z0-9._]{1,30})`)
	tiktokURL    = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|m\.)?tiktok\.com/@([A-Za-z0-9._]{2,24})`)

	// first path segments that are never profiles
	instagramReserved = map[string]bool{
		"p": true, "reel": true, "reels": true, "explore": true, "stories": true,
		"accounts": true, "tv": true, "about": true, "developer": true, "direct": true,
		"legal": true, "web": true,
	}
)

// ExtractProfileURLs returns canonical profile URLs for platform found in text,
// in order of first appearance.
func ExtractProfileURLs(platform, text string) []string {
	re := instagramURL
	if platform == "tiktok" {
		re = tiktokURL
	}
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		u, ok := CanonicalProfileURL(platform, m[1])
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// CanonicalProfileURL builds the canonical URL for a handle or a profile URL.
func CanonicalProfileURL(platform, handleOrURL string) (string, bool) {
	s := strings.TrimSpace(handleOrURL)
	if strings.Contains(s, "/") {
		re := instagramURL
		if platform == "tiktok" {
			re = tiktokURL
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		s = m[1]
	}
	handle := strings.ToLower(strings.Trim(strings.TrimPrefix(s, "@"), "."))
	if handle == "" {
		return "", false
	}
	if platform == "tiktok" {
		return "https://www.tiktok.com/@" + handle, true
	}
	if instagramReserved[handle] {
		return "", false
	}
	return "https://www.instagram.com/" + handle + "/", true
}
