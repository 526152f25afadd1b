package chat

import (
	"regexp"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/task"
)

var (
	markerRe     = regexp.MustCompile(`(?i)\[\s*DETECTED_ENDPOINT\s*:\s*([^\]\n]*?)\s*\]`)
	jsonMarkerRe = regexp.MustCompile(`(?i)\{[^{}]*"detected_endpoint"\s*:\s*"([^"]*)"[^{}]*\}`)
	legacyRe     = regexp.MustCompile(`(?i)\bDETECTED_ENDPOINT\s*:\s*(/?[a-z]+[_/][a-z]+|none)\b`)
	bareRe       = regexp.MustCompile(`(?i)^(instagram|tiktok)_(search|analysis|profile)$`)
)

// Intent is the action a chat answer asked for. The zero value means no action.
type Intent struct {
	Topic task.Topic
}

func (i Intent) None() bool { return i.Topic == "" }

// Endpoint is the canonical marker path, e.g. /instagram/analysis.
func (i Intent) Endpoint() string {
	if i.None() {
		return ""
	}
	return i.Topic.Endpoint()
}

// DetectIntent reads the endpoint marker out of a chat answer and returns the
// answer with markers removed. The bracketed form wins over the JSON form,
// which wins over the legacy single-word forms.
func DetectIntent(answer string) (Intent, string) {
	if m := markerRe.FindStringSubmatch(answer); m != nil {
		return resolveEndpoint(m[1]), clean(markerRe.ReplaceAllString(answer, ""))
	}
	if m := jsonMarkerRe.FindStringSubmatch(answer); m != nil {
		return resolveEndpoint(m[1]), clean(jsonMarkerRe.ReplaceAllString(answer, ""))
	}
	if m := legacyRe.FindStringSubmatch(answer); m != nil {
		return resolveEndpoint(m[1]), clean(legacyRe.ReplaceAllString(answer, ""))
	}

	lines := strings.Split(strings.TrimSpace(answer), "\n")
	last := strings.Trim(strings.TrimSpace(lines[len(lines)-1]), ".`*")
	if bareRe.MatchString(last) {
		return resolveEndpoint(last), clean(strings.Join(lines[:len(lines)-1], "\n"))
	}
	return Intent{}, clean(answer)
}

func resolveEndpoint(v string) Intent {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.Trim(v, "/ ")
	if v == "" || v == "none" {
		return Intent{}
	}
	v = strings.ReplaceAll(v, "_", "/")
	platform, kind, ok := strings.Cut(v, "/")
	if !ok {
		return Intent{}
	}
	t, ok := task.TopicFor(platform, kind)
	if !ok {
		return Intent{}
	}
	return Intent{Topic: t}
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
