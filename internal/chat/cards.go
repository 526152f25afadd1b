package chat

import (
	"encoding/json"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/task"
)

const (
	InstagramCardSentinel = "[INSTAGRAM_PROFILE_ANALYSIS]"
	TikTokCardSentinel    = "[TIKTOK_PROFILE_ANALYSIS]"

	failedPrefix = "Task failed: "
)

func CardSentinel(platform string) string {
	if platform == task.PlatformTikTok {
		return TikTokCardSentinel
	}
	return InstagramCardSentinel
}

// AnalysisCard is the body of a profile analysis message.
type AnalysisCard struct {
	Profile  any `json:"profile"`
	Data     any `json:"data"`
	Analysis any `json:"analysis"`
}

// FormatAnalysisCard renders the sentinel line followed by the card JSON.
func FormatAnalysisCard(platform string, card AnalysisCard) (string, error) {
	b, err := json.Marshal(card)
	if err != nil {
		return "", err
	}
	return CardSentinel(platform) + "\n" + string(b), nil
}

// SplitAnalysisCard returns the platform and raw card JSON of a card message.
func SplitAnalysisCard(content string) (platform string, body json.RawMessage, ok bool) {
	s := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(s, InstagramCardSentinel):
		platform, s = task.PlatformInstagram, strings.TrimPrefix(s, InstagramCardSentinel)
	case strings.HasPrefix(s, TikTokCardSentinel):
		platform, s = task.PlatformTikTok, strings.TrimPrefix(s, TikTokCardSentinel)
	default:
		return "", nil, false
	}
	s = strings.TrimSpace(s)
	if !json.Valid([]byte(s)) {
		return "", nil, false
	}
	return platform, json.RawMessage(s), true
}

func FailureText(errMsg string) string {
	if strings.TrimSpace(errMsg) == "" {
		errMsg = "unknown error"
	}
	return failedPrefix + errMsg
}
