package chat

import (
	"fmt"

	"github.com/suPer8Hu/creator-scout/internal/task"
)

const intentSystemPrompt = `You are a creator-discovery assistant for Instagram and TikTok.
Reply to the user normally. When the latest message asks for one of these actions, end your reply with exactly one marker line:
- find or discover Instagram creators: [DETECTED_ENDPOINT: /instagram/search]
- find or discover TikTok creators: [DETECTED_ENDPOINT: /tiktok/search]
- analyze one Instagram profile: [DETECTED_ENDPOINT: /instagram/analysis]
- analyze one TikTok profile: [DETECTED_ENDPOINT: /tiktok/analysis]
Otherwise end with [DETECTED_ENDPOINT: none].`

func paramsPrompt(topic task.Topic) string {
	if topic.IsSearch() {
		return fmt.Sprintf(`Extract the %s creator search request from the user's message.
Answer with one JSON object and nothing else: {"query": "<what kind of creators, where, how many>"}
Use {"query": ""} if the message does not say what to search for.`, topic.Platform())
	}
	return fmt.Sprintf(`Extract the %s profile the user wants analyzed.
Answer with one JSON object and nothing else: {"profile": "<username or profile URL>"}
Use {"profile": ""} if no profile is named.`, topic.Platform())
}

func clarifyText(topic task.Topic) string {
	if topic.IsSearch() {
		return fmt.Sprintf("I can search %s for creators, but I need a bit more detail. What niche or topic are you looking for, and in which location?", platformName(topic))
	}
	return fmt.Sprintf("I can analyze a %s profile. Which account should I look at? A username or profile link works.", platformName(topic))
}

func platformName(topic task.Topic) string {
	if topic.Platform() == task.PlatformTikTok {
		return "TikTok"
	}
	return "Instagram"
}
