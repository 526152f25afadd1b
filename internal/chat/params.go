package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/discovery"
	"github.com/suPer8Hu/creator-scout/internal/payload"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

var ErrParamsMissing = errors.New("task parameters could not be extracted")

// ExtractParams runs the narrow second call that pulls the task input out of
// the user's message. Profile analysis also accepts a profile URL present in
// the message when the model gives nothing usable.
func ExtractParams(ctx context.Context, p ai.Provider, topic task.Topic, text string) (task.Input, ai.Usage, error) {
	c, err := ai.Ask(ctx, p, paramsPrompt(topic), text)
	if err != nil {
		if in, ok := profileFromText(topic, text); ok {
			return in, ai.Usage{}, nil
		}
		return task.Input{}, ai.Usage{}, fmt.Errorf("%w: %v", ErrParamsMissing, err)
	}
	if in, ok := ParseParams(topic, c.Text); ok {
		return in, c.Usage, nil
	}
	if in, ok := profileFromText(topic, text); ok {
		return in, c.Usage, nil
	}
	return task.Input{}, c.Usage, ErrParamsMissing
}

// ParseParams reads {"query"} or {"profile"} from a model answer.
func ParseParams(topic task.Topic, answer string) (task.Input, bool) {
	var raw map[string]any
	if err := ai.DecodeJSONAnswer(answer, &raw); err != nil {
		return task.Input{}, false
	}
	v := payload.FromAny(raw)

	if topic.IsSearch() {
		q, _ := payload.PickString(v, "query", "search_query", "request")
		if !usable(q) {
			return task.Input{}, false
		}
		return task.Input{Query: q}, true
	}

	prof, _ := payload.PickString(v, "profile", "username", "handle", "url", "profile_url")
	if !usable(prof) {
		return task.Input{}, false
	}
	u, ok := discovery.CanonicalProfileURL(topic.Platform(), prof)
	if !ok {
		return task.Input{}, false
	}
	return task.Input{Profile: u}, true
}

func profileFromText(topic task.Topic, text string) (task.Input, bool) {
	if topic.IsSearch() {
		return task.Input{}, false
	}
	urls := discovery.ExtractProfileURLs(topic.Platform(), text)
	if len(urls) == 0 {
		return task.Input{}, false
	}
	return task.Input{Profile: urls[0]}, true
}

func usable(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "n/a", "unknown":
		return false
	}
	return true
}
