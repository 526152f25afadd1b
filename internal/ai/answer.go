package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object in model answer")

// DecodeJSONAnswer parses a model answer into v. It tries the whole answer
// first, then the first balanced {...} block.
func DecodeJSONAnswer(answer string, v any) error {
	s := strings.TrimSpace(stripFences(answer))
	if s == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	block, ok := FirstJSONObject(s)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(block), v)
}

// FirstJSONObject returns the first balanced {...} span, honoring string literals.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inStr, esc := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inStr {
				switch {
				case esc:
					esc = false
				case c == '\\':
					esc = true
				case c == '"':
					inStr = false
				}
				continue
			}
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
