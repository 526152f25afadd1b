package payload

import "strings"

var (
	recordIDKeys  = []string{"id", "pk", "post_id", "video_id", "aweme_id", "shortcode", "code"}
	recordURLKeys = []string{"url", "post_url", "video_url", "webVideoUrl", "permalink", "link"}
)

// RecordKey derives the merge key for a post-like record: its id, else its URL,
// else an id or URL found by deep search. Empty means the record is unkeyable.
func RecordKey(v Value) string {
	if !v.IsObject() {
		return ""
	}
	for _, k := range recordIDKeys {
		if s, ok := stringOf(v.Get(k)); ok {
			return "id:" + s
		}
	}
	for _, k := range recordURLKeys {
		if s, ok := stringOf(v.Get(k)); ok {
			return "url:" + normalizeURLKey(s)
		}
	}
	if s, ok := DeepPickString(v, recordIDKeys...); ok {
		return "id:" + s
	}
	if s, ok := DeepPickString(v, recordURLKeys...); ok {
		return "url:" + normalizeURLKey(s)
	}
	return ""
}

func normalizeURLKey(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimRight(s, "/"))
}

// MergeRecords merges post records collected from several upstream arrays.
// Records sharing a RecordKey collapse into one; for each field the value from
// the earliest list (then earliest position) that has it non-empty wins, and
// nested objects are merged the same way. Unkeyable records are kept as-is and
// never merged with each other. Output order is order of first appearance.
func MergeRecords(lists ...[]Value) []Value {
	var (
		out   []Value
		index = map[string]int{}
	)
	for _, list := range lists {
		for _, rec := range list {
			key := RecordKey(rec)
			if key == "" {
				out = append(out, rec)
				continue
			}
			if i, ok := index[key]; ok {
				out[i] = MergeValues(out[i], rec)
				continue
			}
			index[key] = len(out)
			out = append(out, rec)
		}
	}
	return out
}

// MergeValues fills the empty parts of first with data from second. Non-empty
// values already in first are never overwritten.
func MergeValues(first, second Value) Value {
	if first.IsEmpty() {
		return second
	}
	if !first.IsObject() || !second.IsObject() {
		return first
	}
	merged := make(map[string]Value, len(first.Fields())+len(second.Fields()))
	for k, v := range first.Fields() {
		merged[k] = v
	}
	for k, v := range second.Fields() {
		cur, ok := merged[k]
		switch {
		case !ok || cur.IsEmpty():
			merged[k] = v
		case cur.IsObject() && v.IsObject():
			merged[k] = MergeValues(cur, v)
		}
	}
	return Object(merged)
}
