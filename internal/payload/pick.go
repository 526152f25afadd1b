package payload

import (
	"math"
	"strings"
)

// MaxDeepPickDepth bounds the recursive DeepPick* search.
const MaxDeepPickDepth = 4

// wrapperArrayKeys are the keys upstream providers use to nest a list inside an object.
var wrapperArrayKeys = []string{"items", "data", "results", "edges", "nodes", "list"}

// PickString returns the first non-empty scalar under keys, tried in priority
// order on v and then on each object nested one level below v.
func PickString(v Value, keys ...string) (string, bool) {
	return pick(v, keys, stringOf)
}

// PickNumber is like PickString but parses the value as a count, so "12.3k" works.
func PickNumber(v Value, keys ...string) (float64, bool) {
	return pick(v, keys, numberOf)
}

// PickBool accepts JSON booleans as well as "true"/"false" strings and 0/1.
func PickBool(v Value, keys ...string) (bool, bool) {
	return pick(v, keys, boolOf)
}

// PickImageURL returns the first http(s) URL found under keys. Values may be a
// bare string, an object with url/src, or an array of either.
func PickImageURL(v Value, keys ...string) (string, bool) {
	return pick(v, keys, imageURLOf)
}

// PickArray returns the first non-empty list under keys. An object wrapping the
// list under a conventional key ("items", "data", ...) is unwrapped.
func PickArray(v Value, keys ...string) ([]Value, bool) {
	return pick(v, keys, arrayOf)
}

func pick[T any](v Value, keys []string, conv func(Value) (T, bool)) (T, bool) {
	var zero T
	if !v.IsObject() {
		return zero, false
	}
	for _, k := range keys {
		if out, ok := conv(v.Get(k)); ok {
			return out, true
		}
	}
	for _, wk := range v.Keys() {
		child := v.Get(wk)
		if !child.IsObject() {
			continue
		}
		for _, k := range keys {
			if out, ok := conv(child.Get(k)); ok {
				return out, true
			}
		}
	}
	return zero, false
}

// DeepPickString searches breadth-first, up to MaxDeepPickDepth levels, for any
// of keys. Shallower matches win; siblings are visited in sorted key order.
func DeepPickString(v Value, keys ...string) (string, bool) {
	return deepPick(v, keys, stringOf)
}

func DeepPickNumber(v Value, keys ...string) (float64, bool) {
	return deepPick(v, keys, numberOf)
}

func DeepPickImageURL(v Value, keys ...string) (string, bool) {
	return deepPick(v, keys, imageURLOf)
}

func DeepPickArray(v Value, keys ...string) ([]Value, bool) {
	return deepPick(v, keys, arrayOf)
}

func deepPick[T any](v Value, keys []string, conv func(Value) (T, bool)) (T, bool) {
	var zero T
	level := []Value{v}
	for depth := 0; depth <= MaxDeepPickDepth && len(level) > 0; depth++ {
		var next []Value
		for _, node := range level {
			switch node.Kind() {
			case KindObject:
				for _, k := range keys {
					if out, ok := conv(node.Get(k)); ok {
						return out, true
					}
				}
				for _, k := range node.Keys() {
					child := node.Get(k)
					if child.IsObject() || child.IsArray() {
						next = append(next, child)
					}
				}
			case KindArray:
				for _, item := range node.Items() {
					if item.IsObject() || item.IsArray() {
						next = append(next, item)
					}
				}
			}
		}
		level = next
	}
	return zero, false
}

// LookupString tries priority lookup first and falls back to a deep search.
func LookupString(v Value, keys ...string) (string, bool) {
	if s, ok := PickString(v, keys...); ok {
		return s, true
	}
	return DeepPickString(v, keys...)
}

func LookupNumber(v Value, keys ...string) (float64, bool) {
	if n, ok := PickNumber(v, keys...); ok {
		return n, true
	}
	return DeepPickNumber(v, keys...)
}

func LookupImageURL(v Value, keys ...string) (string, bool) {
	if s, ok := PickImageURL(v, keys...); ok {
		return s, true
	}
	return DeepPickImageURL(v, keys...)
}

func LookupArray(v Value, keys ...string) ([]Value, bool) {
	if a, ok := PickArray(v, keys...); ok {
		return a, true
	}
	return DeepPickArray(v, keys...)
}

func stringOf(v Value) (string, bool) {
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func numberOf(v Value) (float64, bool) {
	switch v.Kind() {
	case KindNumber:
		n, _ := v.Num()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case KindString:
		s, _ := v.Str()
		return ParseCount(s)
	case KindObject:
		// {"count": 123} wrappers, e.g. edge_followed_by.
		for _, k := range []string{"count", "value", "total"} {
			if n, ok := numberOf(v.Get(k)); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func boolOf(v Value) (bool, bool) {
	switch v.Kind() {
	case KindBool:
		return v.BoolValue()
	case KindNumber:
		n, _ := v.Num()
		if n == 0 || n == 1 {
			return n == 1, true
		}
	case KindString:
		s, _ := v.Str()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

func imageURLOf(v Value) (string, bool) {
	switch v.Kind() {
	case KindString:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s, true
		}
	case KindObject:
		for _, k := range []string{"url", "src", "uri", "href"} {
			if s, ok := imageURLOf(v.Get(k)); ok {
				return s, true
			}
		}
		if list, ok := arrayOf(v.Get("url_list")); ok {
			return imageURLOf(Array(list...))
		}
	case KindArray:
		for _, item := range v.Items() {
			if s, ok := imageURLOf(item); ok {
				return s, true
			}
		}
	}
	return "", false
}

func arrayOf(v Value) ([]Value, bool) {
	switch v.Kind() {
	case KindArray:
		items := v.Items()
		return items, len(items) > 0
	case KindObject:
		for _, k := range wrapperArrayKeys {
			if items := v.Get(k).Items(); len(items) > 0 {
				return items, true
			}
		}
	}
	return nil, false
}
