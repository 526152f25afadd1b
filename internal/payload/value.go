package payload

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is an intermediate representation of loosely shaped upstream JSON.
// Callers read it through the typed accessors and the Pick helpers instead of
// asserting on interface{} values.
type Value struct {
	kind Kind
	b    bool
	n    float64
	lit  string // original numeric literal, kept so large ids survive
	s    string
	arr  []Value
	obj  map[string]Value
}

var Null = Value{}

func String(s string) Value { return Value{kind: KindString, s: s} }

func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Parse decodes raw JSON into a Value. Numbers keep full precision until read.
func Parse(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Null, err
	}
	return FromAny(v), nil
}

// FromAny converts the output of encoding/json (or hand-built maps) into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Value{kind: KindNumber, n: f, lit: t.String()}
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case []any:
		out := make([]Value, 0, len(t))
		for _, item := range t {
			out = append(out, FromAny(item))
		}
		return Array(out...)
	case []Value:
		return Array(t...)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			out[k] = FromAny(item)
		}
		return Object(out)
	case map[string]Value:
		return Object(t)
	default:
		// Unknown Go types round-trip through JSON.
		b, err := json.Marshal(t)
		if err != nil {
			return Null
		}
		parsed, err := Parse(b)
		if err != nil {
			return Null
		}
		return parsed
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) IsArray() bool { return v.kind == KindArray }

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Num() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

func (v Value) BoolValue() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Items returns the elements of an array value, or nil.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Fields returns the members of an object value, or nil.
func (v Value) Fields() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Get returns the named member of an object, or Null.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Null
	}
	return v.obj[key]
}

// Keys returns object member names in sorted order so walks are deterministic.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether the value carries no usable data: null, blank strings,
// and empty arrays or objects.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.s) == ""
	case KindArray:
		return len(v.arr) == 0
	case KindObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// Text renders scalars as a string. Whole numbers are printed without a fraction.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindNumber:
		if v.lit != "" && !strings.ContainsAny(v.lit, ".eE") {
			return v.lit, true
		}
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e18 {
			return strconv.FormatInt(int64(v.n), 10), true
		}
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		return "", false
	}
}

// ToAny converts back to plain Go values suitable for encoding/json.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.lit != "" {
			return json.Number(v.lit)
		}
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, item := range v.arr {
			out = append(out, item.ToAny())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
