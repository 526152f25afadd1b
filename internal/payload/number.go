package payload

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var countSuffixes = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
}

// ParseCount understands plain numerics ("1234", "1,234", "1 234") and the
// abbreviated forms social platforms display ("12.3k", "1.2M", "3B", "10K+").
func ParseCount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "+")
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	if s == "" {
		return 0, false
	}

	mult := 1.0
	for suffix, m := range countSuffixes {
		if strings.HasSuffix(s, suffix) {
			mult = m
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n * mult, true
}

// CountInt rounds a parsed count to the nearest integer.
func CountInt(n float64) int64 {
	return int64(math.Round(n))
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds. Seconds
// values stay below it until the year 5138; millisecond values exceed it after 1973.
const epochMillisThreshold = 1e11

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp accepts epoch seconds, epoch milliseconds (told apart by
// magnitude), numeric strings of either, and ISO-like date strings. The result is UTC.
func NormalizeTimestamp(v Value) (time.Time, bool) {
	switch v.Kind() {
	case KindNumber:
		n, _ := v.Num()
		return fromEpoch(n)
	case KindString:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func fromEpoch(n float64) (time.Time, bool) {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, false
	}
	if n >= epochMillisThreshold {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// PickTimestamp runs NormalizeTimestamp over keys in priority order.
func PickTimestamp(v Value, keys ...string) (time.Time, bool) {
	return pick(v, keys, NormalizeTimestamp)
}
