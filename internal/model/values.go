package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var leadingIntRe = regexp.MustCompile(`^[-+]?\d+`)

// ToInt coerces a JSON-ish value to an int. Strings are parsed by their
// leading integer ("120 beds" -> 120, "1,200" -> 1200). Returns false when
// no integer can be read.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		m := leadingIntRe.FindString(s)
		if m == "" {
			return 0, false
		}
		i, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return i, true
	case *int:
		if n == nil {
			return 0, false
		}
		return *n, true
	default:
		return 0, false
	}
}

// ToFloat coerces a JSON-ish value to a float64. Percent signs and thousands
// separators are tolerated in strings.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	default:
		return 0, false
	}
}

// ToString renders a scalar as a string. Nil yields "".
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ValuesEqual reports whether two scalars hold the same value, treating
// numeric types (and numeric strings) interchangeably.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if okA && okB {
		return fa == fb
	}
	return ToString(a) == ToString(b)
}

func numeric(v any) (float64, bool) {
	if _, isStr := v.(string); isStr {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.(string)), 64)
		return f, err == nil
	}
	return ToFloat(v)
}
