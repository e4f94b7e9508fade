package mergeodf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request data objects arrive as the shapes encoding/json produces for
// map[string]any: nil, bool, float64, json.Number, string, []any and
// nested map[string]any. That tagged set is the interface boundary; the
// binder converts to typed forms only where a placeholder needs them.

// lookup fetches a variable's value from a data object. Null values count
// as missing: the binder drops the placeholder either way.
func lookup(data map[string]any, name string) (any, bool) {
	v, ok := data[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// sequenceOf interprets a group value as an ordered sequence of objects.
// Entries that are not objects become empty objects so row expansion
// still keeps its position.
func sequenceOf(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	seq := make([]map[string]any, len(arr))
	for i, entry := range arr {
		if m, ok := entry.(map[string]any); ok {
			seq[i] = m
		} else {
			seq[i] = map[string]any{}
		}
	}
	return seq, true
}

// valueString renders a scalar request value as the string written into
// the document. Numbers render without a trailing ".0" so enum indexes
// and typed cells behave the same for 2 and "2".
func valueString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("%v", v)
}

// isNumber reports whether s is an optionally signed decimal number with
// at most one point and at least one digit, allowing surrounding spaces.
// A bare "." is not a number.
func isNumber(s string) bool {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	if i == len(s) {
		return false
	}
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	digits, points := 0, 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		if s[i] == '.' {
			points++
		} else {
			digits++
		}
		i++
	}
	if points > 1 || digits < 1 {
		return false
	}
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i == len(s)
}

// translateValue maps enum and boolean request values to their labels.
// A numeric enum value is a 1-based index into Items; boolean accepts
// "1", "true" and "yes" (any case) for the first label, anything else
// takes the second. Values without a matching label pass through.
func translateValue(typ, items, value string) string {
	switch typ {
	case typeEnum:
		if !isNumber(value) {
			return value
		}
		labels := splitItems(items)
		idx := atoiPrefix(strings.TrimSpace(value)) - 1
		if idx >= 0 && idx < len(labels) {
			return labels[idx]
		}
	case typeBoolean:
		labels := splitItems(items)
		idx := 1
		if value == "1" || strings.EqualFold(value, "true") || strings.EqualFold(value, "yes") {
			idx = 0
		}
		if idx < len(labels) {
			return labels[idx]
		}
	}
	return value
}

// atoiPrefix parses the integer prefix of a numeric string, so "2" and
// "2.5" both read as 2.
func atoiPrefix(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
