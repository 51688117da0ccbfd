// Package tags canonicalizes card tags and decides display case membership.
//
// Tags arrive as strings, comma-joined strings, serialized list strings,
// slices, maps or column-like values. Normalize is the single conversion
// boundary: everything downstream works on sorted, deduplicated, lowercase
// tokens.
package tags

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// ExcludePrefix marks a filter token that disqualifies cards carrying its value
	ExcludePrefix = "exclude:"

	// maxRangeExpansion bounds category:start-end expansion; wider ranges stay literal
	maxRangeExpansion = 1000
)

var rangePattern = regexp.MustCompile(`^([^:]+):(-?\d+)-(-?\d+)$`)

// Column is a table column that can be iterated element by element
type Column interface {
	Len() int
	At(i int) interface{}
}

// Normalize converts any supported tag representation into a sorted,
// deduplicated list of lowercase tokens. It never panics; unreadable input
// yields an empty list.
func Normalize(v interface{}) (result []string) {
	defer func() {
		if r := recover(); r != nil {
			result = []string{}
		}
	}()

	set := make(map[string]struct{})
	for _, raw := range rawTokens(v) {
		for _, tok := range expand(raw) {
			set[tok] = struct{}{}
		}
	}

	result = make([]string, 0, len(set))
	for tok := range set {
		result = append(result, tok)
	}
	sort.Strings(result)
	return result
}

// Set returns the normalized tags as a lookup set
func Set(v interface{}) map[string]struct{} {
	normalized := Normalize(v)
	set := make(map[string]struct{}, len(normalized))
	for _, t := range normalized {
		set[t] = struct{}{}
	}
	return set
}

// rawTokens flattens the input shape into untrimmed tokens
func rawTokens(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return stringTokens(t)
	case []string:
		return t
	case []interface{}:
		return elementTokens(t)
	case map[string]string:
		out := make([]string, 0, len(t))
		for _, val := range t {
			out = append(out, val)
		}
		return out
	case map[string]interface{}:
		vals := make([]interface{}, 0, len(t))
		for _, val := range t {
			vals = append(vals, val)
		}
		return elementTokens(vals)
	case Column:
		vals := make([]interface{}, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			vals = append(vals, t.At(i))
		}
		return elementTokens(vals)
	case fmt.Stringer:
		return stringTokens(t.String())
	}

	// Other slice and map types (e.g. models.StringList, []any aliases)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		vals := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			vals = append(vals, rv.Index(i).Interface())
		}
		return elementTokens(vals)
	case reflect.Map:
		vals := make([]interface{}, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			vals = append(vals, iter.Value().Interface())
		}
		return elementTokens(vals)
	case reflect.String:
		return stringTokens(rv.String())
	}
	return nil
}

// stringTokens handles a serialized list ("[...]") or a comma-joined string
func stringTokens(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if parsed, ok := parseListString(s); ok {
			return elementTokens(parsed)
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}
	return strings.Split(s, ",")
}

// parseListString accepts JSON lists and single-quoted list literals
func parseListString(s string) ([]interface{}, bool) {
	var parsed []interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return parsed, true
	}
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &parsed); err == nil {
			return parsed, true
		}
	}
	return nil, false
}

// elementTokens stringifies list elements, skipping missing values
func elementTokens(vals []interface{}) []string {
	out := make([]string, 0, len(vals))
	for _, val := range vals {
		switch e := val.(type) {
		case nil:
			continue
		case string:
			out = append(out, e)
		case float64:
			if math.IsNaN(e) || math.IsInf(e, 0) {
				continue
			}
			out = append(out, strconv.FormatFloat(e, 'f', -1, 64))
		case float32:
			if math.IsNaN(float64(e)) {
				continue
			}
			out = append(out, strconv.FormatFloat(float64(e), 'f', -1, 32))
		default:
			out = append(out, fmt.Sprint(e))
		}
	}
	return out
}

// expand canonicalizes one token: case folding, exclusion markers and ranges
func expand(raw string) []string {
	tok := strings.ToLower(strings.TrimSpace(raw))
	if tok == "" {
		return nil
	}

	prefix := ""
	if strings.HasPrefix(tok, "!") {
		tok = strings.TrimSpace(tok[1:])
		if tok == "" {
			return nil
		}
		prefix = ExcludePrefix
	} else if strings.HasPrefix(tok, ExcludePrefix) {
		tok = tok[len(ExcludePrefix):]
		if tok == "" {
			return nil
		}
		prefix = ExcludePrefix
	}

	values := expandRange(tok)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prefix + v
	}
	return out
}

// expandRange turns category:start-end into one token per integer, inclusive
func expandRange(tok string) []string {
	m := rangePattern.FindStringSubmatch(tok)
	if m == nil {
		return []string{tok}
	}
	start, err1 := strconv.Atoi(m[2])
	end, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || start > end || end-start >= maxRangeExpansion {
		return []string{tok}
	}

	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, m[1]+":"+strconv.Itoa(i))
	}
	return out
}
