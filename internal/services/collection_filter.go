package services

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/tags"
)

// Table is a column-oriented collection, e.g. an imported spreadsheet
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// Mappable is implemented by records that serialize themselves to a plain map
type Mappable interface {
	ToMap() map[string]interface{}
}

// FilterByTags returns snapshots of the records whose tags satisfy filter.
// Source order is preserved. Records that cannot be read as a mapping, or
// whose tags are missing or malformed, are skipped.
func FilterByTags(collection interface{}, filter interface{}) []map[string]interface{} {
	return filterRecords(collection, func(record map[string]interface{}) bool {
		return tags.Matches(record["tags"], filter)
	})
}

// FilterByLiteralTag returns snapshots of the records carrying tag verbatim
func FilterByLiteralTag(collection interface{}, tag string) []map[string]interface{} {
	return filterRecords(collection, func(record map[string]interface{}) bool {
		return tags.MatchesLiteral(record["tags"], tag)
	})
}

// CollectTags returns the union of normalized tags across the collection
func CollectTags(collection interface{}) []string {
	var all []string
	for _, record := range Records(collection) {
		all = append(all, tags.Normalize(record["tags"])...)
	}
	return tags.Normalize(all)
}

func filterRecords(collection interface{}, keep func(map[string]interface{}) bool) []map[string]interface{} {
	matched := []map[string]interface{}{}
	for _, record := range Records(collection) {
		if keep(record) {
			matched = append(matched, Snapshot(record))
		}
	}
	return matched
}

// Records coerces a collection into plain maps
func Records(collection interface{}) []map[string]interface{} {
	switch c := collection.(type) {
	case nil:
		return nil
	case []models.Card:
		out := make([]map[string]interface{}, 0, len(c))
		for _, card := range c {
			out = append(out, card.ToMap())
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, 0, len(c))
		for _, m := range c {
			if m != nil {
				out = append(out, copyMap(m))
			}
		}
		return out
	case Table:
		return tableRecords(c)
	case *Table:
		if c == nil {
			return nil
		}
		return tableRecords(*c)
	}

	rv := reflect.ValueOf(collection)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]map[string]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if record, ok := toRecord(rv.Index(i).Interface()); ok {
			out = append(out, record)
		}
	}
	return out
}

func tableRecords(t Table) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

// toRecord converts a single item into a map, falling back to a JSON round trip for structs
func toRecord(item interface{}) (map[string]interface{}, bool) {
	switch v := item.(type) {
	case nil:
		return nil, false
	case map[string]interface{}:
		return copyMap(v), true
	case *models.Card:
		if v == nil {
			return nil, false
		}
		return v.ToMap(), true
	case Mappable:
		return v.ToMap(), true
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, false
	}

	b, err := json.Marshal(item)
	if err != nil {
		return nil, false
	}
	var record map[string]interface{}
	if err := json.Unmarshal(b, &record); err != nil || record == nil {
		return nil, false
	}
	return record, true
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot prepares a record for storage inside a display case: photo and
// numeric fields are normalized, tags canonicalized and every value reduced
// to a JSON-safe type.
func Snapshot(record map[string]interface{}) map[string]interface{} {
	snap := make(map[string]interface{}, len(record))
	for k, v := range record {
		snap[k] = jsonSafe(v)
	}

	photo, _ := record["photo"].(string)
	snap["photo"] = models.NormalizePhoto(photo)
	snap["tags"] = tags.Normalize(record["tags"])
	if cond, ok := record["condition"].(string); ok {
		snap["condition"] = string(models.NormalizeCondition(cond))
	}
	for _, field := range []string{"current_value", "purchase_price", "roi"} {
		snap[field] = ToFloat(record[field])
	}
	return snap
}

// ToFloat coerces a loosely typed number, returning 0 on failure
func ToFloat(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// jsonSafe reduces a value to string, number, bool, list, map or nil
func jsonSafe(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, uint, uint32, uint64:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return jsonSafe(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return jsonSafe(f)
	case time.Time:
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = jsonSafe(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = jsonSafe(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = jsonSafe(rv.Index(i).Interface())
		}
		return out
	}
	return fmt.Sprint(v)
}
