// Package market turns sold-listing records into price statistics, outlier
// filtered series and 0-10 market scores.
package market

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codyseavey/card-vault/internal/models"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// CleanSales coerces raw records into sales sorted by date. Records whose
// price or date cannot be parsed are dropped, as are non-positive prices.
func CleanSales(records []models.SaleRecord) []models.Sale {
	sales := make([]models.Sale, 0, len(records))
	for _, r := range records {
		price, ok := ParsePrice(r.Price)
		if !ok || price <= 0 {
			continue
		}
		date, ok := ParseDate(r.Date)
		if !ok {
			continue
		}
		volume, ok := ParsePrice(r.Volume)
		if !ok || volume <= 0 {
			volume = 1
		}
		sales = append(sales, models.Sale{
			Title:     r.Title,
			Price:     price,
			Date:      date,
			Volume:    volume,
			Condition: ExtractCondition(r.Title),
		})
	}
	SortByDate(sales)
	return sales
}

// SortByDate orders sales oldest first, keeping the input order for ties
func SortByDate(sales []models.Sale) {
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Date.Before(sales[j].Date) })
}

// ParsePrice reads a number, a numeric string or a "$1,234.56" style string
func ParsePrice(v interface{}) (float64, bool) {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case float32:
		f = float64(p)
	case int:
		f = float64(p)
	case int64:
		f = float64(p)
	case json.Number:
		parsed, err := p.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(p)
		s = strings.TrimPrefix(s, "US")
		s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate reads a time.Time, a unix timestamp or one of the common date layouts
func ParseDate(v interface{}) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return *d, true
	case float64:
		if math.IsNaN(d) || d <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(d), 0).UTC(), true
	case int64:
		if d <= 0 {
			return time.Time{}, false
		}
		return time.Unix(d, 0).UTC(), true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// gradePatterns is ordered so that "9.5" is tried before "9"
var gradePatterns = []struct {
	pattern   string
	condition models.Condition
}{
	{"psa 10", models.ConditionPSA10},
	{"psa 9", models.ConditionPSA9},
	{"psa 8", models.Condition("PSA 8")},
	{"sgc 10", models.ConditionSGC10},
	{"sgc 9.5", models.ConditionSGC95},
	{"sgc 9", models.ConditionSGC9},
	{"bgs 10", models.ConditionBGS10},
	{"bgs 9.5", models.ConditionBGS95},
	{"bgs 9", models.ConditionBGS9},
}

// ExtractCondition finds a grading mention in a listing title
func ExtractCondition(title string) models.Condition {
	t := " " + strings.Join(strings.Fields(strings.ToLower(title)), " ") + " "
	for _, g := range gradePatterns {
		idx := strings.Index(t, g.pattern)
		for idx >= 0 {
			end := idx + len(g.pattern)
			// reject "bgs 9" inside "bgs 9.5" and "psa 1" inside "psa 10"
			if !isGradeContinuation(t, end) {
				return g.condition
			}
			next := strings.Index(t[end:], g.pattern)
			if next < 0 {
				break
			}
			idx = end + next
		}
	}
	return models.ConditionRaw
}

func isGradeContinuation(t string, i int) bool {
	if i >= len(t) {
		return false
	}
	if isDigit(t[i]) {
		return true
	}
	return t[i] == '.' && i+1 < len(t) && isDigit(t[i+1])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Prices extracts the price series
func Prices(sales []models.Sale) []float64 {
	out := make([]float64, len(sales))
	for i, s := range sales {
		out[i] = s.Price
	}
	return out
}
