package models

import (
	"strings"
	"time"
)

// SaleRecord is a raw sold listing as returned by a sale-data source.
// Price and Date are loosely typed and get coerced during cleaning.
type SaleRecord struct {
	Title    string      `json:"title"`
	Price    interface{} `json:"price"`
	Date     interface{} `json:"date"`
	ImageURL string      `json:"image_url,omitempty"`
	Volume   interface{} `json:"volume,omitempty"`
}

// Sale is a cleaned sale observation
type Sale struct {
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Date      time.Time `json:"date"`
	Volume    float64   `json:"volume"`
	Condition Condition `json:"condition"`
}

// SaleQuery describes a sold-listing search
type SaleQuery struct {
	PlayerName      string   `json:"player_name" form:"player_name"`
	Year            string   `json:"year" form:"year"`
	CardSet         string   `json:"card_set" form:"card_set"`
	CardNumber      string   `json:"card_number" form:"card_number"`
	Variation       string   `json:"variation" form:"variation"`
	Condition       string   `json:"condition" form:"condition"`
	ExcludeKeywords []string `json:"exclude_keywords" form:"exclude_keywords"`
}

// Keywords joins the positive search terms
func (q SaleQuery) Keywords() string {
	var parts []string
	for _, p := range []string{q.PlayerName, q.Year, q.CardSet, q.CardNumber, q.Variation} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if c := strings.TrimSpace(q.Condition); c != "" && !strings.EqualFold(c, string(ConditionRaw)) {
		parts = append(parts, c)
	}
	return strings.Join(parts, " ")
}

// CacheKey identifies the query for result caching
func (q SaleQuery) CacheKey() string {
	key := strings.ToLower(q.Keywords())
	if len(q.ExcludeKeywords) > 0 {
		key += "|-" + strings.ToLower(strings.Join(q.ExcludeKeywords, ",-"))
	}
	return key
}

// IsEmpty reports whether the query has no player name to search for
func (q SaleQuery) IsEmpty() bool {
	return strings.TrimSpace(q.PlayerName) == ""
}
