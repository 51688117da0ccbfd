package models

import (
	"strings"
	"time"
)

// PlaceholderPhoto is used whenever a card has no usable photo reference
const PlaceholderPhoto = "/images/placeholder-card.png"

// Card is a single physical card owned by a user
type Card struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	UserID        string     `json:"user_id" gorm:"not null;index"`
	PlayerName    string     `json:"player_name" gorm:"not null;index"`
	Year          string     `json:"year"`
	CardSet       string     `json:"card_set"`
	CardNumber    string     `json:"card_number"`
	Variation     string     `json:"variation"`
	Condition     Condition  `json:"condition" gorm:"default:'Raw'"`
	PurchasePrice float64    `json:"purchase_price"`
	CurrentValue  float64    `json:"current_value"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	LastUpdated   time.Time  `json:"last_updated"`
	Notes         string     `json:"notes"`
	Photo         string     `json:"photo"`
	ROI           float64    `json:"roi"`
	Tags          StringList `json:"tags" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CalculateROI returns the return on investment percentage.
// Zero when no purchase price is known.
func CalculateROI(purchasePrice, currentValue float64) float64 {
	if purchasePrice <= 0 {
		return 0
	}
	return (currentValue - purchasePrice) / purchasePrice * 100
}

// RecalculateROI refreshes the derived ROI field
func (c *Card) RecalculateROI() {
	c.ROI = CalculateROI(c.PurchasePrice, c.CurrentValue)
}

// DerivedKey returns the legacy player_year_set_number key.
// It is not unique and must not be used for identity.
func (c *Card) DerivedKey() string {
	key := strings.Join([]string{c.PlayerName, c.Year, c.CardSet, c.CardNumber}, "_")
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// SearchQuery builds the sale search query describing this card
func (c *Card) SearchQuery() SaleQuery {
	return SaleQuery{
		PlayerName: c.PlayerName,
		Year:       c.Year,
		CardSet:    c.CardSet,
		CardNumber: c.CardNumber,
		Variation:  c.Variation,
		Condition:  string(c.Condition),
	}
}

// ToMap converts the card into the plain record shape used by display case snapshots
func (c Card) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":             c.ID,
		"player_name":    c.PlayerName,
		"year":           c.Year,
		"card_set":       c.CardSet,
		"card_number":    c.CardNumber,
		"variation":      c.Variation,
		"condition":      string(c.Condition),
		"purchase_price": c.PurchasePrice,
		"current_value":  c.CurrentValue,
		"notes":          c.Notes,
		"photo":          c.Photo,
		"roi":            c.ROI,
		"tags":           []string(c.Tags),
	}
	if c.PurchaseDate != nil {
		m["purchase_date"] = c.PurchaseDate.Format(time.RFC3339)
	}
	if !c.LastUpdated.IsZero() {
		m["last_updated"] = c.LastUpdated.Format(time.RFC3339)
	}
	return m
}

// NormalizePhoto returns a usable photo reference or the placeholder.
// Accepted: http(s) URLs, inline data:image URIs and stored image file names.
func NormalizePhoto(photo string) string {
	p := strings.TrimSpace(photo)
	if p == "" || strings.EqualFold(p, "nan") || strings.EqualFold(p, "none") {
		return PlaceholderPhoto
	}
	lower := strings.ToLower(p)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return p
	case strings.HasPrefix(lower, "data:image/"):
		return p
	case strings.HasPrefix(p, "/images/"):
		return p
	}
	return PlaceholderPhoto
}

type AddCardRequest struct {
	PlayerName    string     `json:"player_name" binding:"required"`
	Year          string     `json:"year"`
	CardSet       string     `json:"card_set"`
	CardNumber    string     `json:"card_number"`
	Variation     string     `json:"variation"`
	Condition     string     `json:"condition"`
	PurchasePrice float64    `json:"purchase_price"`
	CurrentValue  float64    `json:"current_value"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Notes         string     `json:"notes"`
	Photo         string     `json:"photo"`
	Tags          any        `json:"tags"`
}

type UpdateCardRequest struct {
	PlayerName    *string    `json:"player_name"`
	Year          *string    `json:"year"`
	CardSet       *string    `json:"card_set"`
	CardNumber    *string    `json:"card_number"`
	Variation     *string    `json:"variation"`
	Condition     *string    `json:"condition"`
	PurchasePrice *float64   `json:"purchase_price"`
	CurrentValue  *float64   `json:"current_value"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Notes         *string    `json:"notes"`
	Photo         *string    `json:"photo"`
	Tags          any        `json:"tags"`
}

type CollectionStats struct {
	TotalCards  int     `json:"total_cards"`
	GradedCards int     `json:"graded_cards"`
	TotalValue  float64 `json:"total_value"`
	TotalCost   float64 `json:"total_cost"`
	TotalROI    float64 `json:"total_roi"`
	UniqueTags  int     `json:"unique_tags"`
}
