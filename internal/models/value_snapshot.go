package models

import (
	"time"
)

// CollectionValueSnapshot stores daily collection value per user for historical tracking
type CollectionValueSnapshot struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"user_id" gorm:"not null;uniqueIndex:idx_snapshot_user_date"`
	SnapshotDate time.Time `json:"snapshot_date" gorm:"not null;uniqueIndex:idx_snapshot_user_date"`
	TotalCards   int       `json:"total_cards"`
	GradedCards  int       `json:"graded_cards"`
	TotalValue   float64   `json:"total_value"`
	TotalCost    float64   `json:"total_cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []CollectionValueSnapshot `json:"snapshots"`
	Period    string                    `json:"period"` // "week", "month", "3month", "year", "all"
}
