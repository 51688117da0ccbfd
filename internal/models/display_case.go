package models

import (
	"time"
)

// DisplayCase is a named, tag-filtered snapshot of a user's collection.
// Cards and TotalValue reflect the collection at RefreshedAt, not live data.
type DisplayCase struct {
	ID          uint          `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID      string        `json:"user_id" gorm:"not null;uniqueIndex:idx_display_case_user_name"`
	Name        string        `json:"name" gorm:"not null;uniqueIndex:idx_display_case_user_name"`
	Description string        `json:"description"`
	Tags        StringList    `json:"tags" gorm:"type:text"`
	Simple      bool          `json:"simple"` // single literal tag, no operator parsing
	Cards       CardSnapshots `json:"cards" gorm:"type:text"`
	TotalValue  float64       `json:"total_value"`
	ShareToken  string        `json:"share_token,omitempty" gorm:"index"`
	CreatedDate time.Time     `json:"created_date"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	Stale       bool          `json:"stale" gorm:"-"`
}

type CreateDisplayCaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Tags        any    `json:"tags"`
}

type CreateSimpleDisplayCaseRequest struct {
	Name string `json:"name" binding:"required"`
	Tag  string `json:"tag" binding:"required"`
}

type UpdateDisplayCaseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Tags        any     `json:"tags"`
}

type PreviewDisplayCaseRequest struct {
	Tags any `json:"tags"`
}
