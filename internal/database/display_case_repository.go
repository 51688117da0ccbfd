package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/card-vault/internal/models"
)

// DisplayCaseRepository persists display cases, one row per (user, name)
type DisplayCaseRepository struct {
	db *gorm.DB
}

func NewDisplayCaseRepository(db *gorm.DB) *DisplayCaseRepository {
	return &DisplayCaseRepository{db: db}
}

// GetDisplayCases returns the user's display cases keyed by name
func (r *DisplayCaseRepository) GetDisplayCases(ctx context.Context, userID string) (map[string]models.DisplayCase, error) {
	var rows []models.DisplayCase
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	cases := make(map[string]models.DisplayCase, len(rows))
	for _, row := range rows {
		cases[row.Name] = row
	}
	return cases, nil
}

// SaveDisplayCases makes the stored set for a user equal to cases
func (r *DisplayCaseRepository) SaveDisplayCases(ctx context.Context, userID string, cases map[string]models.DisplayCase) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(cases))
		for name := range cases {
			names = append(names, name)
		}

		remove := tx.Where("user_id = ?", userID)
		if len(names) > 0 {
			remove = remove.Where("name NOT IN ?", names)
		}
		if err := remove.Delete(&models.DisplayCase{}).Error; err != nil {
			return err
		}

		for name, dc := range cases {
			dc.ID = 0
			dc.UserID = userID
			dc.Name = name
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"description", "tags", "simple", "cards", "total_value",
					"share_token", "created_date", "refreshed_at",
				}),
			}).Create(&dc).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByShareToken returns the display case published under token
func (r *DisplayCaseRepository) FindByShareToken(ctx context.Context, token string) (*models.DisplayCase, error) {
	var dc models.DisplayCase
	err := r.db.WithContext(ctx).Where("share_token = ?", token).First(&dc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// UserIDs lists every user that owns at least one display case
func (r *DisplayCaseRepository) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.DisplayCase{}).Distinct("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
