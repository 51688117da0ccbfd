package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/card-vault/internal/models"
)

// SnapshotRepository persists daily collection value snapshots
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// HasSnapshot reports whether the user already has a snapshot for day
func (r *SnapshotRepository) HasSnapshot(ctx context.Context, userID string, day time.Time) (bool, error) {
	start := StartOfDay(day)
	end := start.Add(24 * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.CollectionValueSnapshot{}).
		Where("user_id = ? AND snapshot_date >= ? AND snapshot_date < ?", userID, start, end).
		Count(&count).Error
	return count > 0, err
}

// Upsert stores the snapshot, replacing the totals of an existing one for the same user and day
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.CollectionValueSnapshot) error {
	snapshot.SnapshotDate = StartOfDay(snapshot.SnapshotDate)
	return r.db.WithContext(ctx).
		Where("user_id = ? AND snapshot_date = ?", snapshot.UserID, snapshot.SnapshotDate).
		Assign(models.CollectionValueSnapshot{
			TotalCards:  snapshot.TotalCards,
			GradedCards: snapshot.GradedCards,
			TotalValue:  snapshot.TotalValue,
			TotalCost:   snapshot.TotalCost,
		}).
		FirstOrCreate(snapshot).Error
}

// History returns the user's snapshots since start, oldest first. A zero start returns all.
func (r *SnapshotRepository) History(ctx context.Context, userID string, start time.Time) ([]models.CollectionValueSnapshot, error) {
	snapshots := []models.CollectionValueSnapshot{}
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("snapshot_date ASC")
	if !start.IsZero() {
		query = query.Where("snapshot_date >= ?", start.UTC())
	}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Latest returns the user's most recent snapshot, or nil when there is none
func (r *SnapshotRepository) Latest(ctx context.Context, userID string) (*models.CollectionValueSnapshot, error) {
	var snapshot models.CollectionValueSnapshot
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("snapshot_date DESC").First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// StartOfDay truncates t to midnight UTC, the key snapshots are stored under
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
