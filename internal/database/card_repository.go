package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/card-vault/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// CardRepository persists collection cards in sqlite
type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// GetCollection returns a user's cards in insertion order
func (r *CardRepository) GetCollection(ctx context.Context, userID string) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&cards).Error
	return cards, err
}

// SaveCollection replaces the user's whole collection
func (r *CardRepository) SaveCollection(ctx context.Context, userID string, cards []models.Card) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		// Explicit timestamps keep the caller's ordering on reload
		base := time.Now()
		for i := range cards {
			cards[i].UserID = userID
			if cards[i].CreatedAt.IsZero() {
				cards[i].CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
			}
			if cards[i].ID == "" {
				cards[i].ID = uuid.New().String()
			}
			cards[i].RecalculateROI()
		}
		if len(cards) == 0 {
			return nil
		}
		return tx.CreateInBatches(cards, 100).Error
	})
}

// Get returns one card owned by the user
func (r *CardRepository) Get(ctx context.Context, userID, id string) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// GetByID returns a card regardless of owner, for background workers
func (r *CardRepository) GetByID(ctx context.Context, id string) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Create assigns a surrogate id and inserts the card
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	card.RecalculateROI()
	return r.db.WithContext(ctx).Create(card).Error
}

// Save writes every field of an existing card
func (r *CardRepository) Save(ctx context.Context, card *models.Card) error {
	card.RecalculateROI()
	return r.db.WithContext(ctx).Save(card).Error
}

// Delete removes a card owned by the user
func (r *CardRepository) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Card{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateValue stores a freshly computed market value
func (r *CardRepository) UpdateValue(ctx context.Context, id string, value float64, at time.Time) error {
	var card models.Card
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&card).Updates(map[string]interface{}{
		"current_value": value,
		"roi":           models.CalculateROI(card.PurchasePrice, value),
		"last_updated":  at,
	}).Error
}

// StaleCards returns up to limit cards ordered by oldest value update
func (r *CardRepository) StaleCards(ctx context.Context, exclude []string, limit int) ([]models.Card, error) {
	var cards []models.Card
	query := r.db.WithContext(ctx).Order("last_updated ASC").Limit(limit)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	err := query.Find(&cards).Error
	return cards, err
}

// FindByIDs loads the given cards
func (r *CardRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Card, error) {
	var cards []models.Card
	if len(ids) == 0 {
		return cards, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&cards).Error
	return cards, err
}

// Stats summarizes a user's collection
func (r *CardRepository) Stats(ctx context.Context, userID string) (models.CollectionStats, error) {
	var stats models.CollectionStats
	var totals struct {
		Cards  int
		Graded int
		Value  float64
		Cost   float64
	}
	err := r.db.WithContext(ctx).Model(&models.Card{}).
		Select(`COUNT(*) AS cards,
			COALESCE(SUM(CASE WHEN condition <> ? THEN 1 ELSE 0 END), 0) AS graded,
			COALESCE(SUM(current_value), 0) AS value,
			COALESCE(SUM(purchase_price), 0) AS cost`, string(models.ConditionRaw)).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return stats, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats.TotalCards = totals.Cards
	stats.GradedCards = totals.Graded
	stats.TotalValue = totals.Value
	stats.TotalCost = totals.Cost
	stats.TotalROI = models.CalculateROI(totals.Cost, totals.Value)
	return stats, nil
}

// UserIDs lists every user that owns at least one card
func (r *CardRepository) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Card{}).Distinct("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
