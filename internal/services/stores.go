package services

import (
	"context"

	"github.com/codyseavey/card-vault/internal/models"
)

// CollectionStore reads and writes a user's whole card collection
type CollectionStore interface {
	GetCollection(ctx context.Context, userID string) ([]models.Card, error)
	SaveCollection(ctx context.Context, userID string, cards []models.Card) error
}

// CardStore is per-card access to a user's collection
type CardStore interface {
	CollectionStore
	Get(ctx context.Context, userID, id string) (*models.Card, error)
	Create(ctx context.Context, card *models.Card) error
	Save(ctx context.Context, card *models.Card) error
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (models.CollectionStats, error)
}

// DisplayCaseStore reads and writes a user's display cases keyed by name
type DisplayCaseStore interface {
	GetDisplayCases(ctx context.Context, userID string) (map[string]models.DisplayCase, error)
	SaveDisplayCases(ctx context.Context, userID string, cases map[string]models.DisplayCase) error
}

// SharedDisplayCaseFinder resolves public share tokens
type SharedDisplayCaseFinder interface {
	FindByShareToken(ctx context.Context, token string) (*models.DisplayCase, error)
}

// UserLister enumerates users that own data, for background jobs
type UserLister interface {
	UserIDs(ctx context.Context) ([]string, error)
}

// DisplayCaseRefresher re-filters a user's display cases after the collection changes
type DisplayCaseRefresher interface {
	RefreshAll(ctx context.Context, userID string, staleOnly bool) (int, error)
}
