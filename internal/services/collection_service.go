package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/tags"
)

var (
	ErrCardNotFound = errors.New("card not found")
	ErrInvalidCard  = errors.New("player_name is required")
)

// CollectionService owns card CRUD. Every mutation re-filters the user's
// display cases so their snapshots follow the collection.
type CollectionService struct {
	cards     CardStore
	cases     DisplayCaseRefresher
	images    *ImageStorageService
	sanitizer *TextSanitizer
	now       func() time.Time
}

// NewCollectionService creates a collection service. cases and images may be nil.
func NewCollectionService(cards CardStore, cases DisplayCaseRefresher, images *ImageStorageService, sanitizer *TextSanitizer) *CollectionService {
	return &CollectionService{
		cards:     cards,
		cases:     cases,
		images:    images,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List returns the user's cards, optionally narrowed by a tag filter
func (s *CollectionService) List(ctx context.Context, userID string, filter interface{}) ([]models.Card, error) {
	cards, err := s.cards.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	normalized := tags.Normalize(filter)
	if len(normalized) == 0 {
		return cards, nil
	}
	matched := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if tags.Matches(c.Tags, normalized) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Get returns one card
func (s *CollectionService) Get(ctx context.Context, userID, id string) (*models.Card, error) {
	card, err := s.cards.Get(ctx, userID, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// Add creates a card with a new surrogate id
func (s *CollectionService) Add(ctx context.Context, userID string, req models.AddCardRequest) (*models.Card, error) {
	playerName := s.sanitizer.Clean(req.PlayerName)
	if playerName == "" {
		return nil, ErrInvalidCard
	}

	card := &models.Card{
		UserID:        userID,
		PlayerName:    playerName,
		Year:          s.sanitizer.Clean(req.Year),
		CardSet:       s.sanitizer.Clean(req.CardSet),
		CardNumber:    s.sanitizer.Clean(req.CardNumber),
		Variation:     s.sanitizer.Clean(req.Variation),
		Condition:     models.NormalizeCondition(req.Condition),
		PurchasePrice: req.PurchasePrice,
		CurrentValue:  req.CurrentValue,
		PurchaseDate:  req.PurchaseDate,
		LastUpdated:   s.now(),
		Notes:         s.sanitizer.Clean(req.Notes),
		Photo:         models.NormalizePhoto(req.Photo),
		Tags:          tags.Normalize(req.Tags),
	}
	if card.CurrentValue == 0 {
		card.CurrentValue = card.PurchasePrice
	}

	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to add card: %w", err)
	}
	log.Printf("Collection: added %s (%s) for user %s", card.PlayerName, card.ID, userID)
	s.refreshCases(ctx, userID)
	return card, nil
}

// Update applies the non-nil fields of req
func (s *CollectionService) Update(ctx context.Context, userID, id string, req models.UpdateCardRequest) (*models.Card, error) {
	card, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = s.sanitizer.Clean(*v)
		}
	}
	setString(&card.PlayerName, req.PlayerName)
	setString(&card.Year, req.Year)
	setString(&card.CardSet, req.CardSet)
	setString(&card.CardNumber, req.CardNumber)
	setString(&card.Variation, req.Variation)
	setString(&card.Notes, req.Notes)
	if strings.TrimSpace(card.PlayerName) == "" {
		return nil, ErrInvalidCard
	}
	if req.Condition != nil {
		card.Condition = models.NormalizeCondition(*req.Condition)
	}
	if req.PurchasePrice != nil {
		card.PurchasePrice = *req.PurchasePrice
	}
	if req.CurrentValue != nil {
		card.CurrentValue = *req.CurrentValue
		card.LastUpdated = s.now()
	}
	if req.PurchaseDate != nil {
		card.PurchaseDate = req.PurchaseDate
	}
	if req.Photo != nil {
		card.Photo = models.NormalizePhoto(*req.Photo)
	}
	if req.Tags != nil {
		card.Tags = tags.Normalize(req.Tags)
	}

	if err := s.cards.Save(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	s.refreshCases(ctx, userID)
	return card, nil
}

// SetPhoto stores an uploaded photo and points the card at it
func (s *CollectionService) SetPhoto(ctx context.Context, userID, id string, data []byte) (*models.Card, error) {
	if s.images == nil {
		return nil, fmt.Errorf("photo storage is not configured")
	}
	card, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	path, err := s.images.SaveImage(data)
	if err != nil {
		return nil, err
	}

	previous := card.Photo
	card.Photo = path
	if err := s.cards.Save(ctx, card); err != nil {
		_ = s.images.DeleteImage(path)
		return nil, fmt.Errorf("failed to update card photo: %w", err)
	}
	if err := s.images.DeleteImage(previous); err != nil {
		log.Printf("Collection: %v", err)
	}
	s.refreshCases(ctx, userID)
	return card, nil
}

// Delete removes a card
func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	card, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrCardNotFound
		}
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if s.images != nil {
		if err := s.images.DeleteImage(card.Photo); err != nil {
			log.Printf("Collection: %v", err)
		}
	}
	s.refreshCases(ctx, userID)
	return nil
}

// Stats summarizes the collection, including the number of distinct tags
func (s *CollectionService) Stats(ctx context.Context, userID string) (models.CollectionStats, error) {
	stats, err := s.cards.Stats(ctx, userID)
	if err != nil {
		return stats, err
	}
	cards, err := s.cards.GetCollection(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("failed to load collection: %w", err)
	}
	stats.UniqueTags = len(CollectTags(cards))
	return stats, nil
}

func (s *CollectionService) refreshCases(ctx context.Context, userID string) {
	if s.cases == nil {
		return
	}
	if n, err := s.cases.RefreshAll(ctx, userID, false); err != nil {
		log.Printf("Collection: failed to refresh display cases for user %s: %v", userID, err)
	} else if n > 0 {
		log.Printf("Collection: refreshed %d display cases for user %s", n, userID)
	}
}
