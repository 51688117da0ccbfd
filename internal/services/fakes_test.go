package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore is an in-memory CardStore and DisplayCaseStore
type memoryStore struct {
	mu        sync.Mutex
	cards     map[string][]models.Card
	cases     map[string]map[string]models.DisplayCase
	saveCalls int
	failSave  bool
	failLoad  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		cards: map[string][]models.Card{},
		cases: map[string]map[string]models.DisplayCase{},
	}
}

func (m *memoryStore) GetCollection(_ context.Context, userID string) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errStoreDown
	}
	return append([]models.Card(nil), m.cards[userID]...), nil
}

func (m *memoryStore) SaveCollection(_ context.Context, userID string, cards []models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[userID] = append([]models.Card(nil), cards...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, userID, id string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards[userID] {
		if c.ID == id {
			card := c
			return &card, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memoryStore) Create(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	card.RecalculateROI()
	m.cards[card.UserID] = append(m.cards[card.UserID], *card)
	return nil
}

func (m *memoryStore) Save(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card.RecalculateROI()
	for i, c := range m.cards[card.UserID] {
		if c.ID == card.ID {
			m.cards[card.UserID][i] = *card
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *memoryStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cards[userID] {
		if c.ID == id {
			m.cards[userID] = append(m.cards[userID][:i], m.cards[userID][i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *memoryStore) Stats(_ context.Context, userID string) (models.CollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.CollectionStats
	for _, c := range m.cards[userID] {
		s.TotalCards++
		if c.Condition.IsGraded() {
			s.GradedCards++
		}
		s.TotalValue += c.CurrentValue
		s.TotalCost += c.PurchasePrice
	}
	s.TotalROI = models.CalculateROI(s.TotalCost, s.TotalValue)
	return s, nil
}

func (m *memoryStore) GetDisplayCases(_ context.Context, userID string) (map[string]models.DisplayCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errStoreDown
	}
	out := make(map[string]models.DisplayCase, len(m.cases[userID]))
	for k, v := range m.cases[userID] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) SaveDisplayCases(_ context.Context, userID string, cases map[string]models.DisplayCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errStoreDown
	}
	m.saveCalls++
	stored := make(map[string]models.DisplayCase, len(cases))
	for k, v := range cases {
		stored[k] = v
	}
	m.cases[userID] = stored
	return nil
}

func (m *memoryStore) FindByShareToken(_ context.Context, token string) (*models.DisplayCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cases := range m.cases {
		for _, dc := range cases {
			if dc.ShareToken == token {
				found := dc
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (m *memoryStore) UserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.cards {
		ids = append(ids, id)
	}
	return ids, nil
}

func card(id, player string, value float64, tagList ...string) models.Card {
	return models.Card{
		ID:           id,
		UserID:       "u1",
		PlayerName:   player,
		Condition:    models.ConditionRaw,
		CurrentValue: value,
		Tags:         tagList,
	}
}
