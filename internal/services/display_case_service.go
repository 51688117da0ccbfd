package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"github.com/codyseavey/card-vault/internal/metrics"
	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/tags"
)

// DefaultDisplayCaseTTL is how long a display case snapshot is considered current
const DefaultDisplayCaseTTL = 24 * time.Hour

var (
	ErrInvalidDisplayCase  = errors.New("display case requires a name and at least one tag")
	ErrNoMatchingCards     = errors.New("no cards match the display case tags")
	ErrEmptyCollection     = errors.New("collection is empty")
	ErrDisplayCaseNotFound = errors.New("display case not found")
	ErrDisplayCaseExists   = errors.New("a display case with that name already exists")
)

// DisplayCaseService manages tag-filtered display cases over a user's collection.
// Every mutation is persisted immediately; a failed write leaves the store untouched.
type DisplayCaseService struct {
	collection CollectionStore
	cases      DisplayCaseStore
	sanitizer  *TextSanitizer
	ttl        time.Duration
	shareBase  string
	now        func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewDisplayCaseService creates a display case service
func NewDisplayCaseService(collection CollectionStore, cases DisplayCaseStore, sanitizer *TextSanitizer, ttl time.Duration, shareBaseURL string) *DisplayCaseService {
	if ttl <= 0 {
		ttl = DefaultDisplayCaseTTL
	}
	return &DisplayCaseService{
		collection: collection,
		cases:      cases,
		sanitizer:  sanitizer,
		ttl:        ttl,
		shareBase:  strings.TrimRight(shareBaseURL, "/"),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// userLock serializes read-modify-write cycles for one user
func (s *DisplayCaseService) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	return mu
}

// Create filters the current collection by tags and persists a new display
// case, replacing any existing case with the same name.
func (s *DisplayCaseService) Create(ctx context.Context, userID, name, description string, filter interface{}) (*models.DisplayCase, error) {
	name = s.sanitizer.Clean(name)
	normalized := tags.Normalize(filter)
	if name == "" || len(normalized) == 0 {
		return nil, ErrInvalidDisplayCase
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	matched := FilterByTags(cards, normalized)
	if len(matched) == 0 {
		return nil, ErrNoMatchingCards
	}

	now := s.now()
	dc := models.DisplayCase{
		UserID:      userID,
		Name:        name,
		Description: s.sanitizer.Clean(description),
		Tags:        normalized,
		Cards:       matched,
		TotalValue:  totalValue(matched),
		CreatedDate: now,
		RefreshedAt: now,
	}

	if err := s.put(ctx, userID, dc); err != nil {
		return nil, err
	}

	metrics.DisplayCaseOperationsTotal.WithLabelValues("create").Inc()
	log.Printf("Display cases: created %q for user %s with %d cards ($%.2f)", name, userID, len(matched), dc.TotalValue)
	return &dc, nil
}

// CreateFromSingleTag creates a display case from one literal tag. The tag is
// matched verbatim: no exclusion, category or range syntax is interpreted.
func (s *DisplayCaseService) CreateFromSingleTag(ctx context.Context, userID, name, tag string) (*models.DisplayCase, error) {
	name = s.sanitizer.Clean(name)
	tag = strings.ToLower(strings.TrimSpace(tag))
	if name == "" || tag == "" {
		return nil, ErrInvalidDisplayCase
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if len(cards) == 0 {
		return nil, ErrEmptyCollection
	}

	matched := FilterByLiteralTag(cards, tag)
	if len(matched) == 0 {
		return nil, ErrNoMatchingCards
	}

	now := s.now()
	dc := models.DisplayCase{
		UserID:      userID,
		Name:        name,
		Tags:        models.StringList{tag},
		Simple:      true,
		Cards:       matched,
		TotalValue:  totalValue(matched),
		CreatedDate: now,
		RefreshedAt: now,
	}

	if err := s.put(ctx, userID, dc); err != nil {
		return nil, err
	}

	metrics.DisplayCaseOperationsTotal.WithLabelValues("create_simple").Inc()
	return &dc, nil
}

// Preview returns the cards a filter would select, without persisting anything
func (s *DisplayCaseService) Preview(ctx context.Context, userID string, filter interface{}) ([]map[string]interface{}, error) {
	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return FilterByTags(cards, filter), nil
}

// Get returns one display case, flagged stale when older than the TTL
func (s *DisplayCaseService) Get(ctx context.Context, userID, name string) (*models.DisplayCase, error) {
	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load display cases: %w", err)
	}
	dc, ok := cases[name]
	if !ok {
		return nil, ErrDisplayCaseNotFound
	}
	dc.Stale = s.isStale(dc)
	return &dc, nil
}

// List returns all display cases of a user sorted by name
func (s *DisplayCaseService) List(ctx context.Context, userID string) ([]models.DisplayCase, error) {
	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load display cases: %w", err)
	}

	out := make([]models.DisplayCase, 0, len(cases))
	for _, dc := range cases {
		dc.Stale = s.isStale(dc)
		out = append(out, dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Refresh re-runs the case's filter against the current collection
func (s *DisplayCaseService) Refresh(ctx context.Context, userID, name string) (*models.DisplayCase, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load display cases: %w", err)
	}
	dc, ok := cases[name]
	if !ok {
		return nil, ErrDisplayCaseNotFound
	}

	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	s.refilter(&dc, cards)
	cases[name] = dc
	if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
		return nil, fmt.Errorf("failed to save display cases: %w", err)
	}

	metrics.DisplayCaseOperationsTotal.WithLabelValues("refresh").Inc()
	return &dc, nil
}

// RefreshAll refreshes every display case of a user, e.g. after the collection changed.
// Only stale cases are refreshed when staleOnly is set.
func (s *DisplayCaseService) RefreshAll(ctx context.Context, userID string, staleOnly bool) (int, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load display cases: %w", err)
	}
	if len(cases) == 0 {
		return 0, nil
	}

	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load collection: %w", err)
	}

	refreshed := 0
	for name, dc := range cases {
		if staleOnly && !s.isStale(dc) {
			continue
		}
		s.refilter(&dc, cards)
		cases[name] = dc
		refreshed++
	}
	if refreshed == 0 {
		return 0, nil
	}

	if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
		return 0, fmt.Errorf("failed to save display cases: %w", err)
	}
	metrics.DisplayCaseOperationsTotal.WithLabelValues("refresh").Add(float64(refreshed))
	return refreshed, nil
}

// Update replaces a stored display case wholesale. A new name renames the case
// unless another case already uses it.
// TotalValue is recomputed from the supplied cards.
func (s *DisplayCaseService) Update(ctx context.Context, userID, name string, updated models.DisplayCase) (*models.DisplayCase, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load display cases: %w", err)
	}
	existing, ok := cases[name]
	if !ok {
		return nil, ErrDisplayCaseNotFound
	}

	newName := s.sanitizer.Clean(updated.Name)
	if newName == "" {
		newName = name
	}
	if _, taken := cases[newName]; taken && newName != name {
		return nil, ErrDisplayCaseExists
	}

	updated.UserID = userID
	updated.Name = newName
	updated.Description = s.sanitizer.Clean(updated.Description)
	updated.Tags = tags.Normalize(updated.Tags)
	if len(updated.Tags) == 0 {
		return nil, ErrInvalidDisplayCase
	}
	if updated.Cards == nil {
		updated.Cards = models.CardSnapshots{}
	}
	updated.TotalValue = totalValue(updated.Cards)
	if updated.CreatedDate.IsZero() {
		updated.CreatedDate = existing.CreatedDate
	}
	if updated.RefreshedAt.IsZero() {
		updated.RefreshedAt = existing.RefreshedAt
	}
	if updated.ShareToken == "" {
		updated.ShareToken = existing.ShareToken
	}

	delete(cases, name)
	cases[newName] = updated
	if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
		return nil, fmt.Errorf("failed to save display cases: %w", err)
	}

	metrics.DisplayCaseOperationsTotal.WithLabelValues("update").Inc()
	return &updated, nil
}

// Delete removes a display case and reloads the stored set to confirm it is gone
func (s *DisplayCaseService) Delete(ctx context.Context, userID, name string) error {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load display cases: %w", err)
	}
	if _, ok := cases[name]; !ok {
		return ErrDisplayCaseNotFound
	}

	delete(cases, name)
	if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
		return fmt.Errorf("failed to save display cases: %w", err)
	}

	reloaded, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to reload display cases: %w", err)
	}
	if _, still := reloaded[name]; still {
		return fmt.Errorf("display case %q still present after delete", name)
	}

	metrics.DisplayCaseOperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

// ListAllTags returns the union of normalized tags across the user's collection
func (s *DisplayCaseService) ListAllTags(ctx context.Context, userID string) ([]string, error) {
	cards, err := s.collection.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return CollectTags(cards), nil
}

// tagSource adapts a tag list to fuzzy.Source
type tagSource []string

func (t tagSource) String(i int) string { return t[i] }
func (t tagSource) Len() int            { return len(t) }

// SuggestTags fuzzy-matches query against the user's existing tags, best match first
func (s *DisplayCaseService) SuggestTags(ctx context.Context, userID, query string, limit int) ([]string, error) {
	all, err := s.ListAllTags(ctx, userID)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	matches := fuzzy.FindFrom(query, tagSource(all))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ShareURL returns the public link of a display case, assigning a share token on first use
func (s *DisplayCaseService) ShareURL(ctx context.Context, userID, name string) (string, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load display cases: %w", err)
	}
	dc, ok := cases[name]
	if !ok {
		return "", ErrDisplayCaseNotFound
	}

	if dc.ShareToken == "" {
		dc.ShareToken = uuid.New().String()
		cases[name] = dc
		if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
			return "", fmt.Errorf("failed to save display cases: %w", err)
		}
	}
	return s.shareBase + "/share/" + dc.ShareToken, nil
}

// GetShared resolves a share token to its display case
func (s *DisplayCaseService) GetShared(ctx context.Context, token string) (*models.DisplayCase, error) {
	finder, ok := s.cases.(SharedDisplayCaseFinder)
	if !ok || token == "" {
		return nil, ErrDisplayCaseNotFound
	}
	dc, err := finder.FindByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, ErrDisplayCaseNotFound
	}
	dc.Stale = s.isStale(*dc)
	return dc, nil
}

// put stores one case, keeping the others untouched
func (s *DisplayCaseService) put(ctx context.Context, userID string, dc models.DisplayCase) error {
	cases, err := s.cases.GetDisplayCases(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load display cases: %w", err)
	}
	if cases == nil {
		cases = make(map[string]models.DisplayCase)
	}
	if existing, ok := cases[dc.Name]; ok && dc.ShareToken == "" {
		dc.ShareToken = existing.ShareToken
	}
	cases[dc.Name] = dc
	if err := s.cases.SaveDisplayCases(ctx, userID, cases); err != nil {
		return fmt.Errorf("failed to save display cases: %w", err)
	}
	return nil
}

func (s *DisplayCaseService) refilter(dc *models.DisplayCase, cards []models.Card) {
	var matched []map[string]interface{}
	if dc.Simple && len(dc.Tags) == 1 {
		matched = FilterByLiteralTag(cards, dc.Tags[0])
	} else {
		matched = FilterByTags(cards, []string(dc.Tags))
	}
	dc.Cards = matched
	dc.TotalValue = totalValue(matched)
	dc.RefreshedAt = s.now()
	dc.Stale = false
}

func (s *DisplayCaseService) isStale(dc models.DisplayCase) bool {
	if dc.RefreshedAt.IsZero() {
		return true
	}
	return s.now().Sub(dc.RefreshedAt) > s.ttl
}

func totalValue(cards []map[string]interface{}) float64 {
	total := 0.0
	for _, c := range cards {
		total += ToFloat(c["current_value"])
	}
	return total
}
