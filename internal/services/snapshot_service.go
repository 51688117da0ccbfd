package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/models"
)

// SnapshotStore persists daily value snapshots
type SnapshotStore interface {
	HasSnapshot(ctx context.Context, userID string, day time.Time) (bool, error)
	Upsert(ctx context.Context, snapshot *models.CollectionValueSnapshot) error
	History(ctx context.Context, userID string, start time.Time) ([]models.CollectionValueSnapshot, error)
	Latest(ctx context.Context, userID string) (*models.CollectionValueSnapshot, error)
}

// StatsSource computes a user's collection totals
type StatsSource interface {
	Stats(ctx context.Context, userID string) (models.CollectionStats, error)
}

// SnapshotService records daily collection value per user and keeps
// display cases within their staleness bound
type SnapshotService struct {
	snapshots     SnapshotStore
	stats         StatsSource
	users         UserLister
	cases         DisplayCaseRefresher
	mu            sync.Mutex
	snapshotHour  int // Hour of day (UTC) to take snapshots (0-23)
	checkInterval time.Duration
	now           func() time.Time
}

// NewSnapshotService creates a snapshot service. cases may be nil.
func NewSnapshotService(snapshots SnapshotStore, stats StatsSource, users UserLister, cases DisplayCaseRefresher) *SnapshotService {
	return &SnapshotService{
		snapshots:     snapshots,
		stats:         stats,
		users:         users,
		cases:         cases,
		snapshotHour:  23,
		checkInterval: 15 * time.Minute,
		now:           time.Now,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	log.Println("Snapshot service started: will record daily collection value")

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

// checkAndSnapshot refreshes stale display cases and, at or after the
// snapshot hour, records today's value for users that lack one
func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	users, err := s.users.UserIDs(ctx)
	if err != nil {
		log.Printf("Snapshot service: failed to list users: %v", err)
		return
	}

	now := s.now().UTC()
	for _, userID := range users {
		if s.cases != nil {
			if n, err := s.cases.RefreshAll(ctx, userID, true); err != nil {
				log.Printf("Snapshot service: failed to refresh stale display cases for %s: %v", userID, err)
			} else if n > 0 {
				log.Printf("Snapshot service: refreshed %d stale display cases for %s", n, userID)
			}
		}

		if now.Hour() < s.snapshotHour {
			continue
		}
		has, err := s.snapshots.HasSnapshot(ctx, userID, now)
		if err != nil {
			log.Printf("Snapshot service: failed to check snapshot for %s: %v", userID, err)
			continue
		}
		if has {
			continue
		}
		if _, err := s.TakeSnapshot(ctx, userID); err != nil {
			log.Printf("Snapshot service: failed to take snapshot: %v", err)
		}
	}
}

// TakeSnapshot records the user's current collection value for today
func (s *SnapshotService) TakeSnapshot(ctx context.Context, userID string) (*models.CollectionValueSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.stats.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats for %s: %w", userID, err)
	}

	now := s.now()
	snapshot := &models.CollectionValueSnapshot{
		UserID:       userID,
		SnapshotDate: database.StartOfDay(now),
		TotalCards:   stats.TotalCards,
		GradedCards:  stats.GradedCards,
		TotalValue:   stats.TotalValue,
		TotalCost:    stats.TotalCost,
		CreatedAt:    now,
	}
	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		return nil, err
	}

	log.Printf("Snapshot service: recorded value snapshot for %s on %s (total: $%.2f, cards: %d)",
		userID, snapshot.SnapshotDate.Format("2006-01-02"), stats.TotalValue, stats.TotalCards)
	return snapshot, nil
}

// GetHistory retrieves a user's value snapshots for a period:
// week, month, 3month, year or all. Unknown periods mean month.
func (s *SnapshotService) GetHistory(ctx context.Context, userID, period string) (models.ValueHistoryResponse, error) {
	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		period = "month"
		startDate = now.AddDate(0, -1, 0)
	}

	snapshots, err := s.snapshots.History(ctx, userID, startDate)
	if err != nil {
		return models.ValueHistoryResponse{}, err
	}
	return models.ValueHistoryResponse{Snapshots: snapshots, Period: period}, nil
}

// GetLastSnapshot returns the user's most recent snapshot
func (s *SnapshotService) GetLastSnapshot(ctx context.Context, userID string) (*models.CollectionValueSnapshot, error) {
	return s.snapshots.Latest(ctx, userID)
}
