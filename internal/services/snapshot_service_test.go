package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/models"
)

func newTestSnapshotService(t *testing.T, store *memoryStore, cases DisplayCaseRefresher) *SnapshotService {
	t.Helper()
	db, err := database.Open("file:"+t.Name()+"?mode=memory&cache=shared", logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSnapshotService(database.NewSnapshotRepository(db), store, store, cases)
}

func TestSnapshotServiceTakeAndHistory(t *testing.T) {
	ctx := context.Background()
	store := seededStore(
		models.Card{ID: "1", UserID: "u1", PlayerName: "A", Condition: models.ConditionPSA9, PurchasePrice: 40, CurrentValue: 60},
		models.Card{ID: "2", UserID: "u1", PlayerName: "B", Condition: models.ConditionRaw, PurchasePrice: 10, CurrentValue: 15},
	)
	svc := newTestSnapshotService(t, store, nil)

	now := time.Date(2024, 5, 20, 23, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	snap, err := svc.TakeSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if snap.TotalCards != 2 || snap.GradedCards != 1 || snap.TotalValue != 75 || snap.TotalCost != 50 {
		t.Errorf("TakeSnapshot() = %+v, want 2 cards, 1 graded, $75 value, $50 cost", snap)
	}

	now = now.AddDate(0, 0, -20)
	if _, err := svc.TakeSnapshot(ctx, "u1"); err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	now = now.AddDate(0, 0, 20)

	tests := []struct {
		period     string
		wantPeriod string
		wantCount  int
	}{
		{"week", "week", 1},
		{"month", "month", 2},
		{"all", "all", 2},
		{"bogus", "month", 2},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			history, err := svc.GetHistory(ctx, "u1", tt.period)
			if err != nil {
				t.Fatalf("GetHistory() error = %v", err)
			}
			if history.Period != tt.wantPeriod || len(history.Snapshots) != tt.wantCount {
				t.Errorf("GetHistory(%q) = %s with %d snapshots, want %s with %d",
					tt.period, history.Period, len(history.Snapshots), tt.wantPeriod, tt.wantCount)
			}
		})
	}

	last, err := svc.GetLastSnapshot(ctx, "u1")
	if err != nil || last == nil || !last.SnapshotDate.Equal(database.StartOfDay(now)) {
		t.Errorf("GetLastSnapshot() = %+v, %v, want today's snapshot", last, err)
	}
}

func TestSnapshotServiceCheck(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"))
	refresher := &countingRefresher{}
	svc := newTestSnapshotService(t, store, refresher)

	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.checkAndSnapshot(ctx)
	if refresher.calls["u1"] != 1 {
		t.Errorf("stale display case refreshes = %d, want 1", refresher.calls["u1"])
	}
	if last, _ := svc.GetLastSnapshot(ctx, "u1"); last != nil {
		t.Errorf("snapshot taken before the snapshot hour: %+v", last)
	}

	now = time.Date(2024, 5, 20, 23, 5, 0, 0, time.UTC)
	svc.checkAndSnapshot(ctx)
	svc.checkAndSnapshot(ctx)
	history, err := svc.GetHistory(ctx, "u1", "all")
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history.Snapshots) != 1 {
		t.Errorf("snapshots after two checks = %d, want 1", len(history.Snapshots))
	}
}
