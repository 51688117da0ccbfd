package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/codyseavey/card-vault/internal/market"
	"github.com/codyseavey/card-vault/internal/metrics"
	"github.com/codyseavey/card-vault/internal/models"
)

// Constants for price worker configuration
const (
	// defaultBatchSize is the number of cards re-valued per batch
	defaultBatchSize = 25

	defaultUpdateInterval = 30 * time.Minute

	// defaultWorkerConcurrency bounds concurrent sale searches within a batch
	defaultWorkerConcurrency = 4
)

var errNoSales = errors.New("no usable sales after cleaning")

// ValueStore is the card access the price worker needs
type ValueStore interface {
	StaleCards(ctx context.Context, exclude []string, limit int) ([]models.Card, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Card, error)
	UpdateValue(ctx context.Context, id string, value float64, at time.Time) error
}

// UnpricedCard is a card the last attempt could not value from sale data
type UnpricedCard struct {
	CardID     string `json:"card_id"`
	UserID     string `json:"user_id"`
	PlayerName string `json:"player_name"`
	Query      string `json:"query"`
	Reason     string `json:"reason"`
}

// PriceWorker periodically re-values collection cards from recent sales.
// Each card gets the median of its outlier-filtered sold prices.
type PriceWorker struct {
	values         ValueStore
	source         SaleSource
	cases          DisplayCaseRefresher
	metricsDB      *gorm.DB
	updateInterval time.Duration
	batchSize      int
	concurrency    int64
	now            func() time.Time
	mu             sync.RWMutex

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	cardsUpdatedToday int
	lastUpdateTime    time.Time
	lastStatsDay      time.Time

	unpricedCards []UnpricedCard
}

type PriceStatus struct {
	LastUpdateTime    time.Time      `json:"last_update_time"`
	NextUpdateTime    time.Time      `json:"next_update_time"`
	CardsUpdatedToday int            `json:"cards_updated_today"`
	BatchSize         int            `json:"batch_size"`
	QueueSize         int            `json:"queue_size"`
	UnpricedCards     []UnpricedCard `json:"unpriced_cards,omitempty"`
}

// NewPriceWorker creates a price worker. cases and metricsDB may be nil;
// non-positive interval and batch size use the defaults.
func NewPriceWorker(values ValueStore, source SaleSource, cases DisplayCaseRefresher, metricsDB *gorm.DB, interval time.Duration, batchSize int) *PriceWorker {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PriceWorker{
		values:         values,
		source:         source,
		cases:          cases,
		metricsDB:      metricsDB,
		updateInterval: interval,
		batchSize:      batchSize,
		concurrency:    defaultWorkerConcurrency,
		now:            time.Now,
	}
}

// QueueRefresh adds a card to the high-priority refresh queue and returns
// its 1-indexed position
func (w *PriceWorker) QueueRefresh(cardID string) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == cardID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, cardID)
	metrics.PriceQueueSize.Set(float64(len(w.urgentQueue)))
	log.Printf("Price worker: queued refresh for card %s (queue size: %d)", cardID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

// GetQueueSize returns current urgent queue size
func (w *PriceWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// resetDailyStatsIfNeeded resets cardsUpdatedToday at midnight
func (w *PriceWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Printf("Price worker: daily stats reset (previous day: %d cards updated)", w.cardsUpdatedToday)
		}
		w.cardsUpdatedToday = 0
		w.lastStatsDay = today
	}
}

// Start begins the background price update worker
func (w *PriceWorker) Start(ctx context.Context) {
	log.Printf("Price worker started: will re-value %d cards every %v", w.batchSize, w.updateInterval)

	// Run immediately on startup
	if updated, err := w.UpdateBatch(ctx); err != nil {
		log.Printf("Price worker: initial batch update failed: %v", err)
	} else {
		log.Printf("Price worker: initial batch updated %d cards", updated)
	}

	ticker := time.NewTicker(w.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Price worker stopping...")
			return
		case <-ticker.C:
			if updated, err := w.UpdateBatch(ctx); err != nil {
				log.Printf("Price worker: batch update failed: %v", err)
			} else if updated > 0 {
				log.Printf("Price worker: batch updated %d cards", updated)
			}
		}
	}
}

// UpdateBatch re-values a batch of cards with priority ordering:
// 1. User-requested refreshes
// 2. Cards with the oldest values
func (w *PriceWorker) UpdateBatch(ctx context.Context) (int, error) {
	w.resetDailyStatsIfNeeded()

	w.urgentMu.Lock()
	urgentIDs := w.urgentQueue
	if len(urgentIDs) > w.batchSize {
		urgentIDs = urgentIDs[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	w.urgentMu.Unlock()

	var cardsToUpdate []models.Card
	if len(urgentIDs) > 0 {
		urgentCards, err := w.values.FindByIDs(ctx, urgentIDs)
		if err != nil {
			return 0, fmt.Errorf("failed to load queued cards: %w", err)
		}
		cardsToUpdate = append(cardsToUpdate, urgentCards...)
		log.Printf("Price worker: processing %d urgent refresh requests", len(urgentCards))
	}

	if remaining := w.batchSize - len(cardsToUpdate); remaining > 0 {
		exclude := make([]string, 0, len(cardsToUpdate))
		for _, c := range cardsToUpdate {
			exclude = append(exclude, c.ID)
		}
		oldest, err := w.values.StaleCards(ctx, exclude, remaining)
		if err != nil {
			return 0, fmt.Errorf("failed to load stale cards: %w", err)
		}
		cardsToUpdate = append(cardsToUpdate, oldest...)
	}

	if len(cardsToUpdate) == 0 {
		log.Println("Price worker: no cards to update")
		return 0, nil
	}

	log.Printf("Price worker: re-valuing %d cards", len(cardsToUpdate))
	return w.revalue(ctx, cardsToUpdate)
}

// revalue fans the sale searches out under a semaphore. A card without sale
// data is recorded as unpriced; a storage failure aborts the batch.
func (w *PriceWorker) revalue(ctx context.Context, cards []models.Card) (int, error) {
	start := time.Now()
	now := w.now()

	var (
		resultMu sync.Mutex
		updated  int
		unpriced []UnpricedCard
		priced   []string
	)
	users := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(w.concurrency)
	for _, card := range cards {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			value, err := w.valueCard(gctx, card)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				resultMu.Lock()
				unpriced = append(unpriced, UnpricedCard{
					CardID:     card.ID,
					UserID:     card.UserID,
					PlayerName: card.PlayerName,
					Query:      card.SearchQuery().Keywords(),
					Reason:     err.Error(),
				})
				resultMu.Unlock()
				return nil
			}

			if err := w.values.UpdateValue(gctx, card.ID, value, now); err != nil {
				return fmt.Errorf("failed to store value for card %s: %w", card.ID, err)
			}

			resultMu.Lock()
			updated++
			priced = append(priced, card.ID)
			users[card.UserID] = struct{}{}
			resultMu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	w.mu.Lock()
	w.cardsUpdatedToday += updated
	w.lastUpdateTime = w.now()
	w.unpricedCards = mergeUnpriced(w.unpricedCards, unpriced, priced)
	cardsToday := w.cardsUpdatedToday
	w.mu.Unlock()

	metrics.PriceUpdatesTotal.Add(float64(updated))
	metrics.PriceUpdatesToday.Set(float64(cardsToday))
	metrics.PriceQueueSize.Set(float64(w.GetQueueSize()))
	metrics.PriceBatchDuration.Observe(time.Since(start).Seconds())
	metrics.UpdateCollectionMetrics(w.metricsDB)

	if w.cases != nil {
		for userID := range users {
			if _, rerr := w.cases.RefreshAll(ctx, userID, false); rerr != nil {
				log.Printf("Price worker: failed to refresh display cases for user %s: %v", userID, rerr)
			}
		}
	}

	if len(unpriced) > 0 {
		slog.Warn("price worker skipped cards without sale data", "count", len(unpriced))
	}
	if err != nil {
		return updated, err
	}
	log.Printf("Price worker: batch updated %d card values (%d without sale data)", updated, len(unpriced))
	return updated, nil
}

// valueCard returns the median outlier-filtered sold price for the card
func (w *PriceWorker) valueCard(ctx context.Context, card models.Card) (float64, error) {
	records, err := w.source.Search(ctx, card.SearchQuery())
	if err != nil {
		return 0, err
	}
	sales, _ := market.FilterSales(market.CleanSales(records))
	if len(sales) == 0 {
		return 0, errNoSales
	}
	median, err := stats.Median(market.Prices(sales))
	if err != nil {
		return 0, err
	}
	return median, nil
}

// mergeUnpriced adds newly unpriced cards and drops ones that were just valued
func mergeUnpriced(existing, added []UnpricedCard, priced []string) []UnpricedCard {
	drop := make(map[string]bool, len(priced)+len(added))
	for _, id := range priced {
		drop[id] = true
	}
	for _, c := range added {
		drop[c.CardID] = true
	}

	out := make([]UnpricedCard, 0, len(existing)+len(added))
	for _, c := range existing {
		if !drop[c.CardID] {
			out = append(out, c)
		}
	}
	return append(out, added...)
}

// GetStatus returns the current status
func (w *PriceWorker) GetStatus() PriceStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return PriceStatus{
		LastUpdateTime:    w.lastUpdateTime,
		NextUpdateTime:    w.lastUpdateTime.Add(w.updateInterval),
		CardsUpdatedToday: w.cardsUpdatedToday,
		BatchSize:         w.batchSize,
		QueueSize:         w.GetQueueSize(),
		UnpricedCards:     append([]UnpricedCard(nil), w.unpricedCards...),
	}
}
