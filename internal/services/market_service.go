package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codyseavey/card-vault/internal/forecast"
	"github.com/codyseavey/card-vault/internal/market"
	"github.com/codyseavey/card-vault/internal/metrics"
	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/trade"
)

const (
	defaultAnalysisCacheSize = 128
	defaultAnalysisCacheTTL  = time.Hour

	// trend scores past these marks label a market hot or cooling
	hotTrendScore     = 6.5
	coolingTrendScore = 3.5
)

var (
	ErrNoSalesData  = errors.New("no sales found")
	ErrInvalidQuery = errors.New("player_name is required")
)

// MarketService searches sold listings and turns them into analyses,
// forecasts and trade inputs
type MarketService struct {
	source     SaleSource
	forecaster *forecast.Forecaster
	analyses   *expirable.LRU[string, market.Analysis]
	now        func() time.Time
}

// NewMarketService creates a MarketService. Analyses are cached per query.
func NewMarketService(source SaleSource, forecaster *forecast.Forecaster, cacheSize int, cacheTTL time.Duration) *MarketService {
	if cacheSize <= 0 {
		cacheSize = defaultAnalysisCacheSize
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultAnalysisCacheTTL
	}
	if forecaster == nil {
		forecaster = forecast.New(forecast.Options{})
	}
	return &MarketService{
		source:     source,
		forecaster: forecaster,
		analyses:   expirable.NewLRU[string, market.Analysis](cacheSize, nil, cacheTTL),
		now:        time.Now,
	}
}

// Search returns raw sold listings for the query
func (s *MarketService) Search(ctx context.Context, q models.SaleQuery) ([]models.SaleRecord, error) {
	if q.IsEmpty() {
		return nil, ErrInvalidQuery
	}
	if s.source == nil {
		return nil, fmt.Errorf("no sale source configured")
	}
	return s.source.Search(ctx, q)
}

// Analyze searches and analyzes sales for the query
func (s *MarketService) Analyze(ctx context.Context, q models.SaleQuery) (*market.Analysis, error) {
	key := q.CacheKey()
	if a, ok := s.analyses.Get(key); ok {
		metrics.MarketAnalysesTotal.WithLabelValues("cache").Inc()
		return &a, nil
	}

	records, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	a := s.AnalyzeRecords(records)
	if a.SalesCount == 0 {
		metrics.MarketAnalysesTotal.WithLabelValues("no_data").Inc()
		return nil, ErrNoSalesData
	}
	s.analyses.Add(key, a)
	return &a, nil
}

// AnalyzeRecords analyzes caller-supplied sale records
func (s *MarketService) AnalyzeRecords(records []models.SaleRecord) market.Analysis {
	metrics.MarketAnalysesTotal.WithLabelValues("computed").Inc()
	return market.Analyze(records, s.now())
}

// Forecast searches sales for the query and forecasts from them. Only the
// search can fail; the forecast itself always produces a result.
func (s *MarketService) Forecast(ctx context.Context, q models.SaleQuery, daysAhead int) (forecast.Result, error) {
	records, err := s.Search(ctx, q)
	if err != nil {
		return forecast.Result{}, err
	}
	return s.ForecastRecords(ctx, q.PlayerName, records, daysAhead), nil
}

// ForecastRecords forecasts from caller-supplied sale records
func (s *MarketService) ForecastRecords(ctx context.Context, player string, records []models.SaleRecord, daysAhead int) forecast.Result {
	return s.forecaster.Forecast(ctx, forecast.Request{
		PlayerName: player,
		Records:    records,
		DaysAhead:  daysAhead,
	})
}

// AnalyzeTrade fills market inputs for cards that carry a query and runs the
// trade analyzer. Cards whose lookup fails keep the neutral defaults.
func (s *MarketService) AnalyzeTrade(ctx context.Context, giving, receiving []trade.Card) trade.Report {
	for _, side := range [][]trade.Card{giving, receiving} {
		for i := range side {
			if err := s.fillTradeCard(ctx, &side[i]); err != nil {
				log.Printf("Market service: trade lookup for %q failed: %v", side[i].Name, err)
			}
		}
	}
	return trade.Analyze(giving, receiving)
}

func (s *MarketService) fillTradeCard(ctx context.Context, c *trade.Card) error {
	if c.Query == nil || c.Query.IsEmpty() {
		return nil
	}
	a, err := s.Analyze(ctx, *c.Query)
	if err != nil {
		return err
	}

	if c.MarketValue <= 0 {
		c.MarketValue = a.Enhanced.MedianPrice
	}
	if c.Condition == "" && c.Query.Condition != "" {
		c.Condition = string(models.NormalizeCondition(c.Query.Condition))
	}
	if c.MarketTrend == "" {
		c.MarketTrend = trendLabel(a.Metrics.TrendScore)
	}
	if c.VolatilityScore == nil {
		c.VolatilityScore = floatPtr(a.Metrics.VolatilityScore)
	}
	if c.PriceVolatility == nil {
		c.PriceVolatility = floatPtr(a.Metrics.VolatilityScore)
	}
	if c.LiquidityScore == nil {
		c.LiquidityScore = floatPtr(a.Metrics.LiquidityScore)
	}
	if c.Forecast30Day == nil || c.Forecast90Day == nil {
		records := make([]models.SaleRecord, len(a.Sales))
		for i, sale := range a.Sales {
			records[i] = models.SaleRecord{Title: sale.Title, Price: sale.Price, Date: sale.Date, Volume: sale.Volume}
		}
		f := s.ForecastRecords(ctx, c.Query.PlayerName, records, forecast.DefaultDaysAhead)
		// forecasts are relative to the latest sale, rescale to this card's value
		scale := 1.0
		if f.CurrentPrice > 0 {
			scale = c.MarketValue / f.CurrentPrice
		}
		if c.Forecast30Day == nil {
			c.Forecast30Day = floatPtr(f.Metrics.Forecast30Day * scale)
		}
		if c.Forecast90Day == nil {
			c.Forecast90Day = floatPtr(f.Metrics.Forecast90Day * scale)
		}
	}
	return nil
}

func trendLabel(score float64) string {
	switch {
	case score >= hotTrendScore:
		return trade.TrendHot
	case score <= coolingTrendScore:
		return trade.TrendCooling
	default:
		return trade.TrendStable
	}
}

func floatPtr(v float64) *float64 { return &v }
