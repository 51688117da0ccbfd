// Package forecast projects card prices from sale history with a small tree
// ensemble, falling back to a linear trend when the history is too thin.
package forecast

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/card-vault/internal/market"
	"github.com/codyseavey/card-vault/internal/metrics"
	"github.com/codyseavey/card-vault/internal/models"
)

const (
	// MinRichSamples is the least number of cleaned sales the ensemble will train on
	MinRichSamples = 7

	MaxDaysAhead     = 365
	DefaultDaysAhead = 90
	DefaultTimeout   = 10 * time.Second

	trainFraction   = 0.8
	weightEpsilon   = 1e-10
	noiseFraction   = 0.05
	richFloor       = 0.7
	richCeiling     = 1.5
	fallbackFloor   = 0.7
	fallbackCeiling = 1.3
	shortTermIndex  = 29
)

// Forecast paths
const (
	PathRich     = "rich"
	PathFallback = "fallback"
)

// Recommendation labels
const (
	StrongBuy  = "Strong Buy"
	Buy        = "Buy"
	Hold       = "Hold"
	Sell       = "Sell"
	StrongSell = "Strong Sell"
)

// PricePoint is one forecast day
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Recommendations pairs a 30 day call with a full-horizon call
type Recommendations struct {
	ShortTerm string `json:"short_term"`
	LongTerm  string `json:"long_term"`
}

// Metrics are headline numbers pulled from the forecast series
type Metrics struct {
	Forecast30Day        float64 `json:"30_day_forecast"`
	Forecast90Day        float64 `json:"90_day_forecast"`
	PotentialReturn30Day float64 `json:"potential_30_day_return"`
	PotentialReturn90Day float64 `json:"potential_90_day_return"`
}

// Result always carries a usable forecast. ConfidenceScore is the signal for
// how much to trust it.
type Result struct {
	Path            string             `json:"path"`
	CurrentPrice    float64            `json:"current_price"`
	PredictedPrices []PricePoint       `json:"predicted_prices"`
	ConfidenceScore float64            `json:"confidence_score"`
	PriceVolatility float64            `json:"price_volatility"`
	PriceTrend      float64            `json:"price_trend"`
	MarketFactor    float64            `json:"market_factor"`
	SentimentFactor float64            `json:"sentiment_factor"`
	ModelWeights    map[string]float64 `json:"model_weights,omitempty"`
	SampleSize      int                `json:"sample_size"`
	Recommendations Recommendations    `json:"recommendations"`
	Metrics         Metrics            `json:"metrics"`
}

// Request describes one forecast
type Request struct {
	// PlayerName selects the stats used for the market factor. When empty it
	// is guessed from the first sale title.
	PlayerName string
	Records    []models.SaleRecord
	DaysAhead  int
}

// Options configures a Forecaster
type Options struct {
	Timeout time.Duration
	// Seed makes noise and model sampling reproducible. Zero seeds from the clock.
	Seed  uint64
	Stats PlayerStatsProvider
	Now   func() time.Time
}

// Forecaster produces price forecasts. It is safe for concurrent use.
type Forecaster struct {
	timeout time.Duration
	seed    uint64
	stats   PlayerStatsProvider
	now     func() time.Time
}

// New creates a Forecaster
func New(opts Options) *Forecaster {
	f := &Forecaster{
		timeout: opts.Timeout,
		seed:    opts.Seed,
		stats:   opts.Stats,
		now:     opts.Now,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Forecast projects prices DaysAhead days past the last sale. It never fails:
// errors, panics and timeouts in the ensemble degrade to the linear fallback.
func (f *Forecaster) Forecast(ctx context.Context, req Request) Result {
	start := time.Now()
	days := clampDays(req.DaysAhead)
	sales, _ := market.FilterSales(market.CleanSales(req.Records))

	var res Result
	if len(sales) >= MinRichSamples {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		r, err := f.rich(ctx, req.PlayerName, sales, days)
		cancel()
		if err != nil {
			log.Printf("Forecast: ensemble failed, using trend fallback: %v", err)
			res = f.fallback(sales, days)
		} else {
			res = r
		}
	} else {
		res = f.fallback(sales, days)
	}

	metrics.ForecastsTotal.WithLabelValues(res.Path).Inc()
	metrics.ForecastDuration.Observe(time.Since(start).Seconds())
	return res
}

func (f *Forecaster) rich(ctx context.Context, player string, sales []models.Sale, days int) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in ensemble: %v", r)
		}
	}()

	fr := buildFeatures(sales)
	seed := f.seed
	if seed == 0 {
		seed = uint64(f.now().UnixNano())
	}

	weights, ensemble, modelConfidence, err := fitEnsemble(ctx, fr, seed)
	if err != nil {
		return Result{}, err
	}

	if player == "" {
		player = playerFromTitle(sales[0].Title)
	}
	mf := f.marketFactor(ctx, player)
	titles := make([]string, len(sales))
	for i, s := range sales {
		titles[i] = s.Title
	}
	sentiment := Sentiment(titles)
	sf := SentimentFactor(sentiment)

	last := fr.size() - 1
	current := fr.prices[last]
	std30 := fr.rows[last][colStd30]
	ma30 := fr.rows[last][colMA30]
	noise := rand.New(rand.NewPCG(seed, 0))

	points := make([]PricePoint, days)
	for i := range points {
		date := fr.dates[last].AddDate(0, 0, i+1)
		row := fr.futureRow(date)
		var pred float64
		for j, m := range ensemble {
			pred += m.predict(row) * weights[j]
		}
		price := pred * mf * sf * SeasonalFactor(date) * WeeklyFactor(date)
		price += noise.NormFloat64() * std30 * noiseFraction
		if math.IsNaN(price) || math.IsInf(price, 0) {
			price = current
		}
		points[i] = PricePoint{Date: date, Price: clamp(price, current*richFloor, current*richCeiling)}
	}

	confidence := math.Min(float64(len(sales))/30, 1)*4 +
		math.Min(mf, 1)*3 +
		math.Min(sentiment*2, 1)*3 +
		modelConfidence*3

	res = Result{
		Path:            PathRich,
		CurrentPrice:    current,
		PredictedPrices: points,
		ConfidenceScore: math.Min(confidence, 10),
		PriceVolatility: safeRatio(std30, ma30) * 100,
		PriceTrend:      safeRatio(current-fr.prices[0], fr.prices[0]) * 100,
		MarketFactor:    mf,
		SentimentFactor: sf,
		ModelWeights:    map[string]float64{},
		SampleSize:      len(sales),
	}
	for j, m := range ensemble {
		res.ModelWeights[m.name()] = weights[j]
	}
	res.summarize(mf)
	return res, nil
}

// fitEnsemble trains the three regressors in parallel on the first 80% of the
// rows and weights them by R² on the rest. modelConfidence is the total
// weight earned by positive scores, zero when no model beat the mean.
func fitEnsemble(ctx context.Context, fr frame, seed uint64) ([]float64, []regressor, float64, error) {
	n := fr.size()
	split := int(float64(n) * trainFraction)
	if split < 2 || split >= n {
		return nil, nil, 0, fmt.Errorf("not enough rows to split: %d", n)
	}
	trainX, trainY := fr.rows[:split], fr.prices[:split]
	testX, testY := fr.rows[split:], fr.prices[split:]

	ensemble := []regressor{
		newRandomForest(rand.New(rand.NewPCG(seed, 1))),
		newGradientBoosting(rand.New(rand.NewPCG(seed, 2))),
		newExtraTrees(rand.New(rand.NewPCG(seed, 3))),
	}
	scores := make([]float64, len(ensemble))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range ensemble {
		g.Go(func() error {
			if err := m.fit(gctx, trainX, trainY); err != nil {
				return fmt.Errorf("%s: %w", m.name(), err)
			}
			pred := make([]float64, len(testX))
			for k, x := range testX {
				pred[k] = m.predict(x)
			}
			scores[i] = r2Score(testY, pred)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}

	weights, confidence := normalizeWeights(scores)
	return weights, ensemble, confidence, nil
}

// normalizeWeights turns R² scores into blend weights. Negative scores count
// as zero; when nothing is left the models are blended evenly.
func normalizeWeights(scores []float64) ([]float64, float64) {
	weights := make([]float64, len(scores))
	var total float64
	for _, s := range scores {
		if s > 0 && !math.IsNaN(s) {
			total += s
		}
	}
	if total <= weightEpsilon {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return weights, 0
	}
	var sum float64
	for i, s := range scores {
		if s > 0 && !math.IsNaN(s) {
			weights[i] = s / (total + weightEpsilon)
		}
		sum += weights[i]
	}
	return weights, sum
}

func (f *Forecaster) marketFactor(ctx context.Context, player string) float64 {
	if f.stats == nil || player == "" {
		return 1.0
	}
	s, err := f.stats.PlayerStats(ctx, player)
	if err != nil {
		log.Printf("Forecast: player stats lookup failed for %q: %v", player, err)
		return 1.0
	}
	return MarketFactor(s)
}

// fallback projects the first-to-last trend linearly
func (f *Forecaster) fallback(sales []models.Sale, days int) Result {
	var current, trend float64
	anchor := f.now()
	if len(sales) > 0 {
		first, last := sales[0], sales[len(sales)-1]
		current = last.Price
		anchor = last.Date
		if len(sales) > 1 {
			trend = safeRatio(last.Price-first.Price, first.Price)
		}
	}

	points := make([]PricePoint, days)
	for i := range points {
		price := current * (1 + trend*float64(i+1)/365)
		points[i] = PricePoint{
			Date:  anchor.AddDate(0, 0, i+1),
			Price: clamp(price, current*fallbackFloor, current*fallbackCeiling),
		}
	}

	confidence := math.Min(float64(len(sales))/30, 1)*4 + math.Min(math.Abs(trend)*2, 1)*3 + 3
	res := Result{
		Path:            PathFallback,
		CurrentPrice:    current,
		PredictedPrices: points,
		ConfidenceScore: math.Min(confidence, 10),
		PriceTrend:      trend * 100,
		MarketFactor:    1.0,
		SentimentFactor: 1.0,
		SampleSize:      len(sales),
	}
	res.summarize(1.0)
	return res
}

// summarize fills the headline metrics and recommendations
func (r *Result) summarize(mf float64) {
	if len(r.PredictedPrices) == 0 {
		r.Recommendations = Recommendations{ShortTerm: Hold, LongTerm: Hold}
		return
	}
	short := r.PredictedPrices[min(shortTermIndex, len(r.PredictedPrices)-1)].Price
	long := r.PredictedPrices[len(r.PredictedPrices)-1].Price
	r.Metrics = Metrics{
		Forecast30Day:        short,
		Forecast90Day:        long,
		PotentialReturn30Day: safeRatio(short-r.CurrentPrice, r.CurrentPrice) * 100,
		PotentialReturn90Day: safeRatio(long-r.CurrentPrice, r.CurrentPrice) * 100,
	}
	r.Recommendations = Recommendations{
		ShortTerm: Recommend(r.CurrentPrice, short, mf),
		LongTerm:  Recommend(r.CurrentPrice, long, mf),
	}
}

// Recommend compares the forecast change against thresholds that tighten as
// the market factor rises.
func Recommend(current, future, marketFactor float64) string {
	if current <= 0 || marketFactor <= 0 {
		return Hold
	}
	pct := (future - current) / current * 100
	buy := 15 / marketFactor
	strongBuy := 25 / marketFactor
	switch {
	case pct > strongBuy && marketFactor > 1.1:
		return StrongBuy
	case pct > buy:
		return Buy
	case pct < -strongBuy && marketFactor < 0.9:
		return StrongSell
	case pct < -buy:
		return Sell
	default:
		return Hold
	}
}

func clampDays(days int) int {
	if days <= 0 {
		return DefaultDaysAhead
	}
	return min(days, MaxDaysAhead)
}

func safeRatio(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return 0
	}
	return num / den
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
