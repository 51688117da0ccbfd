package market

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/codyseavey/card-vault/internal/models"
)

// Windows used for volume and segment statistics
var windowDays = []struct {
	name string
	days int
}{
	{"7d", 7},
	{"30d", 30},
	{"90d", 90},
}

// Analysis is the full market read for one search
type Analysis struct {
	SalesCount      int             `json:"sales_count"`
	OutliersRemoved int             `json:"outliers_removed"`
	CurrentPrice    float64         `json:"current_price"`
	Metrics         Metrics         `json:"metrics"`
	Enhanced        EnhancedMetrics `json:"enhanced_metrics"`
	Segments        Segments        `json:"segments"`
	Sales           []models.Sale   `json:"sales"`
}

// EnhancedMetrics are descriptive statistics over the filtered sales
type EnhancedMetrics struct {
	AvgPrice        float64 `json:"avg_price"`
	StdPrice        float64 `json:"std_price"`
	MedianPrice     float64 `json:"median_price"`
	MinPrice        float64 `json:"min_price"`
	MaxPrice        float64 `json:"max_price"`
	Q1              float64 `json:"q1"`
	Q3              float64 `json:"q3"`
	Volume30d       float64 `json:"volume_30d"`
	Volume90d       float64 `json:"volume_90d"`
	Momentum        float64 `json:"momentum"`
	VolatilityIndex float64 `json:"volatility_index"`
	PriceTrend      float64 `json:"price_trend"`
}

// Segment summarizes a slice of the sales
type Segment struct {
	Count       int     `json:"count"`
	AvgPrice    float64 `json:"avg_price"`
	MedianPrice float64 `json:"median_price"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	Trend       float64 `json:"trend"`
}

// Segments groups sales by condition, price bracket and recency
type Segments struct {
	ByCondition    map[string]Segment `json:"by_condition"`
	ByPriceBracket map[string]Segment `json:"by_price_bracket"`
	ByWindow       map[string]Segment `json:"by_window"`
}

// Analyze cleans raw records, removes outliers and scores the remainder.
// now anchors the recency windows.
func Analyze(records []models.SaleRecord, now time.Time) Analysis {
	return AnalyzeSales(CleanSales(records), now)
}

// AnalyzeSales runs the pipeline on already-cleaned sales sorted by date
func AnalyzeSales(sales []models.Sale, now time.Time) Analysis {
	filtered, removed := FilterSales(sales)
	a := Analysis{
		SalesCount:      len(filtered),
		OutliersRemoved: removed,
		Metrics:         Score(filtered),
		Enhanced:        Enhance(filtered, now),
		Segments:        SegmentSales(filtered, now),
		Sales:           filtered,
	}
	if len(filtered) > 0 {
		a.CurrentPrice = filtered[len(filtered)-1].Price
	}
	return a
}

// Enhance computes the descriptive statistics block
func Enhance(sales []models.Sale, now time.Time) EnhancedMetrics {
	var e EnhancedMetrics
	prices := Prices(sales)
	if len(prices) == 0 {
		return e
	}
	e.AvgPrice, _ = stats.Mean(prices)
	e.MedianPrice, _ = stats.Median(prices)
	e.MinPrice, _ = stats.Min(prices)
	e.MaxPrice, _ = stats.Max(prices)
	if len(prices) > 1 {
		e.StdPrice, _ = stats.StandardDeviationSample(prices)
	}
	e.Q1 = Quantile(prices, 0.25)
	e.Q3 = Quantile(prices, 0.75)

	for _, s := range sales {
		age := now.Sub(s.Date)
		if age <= 30*24*time.Hour {
			e.Volume30d += s.Volume
		}
		if age <= 90*24*time.Hour {
			e.Volume90d += s.Volume
		}
	}

	recent := Prices(since(sales, now, 30))
	if len(recent) > 0 {
		recentMean, _ := stats.Mean(recent)
		if e.StdPrice > 0 {
			e.Momentum = (recentMean - e.AvgPrice) / e.StdPrice
		}
		if len(recent) > 1 && recentMean != 0 {
			recentStd, _ := stats.StandardDeviationSample(recent)
			e.VolatilityIndex = recentStd / recentMean
		}
	}
	if first := prices[0]; first != 0 {
		e.PriceTrend = (prices[len(prices)-1] - first) / first * 100
	}
	return e
}

// SegmentSales groups sales three ways. Sales must be sorted by date.
func SegmentSales(sales []models.Sale, now time.Time) Segments {
	segs := Segments{
		ByCondition:    map[string]Segment{},
		ByPriceBracket: map[string]Segment{},
		ByWindow:       map[string]Segment{},
	}
	if len(sales) == 0 {
		return segs
	}

	byCondition := map[string][]models.Sale{}
	for _, s := range sales {
		c := string(s.Condition)
		if c == "" {
			c = string(ExtractCondition(s.Title))
		}
		byCondition[c] = append(byCondition[c], s)
	}
	for c, group := range byCondition {
		segs.ByCondition[c] = summarize(group)
	}

	prices := Prices(sales)
	q1, q2, q3 := Quantile(prices, 0.25), Quantile(prices, 0.5), Quantile(prices, 0.75)
	brackets := map[string][]models.Sale{}
	for _, s := range sales {
		var name string
		switch {
		case s.Price <= q1:
			name = "Low"
		case s.Price <= q2:
			name = "Medium-Low"
		case s.Price <= q3:
			name = "Medium-High"
		default:
			name = "High"
		}
		brackets[name] = append(brackets[name], s)
	}
	for name, group := range brackets {
		segs.ByPriceBracket[name] = summarize(group)
	}

	for _, w := range windowDays {
		if group := since(sales, now, w.days); len(group) > 0 {
			segs.ByWindow[w.name] = summarize(group)
		}
	}
	return segs
}

func summarize(sales []models.Sale) Segment {
	prices := Prices(sales)
	seg := Segment{Count: len(prices)}
	seg.AvgPrice, _ = stats.Mean(prices)
	seg.MedianPrice, _ = stats.Median(prices)
	seg.MinPrice, _ = stats.Min(prices)
	seg.MaxPrice, _ = stats.Max(prices)
	seg.Trend = monthlyTrend(sales)
	return seg
}

// monthlyTrend is the percent change from first to last sale normalized to a 30 day rate
func monthlyTrend(sales []models.Sale) float64 {
	if len(sales) < 2 {
		return 0
	}
	first, last := sales[0], sales[len(sales)-1]
	days := last.Date.Sub(first.Date).Hours() / dayHours
	if first.Price == 0 || days <= 0 {
		return 0
	}
	change := (last.Price - first.Price) / first.Price * 100
	return change / (days / 30)
}

func since(sales []models.Sale, now time.Time, days int) []models.Sale {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	var out []models.Sale
	for _, s := range sales {
		if !s.Date.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
