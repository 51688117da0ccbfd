package market

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/codyseavey/card-vault/internal/models"
)

const (
	neutralScore = 5.0
	maxScore     = 10.0
	dayHours     = 24.0
)

// Grade is a buy or sell letter grade
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Metrics holds the 0-10 market scores for a sale series
type Metrics struct {
	VolatilityScore   float64 `json:"volatility_score"`
	TrendScore        float64 `json:"trend_score"`
	LiquidityScore    float64 `json:"liquidity_score"`
	MarketHealthScore float64 `json:"market_health_score"`
	BuyGrade          Grade   `json:"buy_grade"`
	SellGrade         Grade   `json:"sell_grade"`
	SampleSize        int     `json:"sample_size"`
}

// Score computes volatility, trend, liquidity and health for sales sorted
// oldest first. Empty and degenerate series get the neutral defaults.
func Score(sales []models.Sale) Metrics {
	prices := Prices(sales)
	days := daysSinceFirst(sales)

	m := Metrics{
		VolatilityScore: VolatilityScore(prices),
		TrendScore:      TrendScore(days, prices),
		LiquidityScore:  LiquidityScore(days),
		SampleSize:      len(sales),
	}
	m.MarketHealthScore = HealthScore(m.VolatilityScore, m.TrendScore, m.LiquidityScore)
	m.BuyGrade = BuyGrade(m.VolatilityScore, m.TrendScore, m.LiquidityScore)
	m.SellGrade = SellGrade(m.VolatilityScore, m.TrendScore, m.LiquidityScore)
	return m
}

// VolatilityScore is the coefficient of variation scaled by 10
func VolatilityScore(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	mean, _ := stats.Mean(prices)
	if mean == 0 {
		return 0
	}
	std, err := stats.StandardDeviationSample(prices)
	if err != nil {
		return 0
	}
	return clamp(std/mean*10, 0, maxScore)
}

// TrendScore is 5 plus the R²-damped relative OLS slope of price against day
func TrendScore(days, prices []float64) float64 {
	if len(prices) < 2 || len(days) != len(prices) {
		return neutralScore
	}
	mean, _ := stats.Mean(prices)
	if mean == 0 {
		return neutralScore
	}
	slope, r2, ok := linearFit(days, prices)
	if !ok {
		return neutralScore
	}
	sign := 0.0
	switch {
	case slope > 0:
		sign = 1
	case slope < 0:
		sign = -1
	}
	score := neutralScore + sign*(math.Abs(slope)/mean*100)*r2
	if math.IsNaN(score) {
		return neutralScore
	}
	return clamp(score, 0, maxScore)
}

// LiquidityScore drops one point for every 30 days between sales
func LiquidityScore(days []float64) float64 {
	if len(days) < 2 {
		return neutralScore
	}
	var total float64
	for i := 1; i < len(days); i++ {
		total += days[i] - days[i-1]
	}
	avgGap := total / float64(len(days)-1)
	return clamp(maxScore-avgGap/30, 0, maxScore)
}

// HealthScore blends inverted volatility, trend and liquidity
func HealthScore(volatility, trend, liquidity float64) float64 {
	v := clamp(11-volatility, 1, maxScore)
	t := clamp(trend, 1, maxScore)
	l := clamp(liquidity, 1, maxScore)
	return clamp(v*0.3+t*0.4+l*0.3, 1, maxScore)
}

// BuyGrade favours calm markets with room to rise
func BuyGrade(volatility, trend, liquidity float64) Grade {
	return letterGrade(((maxScore-volatility)*0.3 + (maxScore-trend)*0.4 + liquidity*0.3) / maxScore)
}

// SellGrade favours hot, liquid markets
func SellGrade(volatility, trend, liquidity float64) Grade {
	return letterGrade((volatility*0.3 + trend*0.4 + liquidity*0.3) / maxScore)
}

func letterGrade(score float64) Grade {
	switch {
	case score >= 0.8:
		return GradeA
	case score >= 0.6:
		return GradeB
	case score >= 0.4:
		return GradeC
	default:
		return GradeD
	}
}

// daysSinceFirst converts sale dates to whole days after the first sale
func daysSinceFirst(sales []models.Sale) []float64 {
	days := make([]float64, len(sales))
	if len(sales) == 0 {
		return days
	}
	first := sales[0].Date
	for i, s := range sales {
		days[i] = wholeDays(first, s.Date)
	}
	return days
}

func wholeDays(from, to time.Time) float64 {
	return math.Floor(to.Sub(from).Hours() / dayHours)
}

// linearFit returns the OLS slope and R². ok is false when x or y has no spread.
func linearFit(x, y []float64) (slope, r2 float64, ok bool) {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/n, sy/n
	var sxx, sxy, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, 0, false
	}
	slope = sxy / sxx
	intercept := my - slope*mx
	var ssRes float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		ssRes += r * r
	}
	return slope, 1 - ssRes/syy, true
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
