package forecast

import (
	"math"
	"time"

	"github.com/codyseavey/card-vault/internal/models"
)

// Feature column order shared by training rows and future rows
const (
	colMA7 = iota
	colMA30
	colStd7
	colStd30
	colMomentum
	colVolatility
	colVolumeMA7
	colVolumeMA30
	colLag1
	colLag7
	colLag30
	colSeasonal
	colWeekly
	featureCount
)

// frame is the engineered training table, one row per sale
type frame struct {
	dates  []time.Time
	prices []float64
	rows   [][]float64
}

func (f frame) size() int { return len(f.prices) }

func (f frame) column(c int) []float64 {
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[c]
	}
	return out
}

// buildFeatures engineers rolling, lag and calendar features for sales sorted
// by date. Gaps left by short windows and lags are forward then backward filled.
func buildFeatures(sales []models.Sale) frame {
	n := len(sales)
	f := frame{
		dates:  make([]time.Time, n),
		prices: make([]float64, n),
		rows:   make([][]float64, n),
	}
	volumes := make([]float64, n)
	for i, s := range sales {
		f.dates[i] = s.Date
		f.prices[i] = s.Price
		volumes[i] = s.Volume
		if volumes[i] <= 0 {
			volumes[i] = 1
		}
	}

	ma7 := rollingMean(f.prices, 7)
	ma30 := rollingMean(f.prices, 30)
	std7 := rollingStd(f.prices, 7)
	std30 := rollingStd(f.prices, 30)
	vma7 := rollingMean(volumes, 7)
	vma30 := rollingMean(volumes, 30)
	lag1 := shift(f.prices, 1)
	lag7 := shift(f.prices, 7)
	lag30 := shift(f.prices, 30)

	for i := range f.rows {
		row := make([]float64, featureCount)
		row[colMA7] = ma7[i]
		row[colMA30] = ma30[i]
		row[colStd7] = std7[i]
		row[colStd30] = std30[i]
		row[colMomentum] = ratio(f.prices[i]-ma7[i], ma7[i])
		row[colVolatility] = ratio(std7[i], ma7[i])
		row[colVolumeMA7] = vma7[i]
		row[colVolumeMA30] = vma30[i]
		row[colLag1] = lag1[i]
		row[colLag7] = lag7[i]
		row[colLag30] = lag30[i]
		row[colSeasonal] = SeasonalFactor(f.dates[i])
		row[colWeekly] = WeeklyFactor(f.dates[i])
		f.rows[i] = row
	}
	fillGaps(f.rows)
	return f
}

// futureRow carries the latest observed features forward to date t
func (f frame) futureRow(t time.Time) []float64 {
	row := append([]float64(nil), f.rows[len(f.rows)-1]...)
	row[colSeasonal] = SeasonalFactor(t)
	row[colWeekly] = WeeklyFactor(t)
	return row
}

// rollingMean averages the trailing window, using whatever is available at the start
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// rollingStd is the trailing sample standard deviation; NaN until two values exist
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := max(0, i-window+1)
		w := values[start : i+1]
		if len(w) < 2 {
			out[i] = math.NaN()
			continue
		}
		var mean float64
		for _, v := range w {
			mean += v
		}
		mean /= float64(len(w))
		var ss float64
		for _, v := range w {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(len(w)-1))
	}
	return out
}

func shift(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-k]
		}
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// fillGaps forward fills then backward fills each column. Columns that are
// entirely missing become zero.
func fillGaps(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	for c := 0; c < featureCount; c++ {
		last := math.NaN()
		for _, r := range rows {
			if isMissing(r[c]) {
				r[c] = last
			} else {
				last = r[c]
			}
		}
		next := math.NaN()
		for i := len(rows) - 1; i >= 0; i-- {
			if isMissing(rows[i][c]) {
				rows[i][c] = next
			} else {
				next = rows[i][c]
			}
		}
		for _, r := range rows {
			if isMissing(r[c]) {
				r[c] = 0
			}
		}
	}
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
