package market

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/codyseavey/card-vault/internal/models"
)

const (
	iqrMultiplier  = 1.5
	zScoreCutoff   = 3.0
	minOutlierPool = 2
)

// Bounds are the inclusive IQR fences of a price series
type Bounds struct {
	Q1    float64
	Q3    float64
	Lower float64
	Upper float64
}

// IQRBounds computes Q1/Q3 and the 1.5*IQR fences
func IQRBounds(prices []float64) Bounds {
	q1 := Quantile(prices, 0.25)
	q3 := Quantile(prices, 0.75)
	iqr := q3 - q1
	return Bounds{Q1: q1, Q3: q3, Lower: q1 - iqrMultiplier*iqr, Upper: q3 + iqrMultiplier*iqr}
}

// ZScores returns the population z-score of every price. A series without
// spread scores 0 everywhere.
func ZScores(prices []float64) []float64 {
	z := make([]float64, len(prices))
	if len(prices) == 0 {
		return z
	}
	mean, _ := stats.Mean(prices)
	std, _ := stats.StandardDeviationPopulation(prices)
	if std == 0 || math.IsNaN(std) {
		return z
	}
	for i, p := range prices {
		z[i] = (p - mean) / std
	}
	return z
}

// keepMask marks the prices that sit inside the IQR fences and have |z| < 3
func keepMask(prices []float64) []bool {
	keep := make([]bool, len(prices))
	if len(prices) < minOutlierPool {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}
	b := IQRBounds(prices)
	z := ZScores(prices)
	for i, p := range prices {
		keep[i] = p >= b.Lower && p <= b.Upper && math.Abs(z[i]) < zScoreCutoff
	}
	return keep
}

// RemoveOutliers drops every price that fails either the IQR fence or the
// z-score test. Input order is preserved.
func RemoveOutliers(prices []float64) ([]float64, int) {
	keep := keepMask(prices)
	filtered := make([]float64, 0, len(prices))
	for i, p := range prices {
		if keep[i] {
			filtered = append(filtered, p)
		}
	}
	return filtered, len(prices) - len(filtered)
}

// FilterSales applies RemoveOutliers to a sale series
func FilterSales(sales []models.Sale) ([]models.Sale, int) {
	keep := keepMask(Prices(sales))
	filtered := make([]models.Sale, 0, len(sales))
	for i, s := range sales {
		if keep[i] {
			filtered = append(filtered, s)
		}
	}
	return filtered, len(sales) - len(filtered)
}

// Quantile uses linear interpolation between closest ranks (the common
// "type 7" definition), so Quantile([1,2,3,4], 0.25) == 1.75.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
