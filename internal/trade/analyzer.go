// Package trade weighs the cards on each side of a proposed trade.
package trade

import (
	"fmt"
	"math"
	"strings"

	"github.com/codyseavey/card-vault/internal/models"
)

// Market trend labels
const (
	TrendHot     = "hot"
	TrendStable  = "stable"
	TrendCooling = "cooling"
)

// Recommendations
const (
	StrongAccept = "Strong Accept"
	Accept       = "Accept"
	Consider     = "Consider"
	Decline      = "Decline"
)

const neutralScore = 5.0

var trendMultipliers = map[string]float64{
	TrendHot:     1.2,
	TrendStable:  1.0,
	TrendCooling: 0.8,
}

// Graded values relative to a PSA 10 copy
var conditionMultipliers = map[models.Condition]float64{
	models.ConditionPSA10: 1.0,
	models.ConditionPSA9:  0.5,
	models.ConditionRaw:   0.3,
}

// Card is one card's market view as seen by the analyzer. Nil scores take
// the neutral default of 5 and nil forecasts assume a flat market.
type Card struct {
	Name            string            `json:"name"`
	Condition       string            `json:"condition"`
	MarketValue     float64           `json:"market_value"`
	MarketTrend     string            `json:"market_trend"`
	PriceVolatility *float64          `json:"price_volatility,omitempty"`
	VolatilityScore *float64          `json:"volatility_score,omitempty"`
	LiquidityScore  *float64          `json:"liquidity_score,omitempty"`
	Forecast30Day   *float64          `json:"30_day_forecast,omitempty"`
	Forecast90Day   *float64          `json:"90_day_forecast,omitempty"`
	Query           *models.SaleQuery `json:"query,omitempty"`
}

// SideMetrics averages per-card metrics over one side of the trade
type SideMetrics struct {
	AvgTrend      float64 `json:"avg_trend"`
	AvgVolatility float64 `json:"avg_volatility"`
	AvgLiquidity  float64 `json:"avg_liquidity"`
}

// Differences are receiving minus giving
type Differences struct {
	Trend      float64 `json:"trend_difference"`
	Volatility float64 `json:"volatility_difference"`
	Liquidity  float64 `json:"liquidity_difference"`
}

// Report is the full trade evaluation
type Report struct {
	GivingValue           float64     `json:"giving_value"`
	ReceivingValue        float64     `json:"receiving_value"`
	TotalValue            float64     `json:"total_value"`
	ValueDifference       float64     `json:"value_difference"`
	PercentageDifference  float64     `json:"percentage_difference"`
	FairnessScore         float64     `json:"fairness_score"`
	GivingRisk            float64     `json:"giving_risk"`
	ReceivingRisk         float64     `json:"receiving_risk"`
	GivingMetrics         SideMetrics `json:"giving_metrics"`
	ReceivingMetrics      SideMetrics `json:"receiving_metrics"`
	MetricDifferences     Differences `json:"metric_differences"`
	Recommendation        string      `json:"recommendation"`
	RecommendationDetails string      `json:"recommendation_details"`
	GivingHealth          float64     `json:"giving_health"`
	ReceivingHealth       float64     `json:"receiving_health"`
	GivingTrend           float64     `json:"giving_trend"`
	ReceivingTrend        float64     `json:"receiving_trend"`
}

// Analyze evaluates giving away one set of cards for another
func Analyze(giving, receiving []Card) Report {
	gv := TotalValue(giving)
	rv := TotalValue(receiving)
	gm := AverageMetrics(giving)
	rm := AverageMetrics(receiving)
	diff := Differences{
		Trend:      rm.AvgTrend - gm.AvgTrend,
		Volatility: rm.AvgVolatility - gm.AvgVolatility,
		Liquidity:  rm.AvgLiquidity - gm.AvgLiquidity,
	}
	gr := RiskScore(giving)
	rr := RiskScore(receiving)
	rec, details := recommend(gv, rv, gr, rr, diff)

	return Report{
		GivingValue:           gv,
		ReceivingValue:        rv,
		TotalValue:            rv,
		ValueDifference:       rv - gv,
		PercentageDifference:  percentOf(rv-gv, gv),
		FairnessScore:         FairnessScore(gv, rv),
		GivingRisk:            gr,
		ReceivingRisk:         rr,
		GivingMetrics:         gm,
		ReceivingMetrics:      rm,
		MetricDifferences:     diff,
		Recommendation:        rec,
		RecommendationDetails: details,
		GivingHealth:          gm.AvgLiquidity,
		ReceivingHealth:       rm.AvgLiquidity,
		GivingTrend:           gm.AvgTrend,
		ReceivingTrend:        rm.AvgTrend,
	}
}

// TotalValue sums market value adjusted for condition and trend
func TotalValue(cards []Card) float64 {
	var total float64
	for _, c := range cards {
		total += c.MarketValue * conditionMultiplier(c.Condition) * trendMultiplier(c.MarketTrend)
	}
	return total
}

func conditionMultiplier(condition string) float64 {
	if strings.TrimSpace(condition) == "" {
		return conditionMultipliers[models.ConditionRaw]
	}
	if m, ok := conditionMultipliers[models.Condition(condition)]; ok {
		return m
	}
	return 1.0
}

func trendMultiplier(trend string) float64 {
	if trend == "" {
		return 1.0
	}
	if m, ok := trendMultipliers[trend]; ok {
		return m
	}
	return 1.0
}

// FairnessScore is 10 times the smaller side over the larger
func FairnessScore(giving, receiving float64) float64 {
	if giving == 0 || receiving == 0 {
		return 0
	}
	return round1(math.Min(giving, receiving) / math.Max(giving, receiving) * 10)
}

// RiskScore averages per-card risk. Hot markets carry more risk than stable
// ones since momentum can reverse.
func RiskScore(cards []Card) float64 {
	if len(cards) == 0 {
		return 0
	}
	var total float64
	for _, c := range cards {
		total += valueOr(c.PriceVolatility, neutralScore)*0.4 +
			(10-valueOr(c.LiquidityScore, neutralScore))*0.4 +
			trendRisk(c.MarketTrend)*0.2
	}
	return round1(clamp(total/float64(len(cards)), 0, 10))
}

func trendRisk(trend string) float64 {
	switch trend {
	case TrendHot:
		return 10
	case TrendStable, "":
		return 5
	default:
		return 8
	}
}

// AverageMetrics blends each card's forecast into a trend and averages the scores
func AverageMetrics(cards []Card) SideMetrics {
	if len(cards) == 0 {
		return SideMetrics{}
	}
	var trend, volatility, liquidity float64
	for _, c := range cards {
		if c.MarketValue > 0 {
			t30 := percentOf(valueOr(c.Forecast30Day, c.MarketValue)-c.MarketValue, c.MarketValue)
			t90 := percentOf(valueOr(c.Forecast90Day, c.MarketValue)-c.MarketValue, c.MarketValue)
			trend += t30*0.7 + t90*0.3
		}
		volatility += valueOr(c.VolatilityScore, neutralScore)
		liquidity += valueOr(c.LiquidityScore, neutralScore)
	}
	n := float64(len(cards))
	return SideMetrics{
		AvgTrend:      round1(trend / n),
		AvgVolatility: round1(volatility / n),
		AvgLiquidity:  round1(liquidity / n),
	}
}

func recommend(gv, rv, gr, rr float64, diff Differences) (string, string) {
	ratio := 0.0
	if gv > 0 {
		ratio = rv / gv
	}
	riskDiff := rr - gr
	delta := rv - gv
	pct := percentOf(delta, gv)

	var value, impact string
	switch {
	case ratio >= 1.2:
		value = "Receiving significantly more value"
		impact = fmt.Sprintf("Potential gain: $%.2f (%+.1f%%)", delta, pct)
	case ratio >= 1.1:
		value = "Receiving more value"
		impact = fmt.Sprintf("Potential gain: $%.2f (%+.1f%%)", delta, pct)
	case ratio >= 0.9:
		value = "Fair value"
		impact = fmt.Sprintf("Minimal financial impact: $%.2f (%+.1f%%)", delta, pct)
	case ratio >= 0.8:
		value = "Receiving slightly less value"
		impact = fmt.Sprintf("Potential loss: $%.2f (%+.1f%%)", math.Abs(delta), pct)
	default:
		value = "Receiving significantly less value"
		impact = fmt.Sprintf("Significant potential loss: $%.2f (%+.1f%%)", math.Abs(delta), pct)
	}

	var risk string
	switch {
	case riskDiff <= -2:
		risk = "with much lower risk"
	case riskDiff <= -1:
		risk = "with lower risk"
	case riskDiff <= 1:
		risk = "with similar risk"
	default:
		risk = "but with higher risk"
	}

	var trend string
	if math.Abs(diff.Trend) >= 5 {
		side := "giving"
		if diff.Trend > 0 {
			side = "receiving"
		}
		trend = fmt.Sprintf("Cards you're %s show stronger price trends", side)
	}

	var insights []string
	if math.Abs(diff.Volatility) >= 2 {
		if diff.Volatility > 0 {
			insights = append(insights, "Higher price volatility")
		} else {
			insights = append(insights, "Lower price volatility")
		}
	}
	if math.Abs(diff.Liquidity) >= 2 {
		if diff.Liquidity > 0 {
			insights = append(insights, "Better market liquidity")
		} else {
			insights = append(insights, "Worse market liquidity")
		}
	}
	var notes string
	if len(insights) > 0 {
		notes = fmt.Sprintf("Note: %s in cards you're receiving", strings.Join(insights, ", "))
	}

	var rec, closing string
	switch {
	case ratio >= 1.2 && riskDiff <= 2:
		rec, closing = StrongAccept, "This trade presents a significant opportunity for value appreciation with manageable risk."
	case ratio >= 1.1 && riskDiff <= 1:
		rec, closing = Accept, "This trade offers good value with reasonable risk."
	case ratio >= 0.9 && riskDiff <= 0:
		rec, closing = Consider, "This trade is fair but may not offer significant advantages."
	case ratio >= 0.8 && riskDiff <= -2:
		rec, closing = Consider, "The lower risk profile may justify the slight value difference."
	case ratio < 0.8:
		rec, closing = Decline, "The significant value loss makes this trade unfavorable."
	case riskDiff > 2:
		rec, closing = Decline, "The high risk profile outweighs any potential value gains."
	default:
		rec, closing = Consider, "This trade presents a balanced opportunity that requires careful consideration."
	}

	sentences := []string{fmt.Sprintf("%s - %s %s", rec, value, risk), impact}
	for _, s := range []string{trend, notes} {
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return rec, strings.Join(sentences, ". ") + ". " + closing
}

func percentOf(delta, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return delta / base * 100
}

func valueOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
