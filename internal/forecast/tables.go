package forecast

import "time"

// Month multipliers tuned on historical football card sales. The NFL season
// start and the holidays lift prices, the summer lull depresses them.
var seasonalFactors = map[time.Month]float64{
	time.January:   1.02,
	time.February:  0.98,
	time.March:     1.05,
	time.April:     1.08,
	time.May:       1.02,
	time.June:      0.98,
	time.July:      0.95,
	time.August:    0.92,
	time.September: 1.10,
	time.October:   1.08,
	time.November:  1.05,
	time.December:  1.12,
}

// Weekend auctions close higher
var weeklyFactors = map[time.Weekday]float64{
	time.Sunday:    1.15,
	time.Monday:    1.05,
	time.Tuesday:   1.02,
	time.Wednesday: 1.00,
	time.Thursday:  0.98,
	time.Friday:    0.95,
	time.Saturday:  1.10,
}

// SeasonalFactor returns the month multiplier for t
func SeasonalFactor(t time.Time) float64 {
	return seasonalFactors[t.Month()]
}

// WeeklyFactor returns the weekday multiplier for t
func WeeklyFactor(t time.Time) float64 {
	return weeklyFactors[t.Weekday()]
}
