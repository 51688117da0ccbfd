package market

import (
	"math"
	"testing"
	"time"

	"github.com/codyseavey/card-vault/internal/models"
)

func TestCleanSales(t *testing.T) {
	records := []models.SaleRecord{
		{Title: "Later PSA 10", Price: "$1,200.50", Date: "2024-03-01"},
		{Title: "Bad price", Price: "n/a", Date: "2024-01-01"},
		{Title: "Bad date", Price: 10.0, Date: "yesterday"},
		{Title: "Earlier", Price: 99.0, Date: "2024-01-15T10:00:00Z"},
		{Title: "Middle", Price: "150", Date: "Feb 3, 2024"},
		{Title: "Free", Price: 0.0, Date: "2024-02-01"},
		{Title: "Refund", Price: "-20", Date: "2024-02-02"},
	}

	sales := CleanSales(records)
	if len(sales) != 3 {
		t.Fatalf("CleanSales() returned %d sales, want 3", len(sales))
	}
	wantTitles := []string{"Earlier", "Middle", "Later PSA 10"}
	for i, want := range wantTitles {
		if sales[i].Title != want {
			t.Errorf("sales[%d].Title = %q, want %q", i, sales[i].Title, want)
		}
	}
	if sales[2].Price != 1200.50 {
		t.Errorf("parsed price = %v, want 1200.50", sales[2].Price)
	}
	if sales[2].Condition != models.ConditionPSA10 {
		t.Errorf("condition = %q, want %q", sales[2].Condition, models.ConditionPSA10)
	}
	if sales[0].Volume != 1 {
		t.Errorf("default volume = %v, want 1", sales[0].Volume)
	}
}

func TestExtractCondition(t *testing.T) {
	tests := []struct {
		title string
		want  models.Condition
	}{
		{"2018 Prizm Josh Allen PSA 10 Gem Mint", models.ConditionPSA10},
		{"Josh Allen psa 9 rookie", models.ConditionPSA9},
		{"Allen BGS 9.5 Gem", models.ConditionBGS95},
		{"Allen BGS 9", models.ConditionBGS9},
		{"Allen SGC  9.5", models.ConditionSGC95},
		{"Allen PSA 8 NM-MT", models.Condition("PSA 8")},
		{"Allen raw ungraded", models.ConditionRaw},
		{"", models.ConditionRaw},
	}

	for _, tt := range tests {
		if got := ExtractCondition(tt.title); got != tt.want {
			t.Errorf("ExtractCondition(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestAnalyzeRemovesOutliersBeforeScoring(t *testing.T) {
	now := base.AddDate(0, 0, 10)
	var records []models.SaleRecord
	for i, p := range []float64{10, 11, 9, 10, 1000} {
		records = append(records, models.SaleRecord{
			Title: "Card",
			Price: p,
			Date:  base.AddDate(0, 0, i*2).Format("2006-01-02"),
		})
	}

	a := Analyze(records, now)
	if a.OutliersRemoved != 1 {
		t.Errorf("OutliersRemoved = %d, want 1", a.OutliersRemoved)
	}
	if a.SalesCount != 4 {
		t.Errorf("SalesCount = %d, want 4", a.SalesCount)
	}
	if a.CurrentPrice != 10 {
		t.Errorf("CurrentPrice = %v, want 10", a.CurrentPrice)
	}
	if a.Enhanced.MaxPrice != 11 {
		t.Errorf("MaxPrice = %v, want 11", a.Enhanced.MaxPrice)
	}
	if a.Enhanced.Volume30d != 4 {
		t.Errorf("Volume30d = %v, want 4", a.Enhanced.Volume30d)
	}
}

func TestSegmentSales(t *testing.T) {
	now := base.AddDate(0, 0, 60)
	sales := []models.Sale{
		{Title: "PSA 10", Price: 100, Date: base, Condition: models.ConditionPSA10},
		{Title: "raw", Price: 10, Date: base.AddDate(0, 0, 30), Condition: models.ConditionRaw},
		{Title: "PSA 10", Price: 130, Date: base.AddDate(0, 0, 45), Condition: models.ConditionPSA10},
		{Title: "raw", Price: 12, Date: base.AddDate(0, 0, 58), Condition: models.ConditionRaw},
	}

	segs := SegmentSales(sales, now)

	psa := segs.ByCondition["PSA 10"]
	if psa.Count != 2 || psa.AvgPrice != 115 {
		t.Errorf("PSA 10 segment = %+v, want 2 sales averaging 115", psa)
	}
	// 30% over 45 days is 20% a month
	if math.Abs(psa.Trend-20) > 1e-9 {
		t.Errorf("PSA 10 trend = %v, want 20", psa.Trend)
	}
	if got := segs.ByWindow["7d"].Count; got != 1 {
		t.Errorf("7d window count = %d, want 1", got)
	}
	if got := segs.ByWindow["30d"].Count; got != 3 {
		t.Errorf("30d window count = %d, want 3", got)
	}
	total := 0
	for _, s := range segs.ByPriceBracket {
		total += s.Count
	}
	if total != len(sales) {
		t.Errorf("price brackets cover %d sales, want %d", total, len(sales))
	}
}

func TestEnhanceEmpty(t *testing.T) {
	e := Enhance(nil, time.Now())
	if e != (EnhancedMetrics{}) {
		t.Errorf("Enhance(nil) = %+v, want zero value", e)
	}
}
