package metrics

import (
	"log"

	"gorm.io/gorm"
)

// UpdateCollectionMetrics refreshes collection gauges from the database
func UpdateCollectionMetrics(db *gorm.DB) {
	if db == nil {
		return
	}

	var totals struct {
		Cards int64
		Value float64
	}
	if err := db.Table("cards").
		Select("COUNT(*) AS cards, COALESCE(SUM(current_value), 0) AS value").
		Scan(&totals).Error; err != nil {
		log.Printf("Metrics: failed to load collection totals: %v", err)
		return
	}
	CollectionCardsTotal.Set(float64(totals.Cards))
	CollectionValueUSD.Set(totals.Value)

	var byCondition []struct {
		Condition string
		Count     int64
	}
	if err := db.Table("cards").
		Select("condition, COUNT(*) AS count").
		Group("condition").
		Scan(&byCondition).Error; err != nil {
		log.Printf("Metrics: failed to load condition breakdown: %v", err)
		return
	}
	CollectionCardsByCondition.Reset()
	for _, row := range byCondition {
		CollectionCardsByCondition.WithLabelValues(row.Condition).Set(float64(row.Count))
	}
}
