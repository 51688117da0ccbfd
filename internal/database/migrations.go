package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/codyseavey/card-vault/internal/models"
)

// RunMigrations runs data clean-ups that keep stored rows consistent with the model invariants
func RunMigrations(db *gorm.DB) error {
	if err := migrateConditions(db); err != nil {
		return err
	}
	if err := migrateCardDefaults(db); err != nil {
		return err
	}
	if err := migrateDisplayCaseDefaults(db); err != nil {
		return err
	}
	return nil
}

// migrateConditions rewrites unknown condition strings to Raw
func migrateConditions(db *gorm.DB) error {
	if !db.Migrator().HasColumn(&models.Card{}, "condition") {
		return nil
	}

	known := make([]string, 0, len(models.AllConditions()))
	for _, c := range models.AllConditions() {
		known = append(known, string(c))
	}

	result := db.Exec(`UPDATE cards SET condition = ? WHERE condition IS NULL OR condition NOT IN ?`,
		string(models.ConditionRaw), known)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Normalized %d card conditions to %s", result.RowsAffected, models.ConditionRaw)
	}
	return nil
}

// migrateCardDefaults backfills tags, photos and ROI on legacy rows
func migrateCardDefaults(db *gorm.DB) error {
	if result := db.Exec(`UPDATE cards SET tags = '[]' WHERE tags IS NULL OR tags = ''`); result.Error != nil {
		log.Printf("Warning: failed to default card tags: %v", result.Error)
	}

	if result := db.Exec(`UPDATE cards SET photo = ? WHERE photo IS NULL OR TRIM(photo) = ''`, models.PlaceholderPhoto); result.Error != nil {
		log.Printf("Warning: failed to default card photos: %v", result.Error)
	}

	// ROI is derived; recompute so rows written by older versions agree with the current formula
	result := db.Exec(`
		UPDATE cards SET roi = CASE
			WHEN purchase_price > 0 THEN (current_value - purchase_price) / purchase_price * 100
			ELSE 0
		END
	`)
	return result.Error
}

func migrateDisplayCaseDefaults(db *gorm.DB) error {
	if !db.Migrator().HasTable(&models.DisplayCase{}) {
		return nil
	}
	for _, col := range []string{"tags", "cards"} {
		stmt := fmt.Sprintf(`UPDATE display_cases SET %[1]s = '[]' WHERE %[1]s IS NULL OR %[1]s = ''`, col)
		if result := db.Exec(stmt); result.Error != nil {
			log.Printf("Warning: failed to default display case %s: %v", col, result.Error)
		}
	}
	return nil
}
