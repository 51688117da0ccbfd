package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/codyseavey/card-vault/internal/models"
)

const (
	collectionSheet   = "Collection"
	displayCasesSheet = "Display Cases"
)

var collectionColumns = []string{
	"ID", "Player", "Year", "Set", "Number", "Variation", "Condition",
	"Purchase Price", "Current Value", "ROI %", "Purchase Date", "Last Updated",
	"Tags", "Notes", "Photo",
}

var displayCaseColumns = []string{"Name", "Description", "Tags", "Cards", "Total Value", "Refreshed At", "Stale"}

// ExportWorkbook writes the collection and its display cases to an xlsx workbook
func ExportWorkbook(cards []models.Card, cases []models.DisplayCase) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", collectionSheet); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []interface{}{
			c.ID, c.PlayerName, c.Year, c.CardSet, c.CardNumber, c.Variation, string(c.Condition),
			c.PurchasePrice, c.CurrentValue, c.ROI, formatDate(c.PurchaseDate), formatDate(&c.LastUpdated),
			strings.Join(c.Tags, ", "), c.Notes, c.Photo,
		})
	}
	if err := writeSheet(f, collectionSheet, collectionColumns, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(displayCasesSheet); err != nil {
		return nil, err
	}
	rows = rows[:0]
	for _, dc := range cases {
		rows = append(rows, []interface{}{
			dc.Name, dc.Description, strings.Join(dc.Tags, ", "), len(dc.Cards), dc.TotalValue,
			formatDate(&dc.RefreshedAt), dc.Stale,
		})
	}
	if err := writeSheet(f, displayCasesSheet, displayCaseColumns, rows); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
