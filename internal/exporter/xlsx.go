package exporter

import (
	"database/sql"
	"fmt"

	"github.com/xuri/excelize/v2"

	"covid-waves/internal/models"
)

// SheetName is the name of the only sheet of an exported workbook
const SheetName = "Data"

// WriteDailyXLSX writes the daily table as a single-sheet workbook
func WriteDailyXLSX(path string, rows []models.DailyRecord) error {
	return writeWorkbook(path, models.DailyColumns, len(rows), func(i int) []interface{} {
		r := &rows[i]
		return []interface{}{
			r.Country,
			r.NutsID,
			r.NutsName,
			r.Date.Format(models.DateLayout),
			populationCell(r.Population),
			models.OrNoData(r.Cases),
			models.OrNoData(r.CasesPop),
			models.OrNoData(r.Moving7dPop),
			models.OrNoData(r.Moving14dPop),
			models.OrNoData(r.Moving28dPop),
			models.OrNoData(r.CumulatedPop),
		}
	})
}

// WriteWeeklyXLSX writes the weekly table as a single-sheet workbook
func WriteWeeklyXLSX(path string, rows []models.WeeklyRecord) error {
	return writeWorkbook(path, models.WeeklyColumns, len(rows), func(i int) []interface{} {
		r := &rows[i]
		return []interface{}{
			r.Country,
			r.NutsID,
			r.NutsName,
			r.WeekStart.Format(models.DateLayout),
			models.OrNoData(r.CasesW),
			models.OrNoData(r.CasesPopW),
			models.OrNoData(r.Moving4wPop),
			models.OrNoData(r.Moving8wPop),
			models.OrNoData(r.CumulatedPopW),
		}
	})
}

// writeWorkbook streams a header and n rows into a new workbook at path
func writeWorkbook(path string, header []string, n int, row func(i int) []interface{}) error {
	if n+1 > excelize.TotalRows {
		return fmt.Errorf("%d rows exceed the workbook limit of %d", n, excelize.TotalRows-1)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush workbook: %w", err)
	}
	return f.SaveAs(path)
}

func populationCell(v sql.NullInt64) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Int64
}
