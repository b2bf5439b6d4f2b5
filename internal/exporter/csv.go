package exporter

import (
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"

	"covid-waves/internal/models"
)

// WriteDailyCSV writes the daily table with its header. Undefined metrics are
// written as -1; a missing population is left empty.
func WriteDailyCSV(w io.Writer, rows []models.DailyRecord, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(models.DailyColumns); err != nil {
		return err
	}

	record := make([]string, len(models.DailyColumns))
	for i := range rows {
		r := &rows[i]
		record = append(record[:0],
			r.Country,
			r.NutsID,
			r.NutsName,
			r.Date.Format(models.DateLayout),
			formatPopulation(r.Population),
			formatMetric(r.Cases),
			formatMetric(r.CasesPop),
			formatMetric(r.Moving7dPop),
			formatMetric(r.Moving14dPop),
			formatMetric(r.Moving28dPop),
			formatMetric(r.CumulatedPop),
		)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteWeeklyCSV writes the weekly table with its header
func WriteWeeklyCSV(w io.Writer, rows []models.WeeklyRecord, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(models.WeeklyColumns); err != nil {
		return err
	}

	record := make([]string, len(models.WeeklyColumns))
	for i := range rows {
		r := &rows[i]
		record = append(record[:0],
			r.Country,
			r.NutsID,
			r.NutsName,
			r.WeekStart.Format(models.DateLayout),
			formatMetric(r.CasesW),
			formatMetric(r.CasesPopW),
			formatMetric(r.Moving4wPop),
			formatMetric(r.Moving8wPop),
			formatMetric(r.CumulatedPopW),
		)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatMetric(v sql.NullFloat64) string {
	return strconv.FormatFloat(models.OrNoData(v), 'f', -1, 64)
}

func formatPopulation(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
