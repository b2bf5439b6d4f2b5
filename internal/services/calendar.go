package services

import (
	"slices"
	"time"

	"covid-waves/internal/models"
)

// CalendarReport describes the calendar every region was reindexed onto
type CalendarReport struct {
	Start      time.Time
	End        time.Time
	Days       int
	Regions    int
	Duplicates int
	Inserted   int
}

// Calendarize reindexes every region onto the complete daily range between
// the table's global first and last date. Days without an observation become
// gap rows carrying only nuts_id and date. When a (nuts_id, date) key occurs
// more than once, the first row in (nuts_id, date) order wins.
func Calendarize(observations []models.Observation) (*models.Table[models.Observation], *CalendarReport, error) {
	if len(observations) == 0 {
		return nil, nil, &models.EmptyDatasetError{Stage: "calendarize"}
	}

	rows := slices.Clone(observations)
	SortObservations(rows)

	start, end := models.Date(rows[0].Date), models.Date(rows[0].Date)
	for _, obs := range rows[1:] {
		d := models.Date(obs.Date)
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
	}

	spans := models.Spans(rows, nutsID)
	days := models.DaysBetween(start, end) + 1

	report := &CalendarReport{
		Start:   start,
		End:     end,
		Days:    days,
		Regions: len(spans),
	}

	table := &models.Table[models.Observation]{
		Rows:    make([]models.Observation, len(spans)*days),
		Regions: make([]models.Span, len(spans)),
	}
	filled := make([]bool, len(table.Rows))

	for r, span := range spans {
		base := r * days
		table.Regions[r] = models.Span{NutsID: span.NutsID, Start: base, End: base + days}

		for j := 0; j < days; j++ {
			table.Rows[base+j] = models.Observation{
				NutsID: span.NutsID,
				Date:   start.AddDate(0, 0, j),
			}
		}

		for _, obs := range rows[span.Start:span.End] {
			i := base + models.DaysBetween(start, obs.Date)
			if filled[i] {
				report.Duplicates++
				continue
			}
			obs.Date = models.Date(obs.Date)
			table.Rows[i] = obs
			filled[i] = true
		}
	}

	report.Inserted = len(table.Rows) - (len(rows) - report.Duplicates)
	return table, report, nil
}
