package models

import (
	"database/sql"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used on every boundary
const DateLayout = "2006-01-02"

// NoData is written in place of an undefined metric when a table is
// serialized. It is never stored in memory.
const NoData = -1.0

// Observation is one region's case count for one day
// Empty strings and invalid nullable fields mark gaps introduced by the calendar
type Observation struct {
	Country    string          `json:"country" db:"country"`
	NutsID     string          `json:"nuts_id" db:"nuts_id"`
	NutsName   string          `json:"nuts_name" db:"nuts_name"`
	Date       time.Time       `json:"date" db:"date"`
	Population sql.NullInt64   `json:"population" db:"population"`
	Cases      sql.NullFloat64 `json:"cases" db:"cases"`
}

// DateWindow is a closed interval of calendar dates
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d lies inside the window, bounds included
func (w DateWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days in the window, bounds included
func (w DateWindow) Days() int {
	return DaysBetween(w.Start, w.End) + 1
}

// Date truncates t to a UTC calendar date
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// WeekStart returns the Monday on or before d
func WeekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return Date(d).AddDate(0, 0, -offset)
}

// PopulationRate returns cases per 10,000 inhabitants. The rate is undefined
// when cases are unknown or the population is unknown or not positive.
func PopulationRate(cases sql.NullFloat64, population sql.NullInt64) sql.NullFloat64 {
	if !cases.Valid || !population.Valid || population.Int64 <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{
		Float64: cases.Float64 / float64(population.Int64) * 10000,
		Valid:   true,
	}
}

// OrNoData returns the value or the NoData sentinel
func OrNoData(v sql.NullFloat64) float64 {
	if !v.Valid {
		return NoData
	}
	return v.Float64
}
