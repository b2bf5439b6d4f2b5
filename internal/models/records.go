package models

import (
	"database/sql"
	"time"
)

// Daily metric names, as used for column headers and API queries
const (
	MetricCases        = "cases"
	MetricCasesPop     = "cases_pop"
	MetricMoving7dPop  = "moving7d_pop"
	MetricMoving14dPop = "moving14d_pop"
	MetricMoving28dPop = "moving28d_pop"
	MetricCumulatedPop = "cumulated_pop"
)

// Weekly metric names
const (
	MetricCasesW        = "cases_w"
	MetricCasesPopW     = "cases_pop_w"
	MetricMoving4wPop   = "moving4w_pop"
	MetricMoving8wPop   = "moving8w_pop"
	MetricCumulatedPopW = "cumulated_pop_w"
)

// DailyColumns is the header of the exported daily table
var DailyColumns = []string{
	"country", "nuts_id", "nuts_name", "date", "population",
	MetricCases, MetricCasesPop, MetricMoving7dPop, MetricMoving14dPop, MetricMoving28dPop, MetricCumulatedPop,
}

// WeeklyColumns is the header of the exported weekly table
var WeeklyColumns = []string{
	"country", "nuts_id", "nuts_name", "date",
	MetricCasesW, MetricCasesPopW, MetricMoving4wPop, MetricMoving8wPop, MetricCumulatedPopW,
}

// MetricDescriptions are the captions shown next to a rendered metric
var MetricDescriptions = map[string]string{
	MetricCasesPop:      "Daily detected cases per 10,000 inhabitants by NUTS region",
	MetricMoving7dPop:   "7-day moving average of daily detected cases per 10,000 inhabitants by NUTS region",
	MetricMoving14dPop:  "14-day moving average of daily detected cases per 10,000 inhabitants by NUTS region",
	MetricMoving28dPop:  "4-week moving average of daily detected cases per 10,000 inhabitants by NUTS region",
	MetricCumulatedPop:  "Cumulated detected cases per 10,000 inhabitants by NUTS region",
	MetricCasesPopW:     "Weekly detected cases per 10,000 inhabitants by NUTS region",
	MetricMoving4wPop:   "4-week moving average of detected weekly cases per 10,000 inhabitants by NUTS region",
	MetricMoving8wPop:   "8-week moving average of detected weekly cases per 10,000 inhabitants by NUTS region",
	MetricCumulatedPopW: "Cumulated weekly detected cases per 10,000 inhabitants by NUTS region",
}

// DailyRecord is a calendarized observation with its derived daily metrics
type DailyRecord struct {
	Observation
	CasesPop     sql.NullFloat64 `json:"cases_pop" db:"cases_pop"`
	Moving7dPop  sql.NullFloat64 `json:"moving7d_pop" db:"moving7d_pop"`
	Moving14dPop sql.NullFloat64 `json:"moving14d_pop" db:"moving14d_pop"`
	Moving28dPop sql.NullFloat64 `json:"moving28d_pop" db:"moving28d_pop"`
	CumulatedPop sql.NullFloat64 `json:"cumulated_pop" db:"cumulated_pop"`
}

// Metric returns the named daily metric
func (r *DailyRecord) Metric(name string) (sql.NullFloat64, bool) {
	switch name {
	case MetricCases:
		return r.Cases, true
	case MetricCasesPop:
		return r.CasesPop, true
	case MetricMoving7dPop:
		return r.Moving7dPop, true
	case MetricMoving14dPop:
		return r.Moving14dPop, true
	case MetricMoving28dPop:
		return r.Moving28dPop, true
	case MetricCumulatedPop:
		return r.CumulatedPop, true
	default:
		return sql.NullFloat64{}, false
	}
}

// WeeklyRecord aggregates one region's daily records for one Monday-started week
type WeeklyRecord struct {
	Country       string          `json:"country" db:"country"`
	NutsID        string          `json:"nuts_id" db:"nuts_id"`
	NutsName      string          `json:"nuts_name" db:"nuts_name"`
	WeekStart     time.Time       `json:"week_start" db:"week_start"`
	CasesW        sql.NullFloat64 `json:"cases_w" db:"cases_w"`
	CasesPopW     sql.NullFloat64 `json:"cases_pop_w" db:"cases_pop_w"`
	Moving4wPop   sql.NullFloat64 `json:"moving4w_pop" db:"moving4w_pop"`
	Moving8wPop   sql.NullFloat64 `json:"moving8w_pop" db:"moving8w_pop"`
	CumulatedPopW sql.NullFloat64 `json:"cumulated_pop_w" db:"cumulated_pop_w"`
}

// Metric returns the named weekly metric
func (r *WeeklyRecord) Metric(name string) (sql.NullFloat64, bool) {
	switch name {
	case MetricCasesW:
		return r.CasesW, true
	case MetricCasesPopW:
		return r.CasesPopW, true
	case MetricMoving4wPop:
		return r.Moving4wPop, true
	case MetricMoving8wPop:
		return r.Moving8wPop, true
	case MetricCumulatedPopW:
		return r.CumulatedPopW, true
	default:
		return sql.NullFloat64{}, false
	}
}

// Region describes one NUTS region present in the derived tables
type Region struct {
	NutsID     string `json:"nuts_id" db:"nuts_id"`
	NutsName   string `json:"nuts_name" db:"nuts_name"`
	Country    string `json:"country" db:"country"`
	Population *int64 `json:"population,omitempty" db:"population"`
}

// MetricValue is the (region, date, value) tuple consumed by the map renderer.
// Value carries NoData for undefined metrics.
type MetricValue struct {
	NutsID string  `json:"nuts_id"`
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
}

// Period selects the daily or the weekly table
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// ParsePeriod validates a period name; empty means daily
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	default:
		return "", &ValidationError{Field: "period", Message: "must be daily or weekly"}
	}
}
