package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"covid-waves/internal/models"
	"covid-waves/pkg/database"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Table names
const (
	DailyTable  = "daily_metrics"
	WeeklyTable = "weekly_metrics"
)

var dailyColumns = []string{
	"nuts_id", "date", "country", "nuts_name", "population",
	"cases", "cases_pop", "moving7d_pop", "moving14d_pop", "moving28d_pop", "cumulated_pop",
}

var weeklyColumns = []string{
	"nuts_id", "week_start", "country", "nuts_name",
	"cases_w", "cases_pop_w", "moving4w_pop", "moving8w_pop", "cumulated_pop_w",
}

// CovidRepository stores and serves the derived metric tables
type CovidRepository interface {
	// Write side
	ReplaceAll(ctx context.Context, daily []models.DailyRecord, weekly []models.WeeklyRecord) error

	// Read side
	ListRegions(ctx context.Context) ([]models.Region, error)
	ListDates(ctx context.Context, period models.Period) ([]time.Time, error)
	GetDailyByDate(ctx context.Context, date time.Time) ([]models.DailyRecord, error)
	GetWeeklyByWeek(ctx context.Context, week time.Time) ([]models.WeeklyRecord, error)
	GetDailySeries(ctx context.Context, filter SeriesFilter) ([]models.DailyRecord, error)
	GetWeeklySeries(ctx context.Context, filter SeriesFilter) ([]models.WeeklyRecord, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SeriesFilter selects one region's rows, optionally within a date range
type SeriesFilter struct {
	NutsID string
	Start  *time.Time
	End    *time.Time
}

type covidRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCovidRepository creates a repository on db
func NewCovidRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) CovidRepository {
	return &covidRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ReplaceAll swaps both tables for the given rows in one transaction.
// Undefined metrics are stored as NULL.
func (r *covidRepository) ReplaceAll(ctx context.Context, daily []models.DailyRecord, weekly []models.WeeklyRecord) error {
	start := time.Now()

	err := r.db.WithTx(ctx, "replace_all", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+DailyTable); err != nil {
			return fmt.Errorf("failed to clear %s: %w", DailyTable, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+WeeklyTable); err != nil {
			return fmt.Errorf("failed to clear %s: %w", WeeklyTable, err)
		}

		if err := copyRows(ctx, tx, DailyTable, dailyColumns, len(daily), func(i int) []interface{} {
			return dailyValues(&daily[i])
		}); err != nil {
			return err
		}
		return copyRows(ctx, tx, WeeklyTable, weeklyColumns, len(weekly), func(i int) []interface{} {
			return weeklyValues(&weekly[i])
		})
	})
	if err != nil {
		return fmt.Errorf("failed to replace metric tables: %w", err)
	}

	r.metrics.DBRowsWritten.WithLabelValues(DailyTable).Add(float64(len(daily)))
	r.metrics.DBRowsWritten.WithLabelValues(WeeklyTable).Add(float64(len(weekly)))

	r.logger.Info(ctx, "[REPO_REPLACE] Metric tables replaced", logging.Fields{
		"daily_rows":  len(daily),
		"weekly_rows": len(weekly),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// copyRows bulk loads n rows with COPY FROM STDIN
func copyRows(ctx context.Context, tx *sqlx.Tx, table string, columns []string, n int, values func(i int) []interface{}) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, values(i)...); err != nil {
			return fmt.Errorf("failed to copy row %d into %s: %w", i, table, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy into %s: %w", table, err)
	}
	return nil
}

func dailyValues(r *models.DailyRecord) []interface{} {
	return []interface{}{
		r.NutsID,
		r.Date.Format(models.DateLayout),
		r.Country,
		r.NutsName,
		r.Population,
		r.Cases,
		r.CasesPop,
		r.Moving7dPop,
		r.Moving14dPop,
		r.Moving28dPop,
		r.CumulatedPop,
	}
}

func weeklyValues(r *models.WeeklyRecord) []interface{} {
	return []interface{}{
		r.NutsID,
		r.WeekStart.Format(models.DateLayout),
		r.Country,
		r.NutsName,
		r.CasesW,
		r.CasesPopW,
		r.Moving4wPop,
		r.Moving8wPop,
		r.CumulatedPopW,
	}
}

// ListRegions returns every region with its latest known attributes
func (r *covidRepository) ListRegions(ctx context.Context) ([]models.Region, error) {
	query := `
		SELECT DISTINCT ON (nuts_id) nuts_id, nuts_name, country, population
		FROM daily_metrics
		ORDER BY nuts_id, date DESC
	`

	var regions []models.Region
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

// ListDates returns the distinct dates (or week starts) in ascending order
func (r *covidRepository) ListDates(ctx context.Context, period models.Period) ([]time.Time, error) {
	table, column := tableFor(period)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", column, table, column)

	var dates []time.Time
	if err := r.db.SelectContext(ctx, "list_dates", &dates, query); err != nil {
		return nil, fmt.Errorf("failed to list dates: %w", err)
	}
	return dates, nil
}

// GetDailyByDate returns every region's daily record for one date
func (r *covidRepository) GetDailyByDate(ctx context.Context, date time.Time) ([]models.DailyRecord, error) {
	query := selectDaily + " WHERE date = $1 ORDER BY nuts_id"

	var records []models.DailyRecord
	if err := r.db.SelectContext(ctx, "get_daily_by_date", &records, query, date.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("failed to get daily records: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: DailyTable, ID: date.Format(models.DateLayout)}
	}
	return records, nil
}

// GetWeeklyByWeek returns every region's weekly record for one week start
func (r *covidRepository) GetWeeklyByWeek(ctx context.Context, week time.Time) ([]models.WeeklyRecord, error) {
	query := selectWeekly + " WHERE week_start = $1 ORDER BY nuts_id"

	var records []models.WeeklyRecord
	if err := r.db.SelectContext(ctx, "get_weekly_by_week", &records, query, week.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("failed to get weekly records: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: WeeklyTable, ID: week.Format(models.DateLayout)}
	}
	return records, nil
}

// GetDailySeries returns one region's daily records in date order
func (r *covidRepository) GetDailySeries(ctx context.Context, filter SeriesFilter) ([]models.DailyRecord, error) {
	query, args := buildSeriesQuery(selectDaily, "date", filter)

	var records []models.DailyRecord
	if err := r.db.SelectContext(ctx, "get_daily_series", &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get daily series: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: DailyTable, ID: filter.NutsID}
	}
	return records, nil
}

// GetWeeklySeries returns one region's weekly records in week order
func (r *covidRepository) GetWeeklySeries(ctx context.Context, filter SeriesFilter) ([]models.WeeklyRecord, error) {
	query, args := buildSeriesQuery(selectWeekly, "week_start", filter)

	var records []models.WeeklyRecord
	if err := r.db.SelectContext(ctx, "get_weekly_series", &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get weekly series: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: WeeklyTable, ID: filter.NutsID}
	}
	return records, nil
}

// HealthCheck performs a health check on the repository
func (r *covidRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

var (
	selectDaily  = "SELECT " + strings.Join(dailyColumns, ", ") + " FROM " + DailyTable
	selectWeekly = "SELECT " + strings.Join(weeklyColumns, ", ") + " FROM " + WeeklyTable
)

func tableFor(period models.Period) (table, dateColumn string) {
	if period == models.PeriodWeekly {
		return WeeklyTable, "week_start"
	}
	return DailyTable, "date"
}

// buildSeriesQuery appends the region and date range predicates to base
func buildSeriesQuery(base, dateColumn string, filter SeriesFilter) (string, []interface{}) {
	query := base + " WHERE nuts_id = $1"
	args := []interface{}{filter.NutsID}
	argNum := 2

	if filter.Start != nil {
		query += fmt.Sprintf(" AND %s >= $%d", dateColumn, argNum)
		args = append(args, filter.Start.Format(models.DateLayout))
		argNum++
	}

	if filter.End != nil {
		query += fmt.Sprintf(" AND %s <= $%d", dateColumn, argNum)
		args = append(args, filter.End.Format(models.DateLayout))
	}

	query += " ORDER BY " + dateColumn
	return query, args
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient returns false
func (e *NotFoundError) IsTransient() bool {
	return false
}
