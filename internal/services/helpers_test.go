package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"covid-waves/internal/config"
	"covid-waves/internal/models"
	"covid-waves/internal/repository"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

func testMetrics() *metrics.Collector {
	return metrics.NewCollector("covid_waves_test", prometheus.NewRegistry())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("", config.WithoutDatabase())
	require.NoError(t, err)
	cfg.Pipeline.Workers = 4
	cfg.Export.Dir = t.TempDir()
	return cfg
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func obs(id string, d time.Time, population int64, cases float64) models.Observation {
	return models.Observation{
		Country:    id[:2],
		NutsID:     id,
		NutsName:   "Region " + id,
		Date:       d,
		Population: sql.NullInt64{Int64: population, Valid: true},
		Cases:      sql.NullFloat64{Float64: cases, Valid: true},
	}
}

// fakeRepo is an in-memory CovidRepository
type fakeRepo struct {
	daily      []models.DailyRecord
	weekly     []models.WeeklyRecord
	replaceErr error
	replaced   int
}

func (f *fakeRepo) ReplaceAll(ctx context.Context, daily []models.DailyRecord, weekly []models.WeeklyRecord) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.daily = append([]models.DailyRecord(nil), daily...)
	f.weekly = append([]models.WeeklyRecord(nil), weekly...)
	f.replaced++
	return nil
}

func (f *fakeRepo) ListRegions(ctx context.Context) ([]models.Region, error) {
	seen := map[string]bool{}
	var regions []models.Region
	for i := len(f.daily) - 1; i >= 0; i-- {
		r := f.daily[i]
		if seen[r.NutsID] {
			continue
		}
		seen[r.NutsID] = true
		regions = append(regions, models.Region{NutsID: r.NutsID, NutsName: r.NutsName, Country: r.Country})
	}
	return regions, nil
}

func (f *fakeRepo) ListDates(ctx context.Context, period models.Period) ([]time.Time, error) {
	seen := map[time.Time]bool{}
	var dates []time.Time
	add := func(d time.Time) {
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	if period == models.PeriodWeekly {
		for _, r := range f.weekly {
			add(r.WeekStart)
		}
	} else {
		for _, r := range f.daily {
			add(r.Date)
		}
	}
	return dates, nil
}

func (f *fakeRepo) GetDailyByDate(ctx context.Context, date time.Time) ([]models.DailyRecord, error) {
	var out []models.DailyRecord
	for _, r := range f.daily {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &repository.NotFoundError{Resource: repository.DailyTable, ID: date.Format(models.DateLayout)}
	}
	return out, nil
}

func (f *fakeRepo) GetWeeklyByWeek(ctx context.Context, week time.Time) ([]models.WeeklyRecord, error) {
	var out []models.WeeklyRecord
	for _, r := range f.weekly {
		if r.WeekStart.Equal(week) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &repository.NotFoundError{Resource: repository.WeeklyTable, ID: week.Format(models.DateLayout)}
	}
	return out, nil
}

func inRange(d time.Time, filter repository.SeriesFilter) bool {
	if filter.Start != nil && d.Before(*filter.Start) {
		return false
	}
	if filter.End != nil && d.After(*filter.End) {
		return false
	}
	return true
}

func (f *fakeRepo) GetDailySeries(ctx context.Context, filter repository.SeriesFilter) ([]models.DailyRecord, error) {
	var out []models.DailyRecord
	for _, r := range f.daily {
		if r.NutsID == filter.NutsID && inRange(r.Date, filter) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &repository.NotFoundError{Resource: repository.DailyTable, ID: filter.NutsID}
	}
	return out, nil
}

func (f *fakeRepo) GetWeeklySeries(ctx context.Context, filter repository.SeriesFilter) ([]models.WeeklyRecord, error) {
	var out []models.WeeklyRecord
	for _, r := range f.weekly {
		if r.NutsID == filter.NutsID && inRange(r.WeekStart, filter) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &repository.NotFoundError{Resource: repository.WeeklyTable, ID: filter.NutsID}
	}
	return out, nil
}

func (f *fakeRepo) HealthCheck(ctx context.Context) error {
	return nil
}

var _ repository.CovidRepository = (*fakeRepo)(nil)

func nopLogger() *logging.StructuredLogger {
	return logging.NewNop()
}
