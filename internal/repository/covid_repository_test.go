package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid-waves/internal/models"
	"covid-waves/internal/series"
	"covid-waves/migrations"
	"covid-waves/pkg/database"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

func date(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestBuildSeriesQuery(t *testing.T) {
	start, end := date("2021-01-01"), date("2021-01-31")

	tests := []struct {
		name      string
		filter    SeriesFilter
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "region only",
			filter:    SeriesFilter{NutsID: "AT111"},
			wantQuery: "SELECT x FROM t WHERE nuts_id = $1 ORDER BY date",
			wantArgs:  []interface{}{"AT111"},
		},
		{
			name:      "start and end",
			filter:    SeriesFilter{NutsID: "AT111", Start: &start, End: &end},
			wantQuery: "SELECT x FROM t WHERE nuts_id = $1 AND date >= $2 AND date <= $3 ORDER BY date",
			wantArgs:  []interface{}{"AT111", "2021-01-01", "2021-01-31"},
		},
		{
			name:      "end only",
			filter:    SeriesFilter{NutsID: "AT111", End: &end},
			wantQuery: "SELECT x FROM t WHERE nuts_id = $1 AND date <= $2 ORDER BY date",
			wantArgs:  []interface{}{"AT111", "2021-01-31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildSeriesQuery("SELECT x FROM t", "date", tt.filter)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRowValuesMatchColumns(t *testing.T) {
	daily := &models.DailyRecord{
		Observation: models.Observation{NutsID: "AT111", Date: date("2021-03-01")},
		CasesPop:    series.Known(2.5),
	}
	values := dailyValues(daily)
	require.Len(t, values, len(dailyColumns))
	assert.Equal(t, "AT111", values[0])
	assert.Equal(t, "2021-03-01", values[1])
	assert.Equal(t, series.Known(2.5), values[6])

	weekly := &models.WeeklyRecord{NutsID: "AT111", WeekStart: date("2021-03-01")}
	wvalues := weeklyValues(weekly)
	require.Len(t, wvalues, len(weeklyColumns))
	assert.Equal(t, "2021-03-01", wvalues[1])
}

func TestTableFor(t *testing.T) {
	table, column := tableFor(models.PeriodWeekly)
	assert.Equal(t, WeeklyTable, table)
	assert.Equal(t, "week_start", column)

	table, column = tableFor(models.PeriodDaily)
	assert.Equal(t, DailyTable, table)
	assert.Equal(t, "date", column)
}

func TestNotFoundError(t *testing.T) {
	var err error = &NotFoundError{Resource: DailyTable, ID: "2021-01-01"}
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.False(t, nf.IsTransient())
	assert.Equal(t, "daily_metrics not found: 2021-01-01", err.Error())
}

// TestCovidRepository_Postgres runs against a live database named by
// COVIDWAVES_TEST_DB_HOST and friends.
func TestCovidRepository_Postgres(t *testing.T) {
	host := os.Getenv("COVIDWAVES_TEST_DB_HOST")
	if host == "" || testing.Short() {
		t.Skip("COVIDWAVES_TEST_DB_HOST not set")
	}

	ctx := context.Background()
	logger := logging.NewNop()
	collector := metrics.NewCollector("repo_test", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(ctx, &database.Config{
		Host:         host,
		Port:         5432,
		User:         os.Getenv("COVIDWAVES_TEST_DB_USER"),
		Password:     os.Getenv("COVIDWAVES_TEST_DB_PASSWORD"),
		Database:     os.Getenv("COVIDWAVES_TEST_DB_NAME"),
		SSLMode:      "disable",
		MaxOpenConns: 2,
	}, logger, collector)
	require.NoError(t, err)
	defer db.Close()

	up, err := migrations.List(migrations.Up)
	require.NoError(t, err)
	for _, m := range up {
		_, err := db.ExecContext(ctx, "migrate", m.SQL)
		require.NoError(t, err)
	}

	repo := NewCovidRepository(db, logger, collector)

	daily := []models.DailyRecord{
		{
			Observation: models.Observation{Country: "AT", NutsID: "AT111", NutsName: "Mittelburgenland", Date: date("2021-03-01"), Cases: series.Known(4)},
			CasesPop:    series.Known(2),
		},
		{
			Observation: models.Observation{Country: "AT", NutsID: "AT111", NutsName: "Mittelburgenland", Date: date("2021-03-02")},
		},
	}
	weekly := []models.WeeklyRecord{
		{Country: "AT", NutsID: "AT111", NutsName: "Mittelburgenland", WeekStart: date("2021-03-01"), CasesW: series.Known(4)},
	}

	require.NoError(t, repo.ReplaceAll(ctx, daily, weekly))
	require.NoError(t, repo.ReplaceAll(ctx, daily, weekly))

	got, err := repo.GetDailySeries(ctx, SeriesFilter{NutsID: "AT111"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].CasesPop.Float64)
	assert.False(t, got[1].Cases.Valid)

	dates, err := repo.ListDates(ctx, models.PeriodWeekly)
	require.NoError(t, err)
	assert.Len(t, dates, 1)

	_, err = repo.GetDailyByDate(ctx, date("1999-01-01"))
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
