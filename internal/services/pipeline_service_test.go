package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"covid-waves/internal/config"
	"covid-waves/internal/models"
)

// writeSource writes a small tracker file: AT111 over all of March 2021 with
// two missing days, AT112 from March 5 with zero-case days, an excluded
// overseas region and a negative correction row.
func writeSource(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("country;nuts_id;nuts_name;date;population;cases_daily;iso\n")
	start := day("2021-03-01")
	for i := 0; i < 28; i++ {
		d := start.AddDate(0, 0, i).Format(models.DateLayout)
		if i != 9 && i != 10 {
			fmt.Fprintf(&b, "Austria;AT111;Mittelburgenland;%s;20000;%d;AT\n", d, i+1)
		}
		if i >= 4 {
			fmt.Fprintf(&b, "Austria;AT112;Nordburgenland;%s;10000;%d;AT\n", d, (i%2)*3)
		}
		fmt.Fprintf(&b, "France;FRY10;Guadeloupe;%s;400000;50;FR\n", d)
	}
	b.WriteString("Austria;AT111;Mittelburgenland;2021-03-15;20000;-7;AT\n")

	path := filepath.Join(dir, "tracker.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func pipelineConfig(t *testing.T) *config.Config {
	cfg := testConfig(t)
	cfg.Source.Path = writeSource(t, t.TempDir())
	cfg.Export.Dir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestPipelineService_Run(t *testing.T) {
	cfg := pipelineConfig(t)
	store := &fakeRepo{}
	svc := NewPipelineService(cfg, store, nopLogger(), testMetrics())

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Regions)
	assert.Equal(t, 2*28, result.DailyRows)
	assert.Equal(t, 2*4, result.WeeklyRows)
	assert.Equal(t, 1, result.Clean.Negative)
	assert.Equal(t, 28, result.Clean.Excluded)
	assert.Equal(t, 28, result.Calendar.Days)
	assert.True(t, result.Stored)
	assert.Equal(t, 1, store.replaced)
	assert.Len(t, store.daily, 2*28)

	dailyPath := filepath.Join(cfg.Export.Dir, "covid-waves-data-clean.csv")
	weeklyPath := filepath.Join(cfg.Export.Dir, "covid-waves-data-clean-weekly.csv")
	xlsxPath := filepath.Join(cfg.Export.Dir, "covid-waves-data-clean-weekly.xlsx")
	assert.ElementsMatch(t, []string{dailyPath, weeklyPath, xlsxPath}, result.Files)

	daily := readCSV(t, dailyPath)
	require.Len(t, daily, 1+2*28)
	assert.Equal(t, models.DailyColumns, daily[0])

	// AT112 starts on March 5: the first four days carry the sentinel
	at112 := daily[1+28:]
	assert.Equal(t, "AT112", at112[0][1])
	assert.Equal(t, "Nordburgenland", at112[0][2], "static columns are back filled")
	assert.Equal(t, "10000", at112[0][4])
	for _, col := range []int{5, 6, 7, 8, 9, 10} {
		assert.Equal(t, "-1", at112[0][col], "column %s", daily[0][col])
	}
	// March 5 has zero cases: a real zero, not the sentinel
	assert.Equal(t, "0", at112[4][5])
	assert.Equal(t, "0", at112[4][6])
	assert.Equal(t, "0", at112[4][10])

	// AT111 March 10 and 11 were interpolated between 9 and 12
	at111 := daily[1:29]
	assert.Equal(t, "10", at111[9][5])
	assert.Equal(t, "11", at111[10][5])

	weekly := readCSV(t, weeklyPath)
	require.Len(t, weekly, 1+2*4)
	assert.Equal(t, models.WeeklyColumns, weekly[0])
	assert.Equal(t, "2021-03-01", weekly[1][3])
	assert.Equal(t, "28", weekly[1][4], "AT111 week one sums 1..7")

	wb, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 1+2*4)
	assert.Equal(t, models.WeeklyColumns, rows[0])
	assert.Equal(t, "AT111", rows[1][1])
}

func TestPipelineService_Idempotent(t *testing.T) {
	cfg := pipelineConfig(t)
	svc := NewPipelineService(cfg, nil, nopLogger(), testMetrics())

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	contents := map[string][]byte{}
	for _, path := range first.Files {
		if strings.HasSuffix(path, ".csv") {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			contents[path] = data
		}
	}
	require.Len(t, contents, 2)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	for path, want := range contents {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), "%s differs between runs", path)
	}
}

func TestPipelineService_LimitDates(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Window.LimitDates = true
	cfg.Window.DataStart, _ = config.ParseDate("2021-03-08")
	cfg.Window.DataEnd, _ = config.ParseDate("2021-03-21")
	cfg.Export.WeeklyXLSX = false

	result, err := NewPipelineService(cfg, nil, nopLogger(), testMetrics()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 14, result.Calendar.Days)
	assert.Contains(t, result.Files, filepath.Join(cfg.Export.Dir, "covid-waves-data-clean_2021-03-08_2021-03-21.csv"))
	assert.Len(t, result.Files, 2)
}

func TestPipelineService_NoPartialOutput(t *testing.T) {
	t.Run("format error", func(t *testing.T) {
		cfg := pipelineConfig(t)
		require.NoError(t, os.WriteFile(cfg.Source.Path, []byte("country;nuts_id\nAT;AT111\n"), 0o644))

		_, err := NewPipelineService(cfg, nil, nopLogger(), testMetrics()).Run(context.Background())

		var stageErr *models.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageLoad, stageErr.Stage)
		var formatErr *models.FormatError
		assert.ErrorAs(t, err, &formatErr)

		_, statErr := os.Stat(cfg.Export.Dir)
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("store failure", func(t *testing.T) {
		cfg := pipelineConfig(t)
		store := &fakeRepo{replaceErr: errors.New("connection reset")}

		_, err := NewPipelineService(cfg, store, nopLogger(), testMetrics()).Run(context.Background())

		var stageErr *models.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageStore, stageErr.Stage)
		assert.Equal(t, 2, stageErr.Regions)

		entries, err := os.ReadDir(cfg.Export.Dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "neither final nor temporary files remain")
	})

	t.Run("everything excluded", func(t *testing.T) {
		cfg := pipelineConfig(t)
		cfg.Cleaning.ExcludedRegions = []string{"AT111", "AT112", "FRY10"}

		_, err := NewPipelineService(cfg, nil, nopLogger(), testMetrics()).Run(context.Background())

		var empty *models.EmptyDatasetError
		require.ErrorAs(t, err, &empty)
		assert.Equal(t, "clean", empty.Stage)
	})
}
