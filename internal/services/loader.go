package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"covid-waves/internal/models"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Source column names. cases_daily is renamed to cases on load.
const (
	colCountry    = "country"
	colNutsID     = "nuts_id"
	colNutsName   = "nuts_name"
	colDate       = "date"
	colPopulation = "population"
	colCases      = "cases_daily"
)

var requiredColumns = []string{colCountry, colNutsID, colNutsName, colDate, colPopulation, colCases}

// tokens read as a missing number
var missingTokens = map[string]bool{
	"": true, "na": true, "nan": true, "null": true, "none": true,
}

// Loader reads the raw tracker file into observations
type Loader struct {
	delimiter rune
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// LoadReport summarizes one load
type LoadReport struct {
	Lines         int
	Rows          int
	OutsideWindow int
}

// NewLoader creates a loader for files separated by delimiter
func NewLoader(delimiter rune, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Loader {
	return &Loader{
		delimiter: delimiter,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Load reads the file at path. Rows outside window are dropped when window
// is not nil.
func (l *Loader) Load(ctx context.Context, path string, window *models.DateWindow) ([]models.Observation, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	l.logger.Info(ctx, "[LOAD_START] Reading source file", logging.Fields{
		"path":        path,
		"limit_dates": window != nil,
		"stage":       "load",
	})

	return l.Read(ctx, f, window)
}

// Read parses delimited tracker data from r
func (l *Loader) Read(ctx context.Context, r io.Reader, window *models.DateWindow) ([]models.Observation, *LoadReport, error) {
	reader := csv.NewReader(r)
	reader.Comma = l.delimiter
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &models.FormatError{Column: colNutsID, Message: "source file has no header"}
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	report := &LoadReport{}
	var observations []models.Observation

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read source: %w", err)
		}
		report.Lines++

		if report.Lines%50000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		line, _ := reader.FieldPos(0)
		obs, err := parseObservation(record, index, line)
		if err != nil {
			return nil, nil, err
		}

		if window != nil && !window.Contains(obs.Date) {
			report.OutsideWindow++
			continue
		}
		observations = append(observations, obs)
	}

	report.Rows = len(observations)
	l.metrics.RecordStageRows("load", report.Rows)

	if report.Rows == 0 {
		return nil, report, &models.EmptyDatasetError{Stage: "load"}
	}

	l.logger.Info(ctx, "[LOAD_COMPLETE] Source file parsed", logging.Fields{
		"lines":          report.Lines,
		"rows":           report.Rows,
		"outside_window": report.OutsideWindow,
		"stage":          "load",
	})

	return observations, report, nil
}

// columnIndex maps each required column to its position in header
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &models.FormatError{Column: col, Message: "required column missing"}
		}
	}
	return index, nil
}

func parseObservation(record []string, index map[string]int, line int) (models.Observation, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	obs := models.Observation{
		Country:  field(colCountry),
		NutsID:   field(colNutsID),
		NutsName: field(colNutsName),
	}

	rawDate := field(colDate)
	date, err := parseDate(rawDate)
	if err != nil {
		return obs, &models.FormatError{Column: colDate, Line: line, Value: rawDate, Message: "expected YYYY-MM-DD"}
	}
	obs.Date = date

	rawPop := field(colPopulation)
	pop, ok, err := parseNumber(rawPop)
	if err != nil {
		return obs, &models.FormatError{Column: colPopulation, Line: line, Value: rawPop, Message: "not a number"}
	}
	if ok {
		obs.Population.Int64 = int64(math.Round(pop))
		obs.Population.Valid = true
	}

	rawCases := field(colCases)
	cases, ok, err := parseNumber(rawCases)
	if err != nil {
		return obs, &models.FormatError{Column: colCases, Line: line, Value: rawCases, Message: "not a number"}
	}
	if ok {
		obs.Cases.Float64 = cases
		obs.Cases.Valid = true
	}

	return obs, nil
}

// parseDate accepts an ISO date with an optional time part, which is dropped
func parseDate(s string) (time.Time, error) {
	if len(s) > len(models.DateLayout) {
		if sep := s[len(models.DateLayout)]; sep == ' ' || sep == 'T' {
			s = s[:len(models.DateLayout)]
		}
	}
	return time.Parse(models.DateLayout, s)
}

// parseNumber returns ok=false for a missing value
func parseNumber(s string) (float64, bool, error) {
	if missingTokens[strings.ToLower(s)] {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}
