package services

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"covid-waves/internal/config"
	"covid-waves/internal/models"
	"covid-waves/internal/series"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Cleaner removes invalid, out-of-scope and outlying observations
type Cleaner struct {
	cfg      config.CleaningConfig
	excluded map[string]bool
	workers  int
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// CleanReport counts the rows removed by each filter
type CleanReport struct {
	Input         int
	MissingCases  int
	Negative      int
	YearCorrected int
	Excluded      int
	Outliers      int
	Output        int
	Regions       int
}

// NewCleaner creates a cleaner; workers bounds the per-region fan-out
func NewCleaner(cfg config.CleaningConfig, workers int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Cleaner {
	excluded := make(map[string]bool, len(cfg.ExcludedRegions))
	for _, id := range cfg.ExcludedRegions {
		excluded[strings.TrimSpace(id)] = true
	}
	if workers < 1 {
		workers = 1
	}
	return &Cleaner{
		cfg:      cfg,
		excluded: excluded,
		workers:  workers,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Clean applies the filters in order and returns a new table sorted by
// (nuts_id, date). The input slice is not modified.
func (c *Cleaner) Clean(ctx context.Context, observations []models.Observation) ([]models.Observation, *CleanReport, error) {
	report := &CleanReport{Input: len(observations)}
	rows := make([]models.Observation, 0, len(observations))

	for _, obs := range observations {
		switch {
		case !obs.Cases.Valid:
			report.MissingCases++
			continue
		case obs.Cases.Float64 < 0:
			report.Negative++
			continue
		}

		if fixed, ok := c.correctYear(obs.Date); ok {
			obs.Date = fixed
			report.YearCorrected++
		}

		if c.excluded[obs.NutsID] {
			report.Excluded++
			continue
		}
		rows = append(rows, obs)
	}

	SortObservations(rows)

	flags, err := c.flagOutliers(ctx, rows)
	if err != nil {
		return nil, report, err
	}

	cleaned := rows[:0]
	for i, obs := range rows {
		if flags[i] {
			report.Outliers++
			c.logger.Debug(ctx, "[CLEAN_OUTLIER] Observation removed", logging.Fields{
				"nuts_id": obs.NutsID,
				"date":    obs.Date.Format(models.DateLayout),
				"cases":   obs.Cases.Float64,
			})
			continue
		}
		cleaned = append(cleaned, obs)
	}

	report.Output = len(cleaned)
	report.Regions = len(models.Spans(cleaned, nutsID))

	c.metrics.RecordRemoved("missing", report.MissingCases)
	c.metrics.RecordRemoved("negative", report.Negative)
	c.metrics.RecordRemoved("excluded", report.Excluded)
	c.metrics.RecordRemoved("outlier", report.Outliers)
	c.metrics.RecordStageRows("clean", report.Output)

	c.logger.Info(ctx, "[CLEAN_COMPLETE] Observations cleaned", logging.Fields{
		"input":          report.Input,
		"missing_cases":  report.MissingCases,
		"negative":       report.Negative,
		"year_corrected": report.YearCorrected,
		"excluded":       report.Excluded,
		"outliers":       report.Outliers,
		"output":         report.Output,
		"regions":        report.Regions,
		"stage":          "clean",
	})

	if report.Output == 0 {
		return nil, report, &models.EmptyDatasetError{Stage: "clean"}
	}
	return cleaned, report, nil
}

func (c *Cleaner) correctYear(d time.Time) (time.Time, bool) {
	year, ok := c.cfg.YearCorrections[d.Year()]
	if !ok || year == d.Year() {
		return d, false
	}
	return time.Date(year, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
}

// flagOutliers runs the outlier test on every region in parallel. rows must
// be sorted by (nuts_id, date). Each goroutine writes only its region's flags.
func (c *Cleaner) flagOutliers(ctx context.Context, rows []models.Observation) ([]bool, error) {
	flags := make([]bool, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, span := range models.Spans(rows, nutsID) {
		span := span
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			OutlierFlags(rows[span.Start:span.End], flags[span.Start:span.End], c.cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flags, nil
}

// OutlierFlags marks outliers of one date-ordered region series in flags.
//
// Only rows with a defined, non-negative cases_pop take part. For a row on
// day d the window holds the participating rows dated within
// [d - w/2, d + w - w/2 - 1]. A row is flagged when the window has at least
// MinPeriods values, its value deviates from the window mean by more than
// Sigma sample standard deviations and the value is at least MinValue.
func OutlierFlags(region []models.Observation, flags []bool, cfg config.CleaningConfig) {
	days := make([]int, 0, len(region))
	values := make([]float64, 0, len(region))
	index := make([]int, 0, len(region))

	for i, obs := range region {
		rate := models.PopulationRate(obs.Cases, obs.Population)
		if !rate.Valid || rate.Float64 < 0 {
			continue
		}
		days = append(days, models.DaysBetween(region[0].Date, obs.Date))
		values = append(values, rate.Float64)
		index = append(index, i)
	}

	before := cfg.OutlierWindowDays / 2
	after := cfg.OutlierWindowDays - before - 1

	lo, hi := 0, 0
	for k, day := range days {
		for lo < len(days) && days[lo] < day-before {
			lo++
		}
		if hi < k {
			hi = k
		}
		for hi < len(days) && days[hi] <= day+after {
			hi++
		}

		if hi-lo < cfg.OutlierMinPeriods {
			continue
		}
		mean, std, ok := series.MeanStd(values[lo:hi])
		if !ok {
			continue
		}
		x := values[k]
		if math.Abs(x-mean) > cfg.OutlierSigma*std && x >= cfg.OutlierMinValue {
			flags[index[k]] = true
		}
	}
}

// SortObservations sorts rows by (nuts_id, date), keeping the input order of
// equal keys
func SortObservations(rows []models.Observation) {
	slices.SortStableFunc(rows, func(a, b models.Observation) int {
		if c := strings.Compare(a.NutsID, b.NutsID); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
}

func nutsID(o models.Observation) string {
	return o.NutsID
}
