package services

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"covid-waves/internal/config"
	"covid-waves/internal/models"
	"covid-waves/internal/series"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Daily rolling windows, fixed by the metric names
const (
	dailyShortWindow  = 7
	dailyMediumWindow = 14
	dailyLongWindow   = 28
)

// Aggregator derives the daily and weekly metric tables
type Aggregator struct {
	cfg     config.AggregationConfig
	workers int
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAggregator creates an aggregator
func NewAggregator(cfg config.AggregationConfig, workers int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		workers: max(workers, 1),
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Aggregate builds the daily and weekly tables from a filled calendar table.
// Every region of the input must cover the same contiguous date range.
func (a *Aggregator) Aggregate(ctx context.Context, table *models.Table[models.Observation]) (*models.Table[models.DailyRecord], *models.Table[models.WeeklyRecord], error) {
	if table.Len() == 0 || len(table.Regions) == 0 {
		return nil, nil, &models.EmptyDatasetError{Stage: "aggregate"}
	}

	first := table.Region(0)
	weeks := models.DaysBetween(models.WeekStart(first[0].Date), models.WeekStart(first[len(first)-1].Date))/7 + 1

	daily := &models.Table[models.DailyRecord]{
		Rows:    make([]models.DailyRecord, table.Len()),
		Regions: append([]models.Span(nil), table.Regions...),
	}
	weekly := &models.Table[models.WeeklyRecord]{
		Rows:    make([]models.WeeklyRecord, len(table.Regions)*weeks),
		Regions: make([]models.Span, len(table.Regions)),
	}
	for i, span := range table.Regions {
		weekly.Regions[i] = models.Span{NutsID: span.NutsID, Start: i * weeks, End: (i + 1) * weeks}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range table.Regions {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a.aggregateDaily(table.Region(i), daily.Region(i))
			a.aggregateWeekly(daily.Region(i), weekly.Region(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	a.metrics.RecordStageRows("aggregate_daily", daily.Len())
	a.metrics.RecordStageRows("aggregate_weekly", weekly.Len())
	a.metrics.RegionsProcessed.Set(float64(len(daily.Regions)))

	a.logger.Info(ctx, "[AGGREGATE_COMPLETE] Metric tables derived", logging.Fields{
		"regions":     len(daily.Regions),
		"daily_rows":  daily.Len(),
		"weekly_rows": weekly.Len(),
		"weeks":       weeks,
		"stage":       "aggregate",
	})

	return daily, weekly, nil
}

// aggregateDaily fills out with the daily metrics of one region
func (a *Aggregator) aggregateDaily(rows []models.Observation, out []models.DailyRecord) {
	casesPop := make([]sql.NullFloat64, len(rows))
	for i, r := range rows {
		casesPop[i] = models.PopulationRate(r.Cases, r.Population)
	}

	m7 := series.RollingMean(casesPop, dailyShortWindow, a.cfg.DailyMinPeriods, a.cfg.RoundDecimals)
	m14 := series.RollingMean(casesPop, dailyMediumWindow, a.cfg.DailyMinPeriods, a.cfg.RoundDecimals)
	m28 := series.RollingMean(casesPop, dailyLongWindow, a.cfg.DailyMinPeriods, a.cfg.RoundDecimals)
	cumulated := series.CumSum(casesPop)

	for i, r := range rows {
		out[i] = models.DailyRecord{
			Observation:  r,
			CasesPop:     casesPop[i],
			Moving7dPop:  m7[i],
			Moving14dPop: m14[i],
			Moving28dPop: m28[i],
			CumulatedPop: cumulated[i],
		}
	}
}

// aggregateWeekly buckets one region's daily records into Monday-started
// weeks. out must hold one record per week of the daily range.
func (a *Aggregator) aggregateWeekly(days []models.DailyRecord, out []models.WeeklyRecord) {
	origin := models.WeekStart(days[0].Date)
	cases := make([][]sql.NullFloat64, len(out))
	casesPop := make([][]sql.NullFloat64, len(out))

	for _, d := range days {
		w := models.DaysBetween(origin, d.Date) / 7
		cases[w] = append(cases[w], d.Cases)
		casesPop[w] = append(casesPop[w], d.CasesPop)
	}

	sumPop := make([]sql.NullFloat64, len(out))
	for w := range out {
		out[w] = models.WeeklyRecord{
			Country:   days[0].Country,
			NutsID:    days[0].NutsID,
			NutsName:  days[0].NutsName,
			WeekStart: origin.AddDate(0, 0, 7*w),
			CasesW:    series.Sum(cases[w]),
			CasesPopW: series.Sum(casesPop[w]),
		}
		sumPop[w] = out[w].CasesPopW
	}

	short := series.RollingMean(sumPop, a.cfg.WeeklyShortWindow, a.cfg.WeeklyShortMinPeriod, a.cfg.RoundDecimals)
	long := series.RollingMean(sumPop, a.cfg.WeeklyLongWindow, a.cfg.WeeklyLongMinPeriod, a.cfg.RoundDecimals)
	cumulated := series.CumSum(sumPop)

	for w := range out {
		out[w].Moving4wPop = short[w]
		out[w].Moving8wPop = long[w]
		out[w].CumulatedPopW = cumulated[w]
	}
}
