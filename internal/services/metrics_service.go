package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"covid-waves/internal/models"
	"covid-waves/internal/repository"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Default metrics served when a request names none
const (
	DefaultDailyMetric  = models.MetricMoving14dPop
	DefaultWeeklyMetric = models.MetricMoving4wPop
)

var dailyMetrics = []string{
	models.MetricCases, models.MetricCasesPop, models.MetricMoving7dPop,
	models.MetricMoving14dPop, models.MetricMoving28dPop, models.MetricCumulatedPop,
}

var weeklyMetrics = []string{
	models.MetricCasesW, models.MetricCasesPopW, models.MetricMoving4wPop,
	models.MetricMoving8wPop, models.MetricCumulatedPopW,
}

// MetricsService serves the persisted metric tables to the API
type MetricsService struct {
	repo    repository.CovidRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// MetricInfo describes one servable metric
type MetricInfo struct {
	Name        string        `json:"name"`
	Period      models.Period `json:"period"`
	Description string        `json:"description"`
}

// MetricMap is one metric for every region on one date, the input of a
// single choropleth frame
type MetricMap struct {
	Metric      string               `json:"metric"`
	Description string               `json:"description"`
	Period      models.Period        `json:"period"`
	Date        string               `json:"date"`
	Values      []models.MetricValue `json:"values"`
	Records     interface{}          `json:"records"`
}

// RegionSeries is one region's records in date order
type RegionSeries struct {
	NutsID  string        `json:"nuts_id"`
	Period  models.Period `json:"period"`
	Count   int           `json:"count"`
	Records interface{}   `json:"records"`
}

// NewMetricsService creates a new metrics service
func NewMetricsService(repo repository.CovidRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MetricsService {
	return &MetricsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Catalog lists every metric with its caption
func (s *MetricsService) Catalog() []MetricInfo {
	infos := make([]MetricInfo, 0, len(dailyMetrics)+len(weeklyMetrics))
	for _, name := range dailyMetrics {
		infos = append(infos, MetricInfo{Name: name, Period: models.PeriodDaily, Description: models.MetricDescriptions[name]})
	}
	for _, name := range weeklyMetrics {
		infos = append(infos, MetricInfo{Name: name, Period: models.PeriodWeekly, Description: models.MetricDescriptions[name]})
	}
	return infos
}

// Regions lists the regions in nuts_id order
func (s *MetricsService) Regions(ctx context.Context) ([]models.Region, error) {
	regions, err := s.repo.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].NutsID < regions[j].NutsID })
	return regions, nil
}

// Dates lists the available dates of a period as ISO strings
func (s *MetricsService) Dates(ctx context.Context, period models.Period) ([]string, error) {
	dates, err := s.repo.ListDates(ctx, period)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(models.DateLayout)
	}
	return out, nil
}

// DailyMap returns metric for every region on date
func (s *MetricsService) DailyMap(ctx context.Context, date, metric string) (*MetricMap, error) {
	day, err := parseQueryDate("date", date)
	if err != nil {
		return nil, err
	}
	if metric == "" {
		metric = DefaultDailyMetric
	}
	if !slices.Contains(dailyMetrics, metric) {
		return nil, &models.ValidationError{Field: "metric", Message: "unknown daily metric, expected one of " + strings.Join(dailyMetrics, ", ")}
	}

	records, err := s.repo.GetDailyByDate(ctx, day)
	if err != nil {
		return nil, err
	}

	values := make([]models.MetricValue, len(records))
	views := make([]models.DailyView, len(records))
	for i := range records {
		v, _ := records[i].Metric(metric)
		values[i] = models.MetricValue{NutsID: records[i].NutsID, Date: day.Format(models.DateLayout), Value: models.OrNoData(v)}
		views[i] = records[i].View()
	}

	s.logger.Debug(ctx, "[SERVICE_DAILY_MAP] Daily map assembled", logging.Fields{
		"date":    day.Format(models.DateLayout),
		"metric":  metric,
		"regions": len(records),
	})

	return &MetricMap{
		Metric:      metric,
		Description: models.MetricDescriptions[metric],
		Period:      models.PeriodDaily,
		Date:        day.Format(models.DateLayout),
		Values:      values,
		Records:     views,
	}, nil
}

// WeeklyMap returns metric for every region in the week containing week
func (s *MetricsService) WeeklyMap(ctx context.Context, week, metric string) (*MetricMap, error) {
	day, err := parseQueryDate("week", week)
	if err != nil {
		return nil, err
	}
	start := models.WeekStart(day)
	if metric == "" {
		metric = DefaultWeeklyMetric
	}
	if !slices.Contains(weeklyMetrics, metric) {
		return nil, &models.ValidationError{Field: "metric", Message: "unknown weekly metric, expected one of " + strings.Join(weeklyMetrics, ", ")}
	}

	records, err := s.repo.GetWeeklyByWeek(ctx, start)
	if err != nil {
		return nil, err
	}

	values := make([]models.MetricValue, len(records))
	views := make([]models.WeeklyView, len(records))
	for i := range records {
		v, _ := records[i].Metric(metric)
		values[i] = models.MetricValue{NutsID: records[i].NutsID, Date: start.Format(models.DateLayout), Value: models.OrNoData(v)}
		views[i] = records[i].View()
	}

	return &MetricMap{
		Metric:      metric,
		Description: models.MetricDescriptions[metric],
		Period:      models.PeriodWeekly,
		Date:        start.Format(models.DateLayout),
		Values:      values,
		Records:     views,
	}, nil
}

// Series returns one region's records for a period, optionally bounded by
// start and end (inclusive, ISO dates)
func (s *MetricsService) Series(ctx context.Context, nutsID string, period models.Period, start, end string) (*RegionSeries, error) {
	filter := repository.SeriesFilter{NutsID: strings.TrimSpace(nutsID)}
	if filter.NutsID == "" {
		return nil, &models.ValidationError{Field: "nuts_id", Message: "required"}
	}

	if start != "" {
		d, err := parseQueryDate("start", start)
		if err != nil {
			return nil, err
		}
		filter.Start = &d
	}
	if end != "" {
		d, err := parseQueryDate("end", end)
		if err != nil {
			return nil, err
		}
		filter.End = &d
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, &models.ValidationError{Field: "end", Message: "must not be before start"}
	}

	if period == models.PeriodWeekly {
		records, err := s.repo.GetWeeklySeries(ctx, filter)
		if err != nil {
			return nil, err
		}
		views := make([]models.WeeklyView, len(records))
		for i := range records {
			views[i] = records[i].View()
		}
		return &RegionSeries{NutsID: filter.NutsID, Period: period, Count: len(views), Records: views}, nil
	}

	records, err := s.repo.GetDailySeries(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]models.DailyView, len(records))
	for i := range records {
		views[i] = records[i].View()
	}
	return &RegionSeries{NutsID: filter.NutsID, Period: models.PeriodDaily, Count: len(views), Records: views}, nil
}

// HealthCheck checks the backing store
func (s *MetricsService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func parseQueryDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &models.ValidationError{Field: field, Message: "required, expected YYYY-MM-DD"}
	}
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: field, Message: "invalid format, expected YYYY-MM-DD"}
	}
	return d, nil
}
