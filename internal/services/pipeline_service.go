package services

import (
	"context"
	"errors"
	"time"

	"covid-waves/internal/config"
	"covid-waves/internal/exporter"
	"covid-waves/internal/models"
	"covid-waves/internal/repository"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Stage names, as used in logs, metrics and StageError
const (
	StageRefresh     = "refresh"
	StageLoad        = "load"
	StageClean       = "clean"
	StageCalendarize = "calendarize"
	StageFill        = "fill"
	StageAggregate   = "aggregate"
	StageExport      = "export"
	StageStore       = "store"
)

// PipelineService runs the whole batch from the raw file to the artifacts
type PipelineService struct {
	cfg        *config.Config
	loader     *Loader
	cleaner    *Cleaner
	aggregator *Aggregator
	refresher  *SourceRefresher
	exporter   *exporter.Exporter
	store      repository.CovidRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// StageResult records the size of a stage's output table
type StageResult struct {
	Stage    string
	Rows     int
	Regions  int
	Duration time.Duration
}

// PipelineResult contains run statistics
type PipelineResult struct {
	Stages     []StageResult
	Load       *LoadReport
	Clean      *CleanReport
	Calendar   *CalendarReport
	Fill       *FillReport
	Regions    int
	DailyRows  int
	WeeklyRows int
	Files      []string
	Stored     bool
	Duration   time.Duration

	Daily  *models.Table[models.DailyRecord]
	Weekly *models.Table[models.WeeklyRecord]
}

// NewPipelineService wires the stages from cfg. store may be nil, in which
// case nothing is written to the database.
func NewPipelineService(cfg *config.Config, store repository.CovidRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PipelineService {
	workers := cfg.WorkerCount()
	return &PipelineService{
		cfg:        cfg,
		loader:     NewLoader([]rune(cfg.Source.Delimiter)[0], logger, metricsCollector),
		cleaner:    NewCleaner(cfg.Cleaning, workers, logger, metricsCollector),
		aggregator: NewAggregator(cfg.Aggregation, workers, logger, metricsCollector),
		refresher:  NewSourceRefresher(cfg.Source.Timeout, logger, metricsCollector),
		exporter:   exporter.NewExporter(cfg.Export, cfg.InputWindow(), logger, metricsCollector),
		store:      store,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Run executes refresh (when configured), load, clean, calendarize, fill,
// aggregate, export and store. Any failure aborts the run before an artifact
// becomes visible.
func (s *PipelineService) Run(ctx context.Context) (*PipelineResult, error) {
	started := time.Now()
	result := &PipelineResult{}

	s.logger.Info(ctx, "[PIPELINE_START] Starting pipeline run", logging.Fields{
		"source":      s.cfg.Source.Path,
		"refresh":     s.cfg.Source.Refresh,
		"limit_dates": s.cfg.Window.LimitDates,
		"workers":     s.cfg.WorkerCount(),
		"store":       s.store != nil,
	})

	err := s.run(ctx, result)
	result.Duration = time.Since(started)

	if err != nil {
		s.metrics.PipelineRunsTotal.WithLabelValues("failure").Inc()
		var stageErr *models.StageError
		fields := logging.Fields{"duration_ms": result.Duration.Milliseconds()}
		if errors.As(err, &stageErr) {
			fields["stage"] = stageErr.Stage
			fields["rows"] = stageErr.Rows
			fields["regions"] = stageErr.Regions
		}
		s.logger.Error(ctx, "[PIPELINE_FAILED] Pipeline run aborted", fields, err)
		return result, err
	}

	s.metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
	s.logger.Info(ctx, "[PIPELINE_COMPLETE] Pipeline run completed", logging.Fields{
		"regions":     result.Regions,
		"daily_rows":  result.DailyRows,
		"weekly_rows": result.WeeklyRows,
		"files":       result.Files,
		"stored":      result.Stored,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

func (s *PipelineService) run(ctx context.Context, result *PipelineResult) error {
	if s.cfg.Source.Refresh {
		timer := s.metrics.StageTimer(StageRefresh)
		if _, err := s.refresher.Refresh(ctx, s.cfg.Source.URL, s.cfg.Source.Path); err != nil {
			return s.fail(StageRefresh, 0, 0, err)
		}
		result.record(StageRefresh, 0, 0, timer.ObserveDuration())
	}

	timer := s.metrics.StageTimer(StageLoad)
	observations, loadReport, err := s.loader.Load(ctx, s.cfg.Source.Path, s.cfg.InputWindow())
	if err != nil {
		return s.fail(StageLoad, 0, 0, err)
	}
	result.Load = loadReport
	result.record(StageLoad, len(observations), 0, timer.ObserveDuration())

	timer = s.metrics.StageTimer(StageClean)
	cleaned, cleanReport, err := s.cleaner.Clean(ctx, observations)
	if err != nil {
		return s.fail(StageClean, len(observations), 0, err)
	}
	result.Clean = cleanReport
	result.record(StageClean, len(cleaned), cleanReport.Regions, timer.ObserveDuration())

	timer = s.metrics.StageTimer(StageCalendarize)
	calendar, calendarReport, err := Calendarize(cleaned)
	if err != nil {
		return s.fail(StageCalendarize, len(cleaned), cleanReport.Regions, err)
	}
	result.Calendar = calendarReport
	result.record(StageCalendarize, calendar.Len(), len(calendar.Regions), timer.ObserveDuration())
	s.metrics.RecordStageRows(StageCalendarize, calendar.Len())
	s.logger.Info(ctx, "[CALENDAR_COMPLETE] Regions reindexed onto the daily calendar", logging.Fields{
		"start":      calendarReport.Start.Format(models.DateLayout),
		"end":        calendarReport.End.Format(models.DateLayout),
		"days":       calendarReport.Days,
		"regions":    calendarReport.Regions,
		"duplicates": calendarReport.Duplicates,
		"inserted":   calendarReport.Inserted,
		"stage":      StageCalendarize,
	})

	timer = s.metrics.StageTimer(StageFill)
	filled, fillReport, err := Fill(ctx, calendar, s.cfg.WorkerCount())
	if err != nil {
		return s.fail(StageFill, calendar.Len(), len(calendar.Regions), err)
	}
	result.Fill = fillReport
	result.record(StageFill, filled.Len(), len(filled.Regions), timer.ObserveDuration())
	s.metrics.RecordStageRows(StageFill, filled.Len())
	s.logger.Info(ctx, "[FILL_COMPLETE] Gaps filled", logging.Fields{
		"static_filled":   fillReport.StaticFilled,
		"interpolated":    fillReport.Interpolated,
		"undefined_cases": fillReport.UndefinedCases,
		"stage":           StageFill,
	})

	timer = s.metrics.StageTimer(StageAggregate)
	daily, weekly, err := s.aggregator.Aggregate(ctx, filled)
	if err != nil {
		return s.fail(StageAggregate, filled.Len(), len(filled.Regions), err)
	}
	result.Daily, result.Weekly = daily, weekly
	result.Regions = len(daily.Regions)
	result.DailyRows = daily.Len()
	result.WeeklyRows = weekly.Len()
	result.record(StageAggregate, daily.Len()+weekly.Len(), len(daily.Regions), timer.ObserveDuration())

	timer = s.metrics.StageTimer(StageExport)
	batch, err := s.exporter.Prepare(ctx, daily.Rows, weekly.Rows)
	if err != nil {
		return s.fail(StageExport, daily.Len(), len(daily.Regions), err)
	}

	if s.store != nil {
		storeTimer := s.metrics.StageTimer(StageStore)
		if err := s.store.ReplaceAll(ctx, daily.Rows, weekly.Rows); err != nil {
			batch.Discard()
			return s.fail(StageStore, daily.Len(), len(daily.Regions), err)
		}
		result.Stored = true
		result.record(StageStore, daily.Len()+weekly.Len(), len(daily.Regions), storeTimer.ObserveDuration())
	}

	files, err := batch.Commit()
	if err != nil {
		return s.fail(StageExport, daily.Len(), len(daily.Regions), err)
	}
	result.Files = files
	result.record(StageExport, len(files), len(daily.Regions), timer.ObserveDuration())

	return nil
}

// Refresh downloads the upstream source without running the pipeline
func (s *PipelineService) Refresh(ctx context.Context) (int64, error) {
	n, err := s.refresher.Refresh(ctx, s.cfg.Source.URL, s.cfg.Source.Path)
	if err != nil {
		return 0, s.fail(StageRefresh, 0, 0, err)
	}
	return n, nil
}

func (s *PipelineService) fail(stage string, rows, regions int, err error) error {
	s.metrics.RecordStageError(stage)
	return &models.StageError{Stage: stage, Rows: rows, Regions: regions, Err: err}
}

func (r *PipelineResult) record(stage string, rows, regions int, d time.Duration) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Rows: rows, Regions: regions, Duration: d})
}
