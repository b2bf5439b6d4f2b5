// Package exporter writes the derived tables as delimited text and workbooks.
package exporter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"covid-waves/internal/config"
	"covid-waves/internal/models"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// Exporter writes the daily and weekly tables into the export directory
type Exporter struct {
	cfg     config.ExportConfig
	window  *models.DateWindow
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewExporter creates an exporter. A non-nil window adds a
// _<start>_<end> suffix to every file name.
func NewExporter(cfg config.ExportConfig, window *models.DateWindow, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Exporter {
	return &Exporter{
		cfg:     cfg,
		window:  window,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Path returns the final path of an artifact with the given base name and
// extension
func (e *Exporter) Path(base, ext string) string {
	name := base
	if e.window != nil {
		name = fmt.Sprintf("%s_%s_%s", base, e.window.Start.Format(models.DateLayout), e.window.End.Format(models.DateLayout))
	}
	return filepath.Join(e.cfg.Dir, name+ext)
}

type pendingFile struct {
	tmp    string
	final  string
	format string
}

// Batch holds fully written temporary files awaiting Commit
type Batch struct {
	files   []pendingFile
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// Prepare writes every configured artifact into temporary files. Nothing is
// visible under the final names until Commit.
func (e *Exporter) Prepare(ctx context.Context, daily []models.DailyRecord, weekly []models.WeeklyRecord) (*Batch, error) {
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	delimiter := []rune(e.cfg.Delimiter)[0]
	batch := &Batch{logger: e.logger, metrics: e.metrics}

	steps := []struct {
		enabled bool
		base    string
		ext     string
		format  string
		write   func(path string) error
	}{
		{true, e.cfg.DailyName, ".csv", "csv", func(path string) error {
			return writeFile(path, func(w *bufio.Writer) error { return WriteDailyCSV(w, daily, delimiter) })
		}},
		{true, e.cfg.WeeklyName, ".csv", "csv", func(path string) error {
			return writeFile(path, func(w *bufio.Writer) error { return WriteWeeklyCSV(w, weekly, delimiter) })
		}},
		{e.cfg.DailyXLSX, e.cfg.DailyName, ".xlsx", "xlsx", func(path string) error {
			return WriteDailyXLSX(path, daily)
		}},
		{e.cfg.WeeklyXLSX, e.cfg.WeeklyName, ".xlsx", "xlsx", func(path string) error {
			return WriteWeeklyXLSX(path, weekly)
		}},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			batch.Discard()
			return nil, err
		}

		tmp, err := tempPath(e.cfg.Dir, step.ext)
		if err != nil {
			batch.Discard()
			return nil, err
		}
		batch.files = append(batch.files, pendingFile{tmp: tmp, final: e.Path(step.base, step.ext), format: step.format})

		if err := step.write(tmp); err != nil {
			batch.Discard()
			return nil, fmt.Errorf("failed to write %s: %w", e.Path(step.base, step.ext), err)
		}
	}

	e.logger.Debug(ctx, "[EXPORT_PREPARED] Artifacts written to temporary files", logging.Fields{
		"files": len(batch.files),
		"dir":   e.cfg.Dir,
	})
	return batch, nil
}

// Commit renames every temporary file to its final name and returns the
// final paths
func (b *Batch) Commit() ([]string, error) {
	paths := make([]string, 0, len(b.files))
	for i, f := range b.files {
		if err := os.Rename(f.tmp, f.final); err != nil {
			for _, rest := range b.files[i:] {
				os.Remove(rest.tmp)
			}
			return paths, fmt.Errorf("failed to publish %s: %w", f.final, err)
		}
		b.metrics.ExportFilesTotal.WithLabelValues(f.format).Inc()
		paths = append(paths, f.final)
	}

	b.logger.Info(context.Background(), "[EXPORT_COMPLETE] Artifacts published", logging.Fields{
		"files": paths,
	})
	b.files = nil
	return paths, nil
}

// Discard removes every temporary file
func (b *Batch) Discard() {
	for _, f := range b.files {
		os.Remove(f.tmp)
	}
	b.files = nil
}

// tempPath reserves a hidden file in dir that keeps ext, as the workbook
// writer checks extensions
func tempPath(dir, ext string) (string, error) {
	f, err := os.CreateTemp(dir, ".covidwaves-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func writeFile(path string, write func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 1<<16)
	if err := write(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
