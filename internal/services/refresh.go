package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"covid-waves/internal/models"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

// SourceRefresher downloads the upstream tracker file over the local copy
type SourceRefresher struct {
	client  *http.Client
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSourceRefresher creates a refresher whose requests time out after timeout
func NewSourceRefresher(timeout time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SourceRefresher {
	return &SourceRefresher{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Refresh fetches url into dest with a single GET. The body is written to a
// temporary file next to dest and renamed over it once complete, so a failed
// download leaves the previous file in place. Failures are NetworkErrors
// unless they happen on the local filesystem.
func (r *SourceRefresher) Refresh(ctx context.Context, url, dest string) (int64, error) {
	timer := r.metrics.NewTimer(r.metrics.RefreshDuration)

	r.logger.Info(ctx, "[REFRESH_START] Downloading source file", logging.Fields{
		"url":  url,
		"dest": dest,
	})

	n, err := r.download(ctx, url, dest)
	if err != nil {
		r.metrics.RefreshErrorsTotal.Inc()
		r.logger.Error(ctx, "[REFRESH_ERROR] Source download failed", logging.Fields{
			"url": url,
		}, err)
		return 0, err
	}

	duration := timer.ObserveDuration()
	r.metrics.RefreshBytes.Set(float64(n))

	r.logger.Info(ctx, "[REFRESH_COMPLETE] Source file replaced", logging.Fields{
		"dest":        dest,
		"bytes":       n,
		"duration_ms": duration.Milliseconds(),
	})
	return n, nil
}

func (r *SourceRefresher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &models.NetworkError{URL: url, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, &models.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &models.NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create source directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, &models.NetworkError{URL: url, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to replace source file: %w", err)
	}
	return n, nil
}
