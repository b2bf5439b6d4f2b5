package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"covid-waves/internal/config"
	"covid-waves/pkg/logging"
	"covid-waves/pkg/metrics"
)

const metricsNamespace = "covid_waves"

var (
	// Global flags
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "covidwaves",
	Short: "European regional COVID-19 case pipeline",
	Long: `covidwaves turns the European regional COVID-19 tracker into clean,
gap-filled daily and weekly metric tables per NUTS-3 region.

Configuration is read from COVIDWAVES_* environment variables (and a .env
file in the working directory), then from the YAML file given by --config.

Examples:
  covidwaves run
  covidwaves run --refresh --no-db
  covidwaves refresh
  covidwaves version`,
	SilenceUsage: true,
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
}

// loadConfig applies the global flags on top of env and file configuration
func loadConfig(opts ...config.Option) (*config.Config, error) {
	opts = append(opts, config.WithLogLevel(logLevel))
	cfg, err := config.LoadConfig(configFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("covidwaves", Version, logging.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.Format == "console" {
		logger.SetConsole(true)
	}
	return logger
}

// serveMetrics exposes /metrics on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, logger *logging.StructuredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info(ctx, "[METRICS_START] Metrics listener started", logging.Fields{"address": addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "[METRICS_ERROR] Metrics listener failed", logging.Fields{"address": addr}, err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

func newCollector() *metrics.Collector {
	return metrics.NewCollector(metricsNamespace, nil)
}
