package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"covid-waves/internal/config"
	"covid-waves/internal/repository"
	"covid-waves/internal/services"
	"covid-waves/pkg/database"
	"covid-waves/pkg/logging"
)

var (
	// Run flags
	runRefreshFlag bool
	runNoDB        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline",
	Long: `Loads the tracker file, cleans it, completes every region's calendar,
fills gaps, derives the daily and weekly metrics and writes the artifacts.

Stages: refresh (optional) -> load -> clean -> calendarize -> fill ->
aggregate -> export -> store (optional). A failing stage leaves the previous
artifacts untouched.

Example:
  covidwaves run --config covidwaves.yaml
  covidwaves run --refresh --no-db`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runRefreshFlag, "refresh", false, "download the source file before loading")
	runCmd.Flags().BoolVar(&runNoDB, "no-db", false, "skip the PostgreSQL sink even when enabled in config")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	opts := []config.Option{config.WithRefresh(runRefreshFlag)}
	if runNoDB {
		opts = append(opts, config.WithoutDatabase())
	}
	cfg, err := loadConfig(opts...)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	collector := newCollector()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		serveMetrics(ctx, cfg.Metrics.Listen, logger)
	}

	var store repository.CovidRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database.Connection(), logger, collector)
		if err != nil {
			logger.Error(ctx, "[RUN_ERROR] Failed to connect to database", logging.Fields{
				"host":     cfg.Database.Host,
				"database": cfg.Database.Database,
			}, err)
			return err
		}
		defer db.Close()
		store = repository.NewCovidRepository(db, logger, collector)
	}

	pipeline := services.NewPipelineService(cfg, store, logger, collector)
	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), result)
	return nil
}

func printSummary(out io.Writer, result *services.PipelineResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tROWS\tREGIONS\tDURATION")
	for _, s := range result.Stages {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Stage, s.Rows, s.Regions, s.Duration.Round(time.Millisecond))
	}
	tw.Flush()

	if result.Clean != nil {
		c := result.Clean
		fmt.Fprintf(out, "\nremoved: %d missing, %d negative, %d excluded, %d outliers (%d years corrected)\n",
			c.MissingCases, c.Negative, c.Excluded, c.Outliers, c.YearCorrected)
	}
	if result.Fill != nil {
		fmt.Fprintf(out, "filled: %d static cells, %d interpolated cases, %d cases left undefined\n",
			result.Fill.StaticFilled, result.Fill.Interpolated, result.Fill.UndefinedCases)
	}
	for _, f := range result.Files {
		fmt.Fprintf(out, "wrote %s\n", f)
	}
	if result.Stored {
		fmt.Fprintln(out, "stored daily and weekly tables in PostgreSQL")
	}
	fmt.Fprintf(out, "done in %s\n", result.Duration.Round(time.Millisecond))
}
