package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"covid-waves/internal/services"
	"covid-waves/pkg/logging"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download the tracker file without running the pipeline",
	Long: `Downloads source.url to source.path. The existing file is only
replaced once the download has completed.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresher := services.NewSourceRefresher(cfg.Source.Timeout, logger, newCollector())
	n, err := refresher.Refresh(ctx, cfg.Source.URL, cfg.Source.Path)
	if err != nil {
		logger.Error(ctx, "[REFRESH_FAILED] Source download failed", logging.Fields{"url": cfg.Source.URL}, err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d bytes to %s\n", n, cfg.Source.Path)
	return nil
}
