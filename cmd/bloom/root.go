// ABOUTME: Root Cobra command for the bloom CLI.
// ABOUTME: Loads config, builds the logger and manages the store lifecycle via PersistentPre/PostRunE.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/config"
	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/logging"
	"github.com/harperreed/bloom/internal/storage"
)

// skipStore marks commands that must not open the configured store.
const skipStore = "bloom/skip-store"

var (
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
	store  storage.Store
)

var rootCmd = &cobra.Command{
	Use:   "bloom",
	Short: "Wearable metric collection and rolling averages",
	Long: `Bloom collects wearable metrics for enrolled users and maintains rolling
averages, health scores and anomaly alerts on top of them.

PIPELINE:

  collect-intraday         15-minute steps, distance, calories and heart rate
  collect-sleep            sleep sessions; emits "Main Sleep Detected"
  collect-activity         daily activity totals and heart rate zones
  collect-health-metrics   HRV, breathing rate, skin temperature, stress score
  short-term-averages      1D/7D/30D averages; emits "Report Data Ready"
  long-term-averages       monthly 30D/90D/180D/360D averages
  detect-anomalies         6-hour threshold rules; emits "Anomaly Detected"

QUICK START:

  $ bloom user add ABC123 --access-token ... --refresh-token ...
  $ bloom run collect-sleep --all             # from cron
  $ bloom worker                              # consume events from Kafka
  $ bloom serve                               # HTTP trigger API and /metrics
  $ bloom averages list ABC123 --period 7D

CONFIGURATION:

  Config is read from ~/.config/bloom/config.yaml (or --config) and every
  key can be overridden with BLOOM_* environment variables, for example
  BLOOM_STORAGE_BACKEND=postgres or BLOOM_EVENTS_BROKERS=kafka:9092.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("configure logging: %w", err)
		}
		slog.SetDefault(logger)

		if cmd.Annotations[skipStore] != "" {
			return nil
		}
		// PostRun is skipped when RunE fails, so a previous store may still be open.
		if store != nil {
			_ = store.Close()
		}
		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			err := store.Close()
			store = nil
			return err
		}
		return nil
	},
}

// newRunner builds a job runner over the open store. The returned func closes the publisher.
func newRunner() (*jobs.Runner, func(), error) {
	pub, err := cfg.NewPublisher(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	runner := jobs.NewRunner(store, cfg.FitbitClient(), pub, jobs.Options{
		Location:    cfg.Location(),
		Logger:      logger,
		Concurrency: cfg.GetConcurrency(),
	})
	return runner, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher_close_failed", slog.Any("err", err))
		}
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/bloom/config.yaml)")
	rootCmd.SetErr(os.Stderr)
}
