// ABOUTME: CLI command for the event worker.
// ABOUTME: Consumes inbound Kafka events and runs the job each one maps to until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/bloom/internal/jobs"
)

var workerMetricsAddr string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume events and run jobs",
	Long: `Consume inbound events from Kafka and run the job each one maps to.

ROUTING:

  Collect Intraday Data         collect-intraday
  Collect Sleep Data            collect-sleep
  Collect Activity Summary      collect-activity
  Collect Health Metrics        collect-health-metrics
  Calculate Long Term Average   long-term-averages
  Detect Anomalies              detect-anomalies
  Main Sleep Detected           short-term-averages
  Job Requested                 the job named in detail.job

  Events are committed after handling; a failed job is logged and not retried.
  Report Data Ready and Anomaly Detected share the default topic and are skipped.

CONFIGURATION:

  events.brokers, events.inbound_topic and events.group_id select the
  topic and consumer group. Use --metrics-addr to expose /metrics.

EXAMPLES:

  bloom worker
  BLOOM_EVENTS_BROKERS=kafka:9092 bloom worker --metrics-addr :9100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, closePub, err := newRunner()
		if err != nil {
			return err
		}
		defer closePub()

		return runWorker(ctx, runner, workerMetricsAddr)
	},
}

// runWorker consumes until ctx is cancelled. A non-empty metricsAddr also serves /metrics.
func runWorker(ctx context.Context, runner *jobs.Runner, metricsAddr string) error {
	consumer, err := cfg.NewConsumer(logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Close()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		g.Go(func() error {
			return serveUntilDone(ctx, &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
		})
	}
	g.Go(func() error {
		logger.Info("worker_started", slog.String("topic", cfg.Events.InboundTopic), slog.String("group", cfg.Events.GroupID))
		err := consumer.Run(ctx, runner.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func init() {
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", "", "address to serve /metrics on (default: disabled)")
	rootCmd.AddCommand(workerCmd)
}
