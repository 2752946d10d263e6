// ABOUTME: CLI command for the HTTP trigger API.
// ABOUTME: Serves job triggers, event intake, read endpoints and /metrics with graceful shutdown.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/bloom/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr       string
	serveWithWorker bool
	serveAccessLog  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger API",
	Long: `Serve the HTTP trigger API.

ENDPOINTS:

  POST /jobs/{job}                 run a job: {"fitbit_user_id"}, {"fitbit_user_ids"} or {"all": true}
  POST /events                     handle one event envelope
  GET  /users/{user}/averages      ?family=short|long&period=7D&from=&to=&limit=
  GET  /users/{user}/anomalies     ?limit=
  GET  /healthz
  GET  /metrics                    Prometheus metrics

EXAMPLES:

  bloom serve
  bloom serve --addr :9000 --access-log
  bloom serve --with-worker        # also consume Kafka events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, closePub, err := newRunner()
		if err != nil {
			return err
		}
		defer closePub()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		var accessLog io.Writer
		if serveAccessLog {
			accessLog = cmd.OutOrStdout()
		}
		api := httpapi.NewServer(runner, store, logger, accessLog)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("http_listening", slog.String("addr", addr))
			return serveUntilDone(ctx, &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second})
		})
		if serveWithWorker {
			g.Go(func() error {
				return runWorker(ctx, runner, "")
			})
		}
		return g.Wait()
	},
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http_stopped", slog.String("addr", srv.Addr))
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: http.addr from config)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also consume inbound events")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "write Apache-style access logs to stdout")
	rootCmd.AddCommand(serveCmd)
}
