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

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hazz-dev/netpulse/internal/alert"
	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
	"github.com/hazz-dev/netpulse/internal/dashboard"
	"github.com/hazz-dev/netpulse/internal/logging"
	"github.com/hazz-dev/netpulse/internal/metrics"
	"github.com/hazz-dev/netpulse/internal/scheduler"
	"github.com/hazz-dev/netpulse/internal/server"
	"github.com/hazz-dev/netpulse/internal/storage"
	"github.com/hazz-dev/netpulse/internal/version"
)

const defaultAlertCooldown = 5 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run configured probes on a schedule and serve their results",
		RunE:  runServe,
	}
}

// newHandler mounts the API, metrics and dashboard on one mux.
func newHandler(api *server.Server, m *metrics.Collectors) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.Router())
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", dashboard.Handler())
	return mux
}

// onResult feeds every scheduled result to metrics and, when configured,
// to the alerter.
func onResult(m *metrics.Collectors, alerter *alert.Alerter) scheduler.ResultFunc {
	return func(p config.Probe, r checker.Result, prev *bool) {
		m.Observe(p.Name, r)
		if alerter != nil {
			alerter.Notify(p, r, prev)
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	// 2. Logger (stderr plus optional rotating file)
	logger, logCloser, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(logCloser))

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("starting", "version", version.String(), "probes", len(cfg.Probes))

	// 3. Open SQLite
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	// 4. Metrics and alerts
	m := metrics.New()
	var alerter *alert.Alerter
	if cfg.Alerts.Webhook.URL != "" {
		cooldown := cfg.Alerts.Webhook.Cooldown.Duration
		if cooldown == 0 {
			cooldown = defaultAlertCooldown
		}
		alerter = alert.New(cfg.Alerts.Webhook.URL, cooldown, logger)
	}

	// 5. Scheduler
	sched := scheduler.New(cfg.Probes, db, checker.New, runID, logger)
	sched.SetOnResult(onResult(m, alerter))

	// 6. HTTP server
	api := server.New(db, cfg.Probes, cfg.Server.CORSOrigins, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHandler(api, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sched.Start(ctx)
	logger.Info("scheduler started", "probes", len(cfg.Probes))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 8. Wait for signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		runErr = fmt.Errorf("HTTP server: %w", runErr)
		stop()
	}

	// 9. Graceful shutdown
	sched.Wait()
	if alerter != nil {
		alerter.Wait()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	logShutdown(logger, runErr)
	return runErr
}

func logShutdown(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("shutdown with errors", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
