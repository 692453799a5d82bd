package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"investment_manager/internal/accrual"
	"investment_manager/internal/api"
	"investment_manager/internal/config"
	"investment_manager/internal/enrollment"
	"investment_manager/internal/plan"
	"investment_manager/internal/repository/memory"
	"investment_manager/internal/service"
	"investment_manager/pkg/metrics"
)

const appName = "investment_manager"

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the investment manager HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to investd.yaml (defaults apply when omitted)")

	return cmd
}

func runServe(configPath string) error {
	logger := setupLogger()
	logger.Info("Starting application", slog.String("name", appName))

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	planRepo := memory.NewPlanRepository()
	ledger := memory.NewLedger()
	runRepo := memory.NewAccrualRunRepository()

	collector := metrics.NewCollector(logger)

	notifier := service.NewNotificationService(
		&service.MockEmailService{},
		&service.MockSlackService{},
		cfg.Notifications.Workers,
		logger,
	)

	planService := plan.NewService(planRepo, ledger, logger)
	enrollService := enrollment.NewService(planRepo, ledger, ledger, logger)
	engine := accrual.NewEngine(ledger, planRepo, runRepo, cfg.Accrual.Workers, logger).
		WithNotifier(notifier).
		WithMetrics(collector)

	apiHandler := api.NewAPIHandler(planService, enrollService, engine, collector, logger)

	metricsServer := collector.StartMetricsServer(cfg.Metrics.Addr)
	httpServer := startHTTPServer(cfg.Server, apiHandler, logger)

	waitForShutdown(cfg, logger, httpServer, metricsServer, notifier, collector)
	logger.Info("Application shutdown complete")

	return nil
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func startHTTPServer(cfg config.ServerConfig, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	cfg *config.Config,
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	notifier *service.NotificationService,
	collector *metrics.Collector,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	grace := time.Duration(cfg.Server.ShutdownGraceSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := notifier.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown failed", slog.String("error", err.Error()))
	}

	if err := collector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}
}
