package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/healthdesk/admin-api/internal/app"
	"github.com/healthdesk/admin-api/internal/config"
	activityService "github.com/healthdesk/admin-api/internal/service/activity"
	suspensionService "github.com/healthdesk/admin-api/internal/service/suspension"
	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

func setupHealthCheck(port int, ping func(context.Context) error, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := app.NewLogger(cfg.Log).WithFields(map[string]interface{}{"component": "worker"})

	if cfg.Storage.Driver == "memory" {
		logger.Fatal(errors.New("memory storage is process-local"), "the worker needs postgres or mongo; the API runs background jobs itself with memory storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to open storage")
	}
	defer store.Close(context.Background())

	broker, err := app.NewBroker(cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to create broker")
	}
	defer broker.Close()

	policy, err := app.NewPolicy(cfg.Suspension)
	if err != nil {
		logger.Fatal(err, "Invalid suspension policy")
	}

	m := metrics.NewMetrics("admin", prometheus.DefaultRegisterer)
	activitySvc := activityService.NewService(store.Activity())
	suspensionSvc := suspensionService.NewService(store, policy, activitySvc, m, logger)

	bg, err := app.NewBackground(cfg, store, broker, suspensionSvc, activitySvc, m, logger)
	if err != nil {
		logger.Fatal(err, "Failed to configure background workers")
	}
	if err := bg.Start(ctx); err != nil {
		logger.Fatal(err, "Failed to start background workers")
	}

	health := setupHealthCheck(cfg.Server.HealthPort, store.Ping, logger)

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	bg.Stop(shutdownCtx)
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Warn(err, "Health server did not shut down cleanly")
	}
}
