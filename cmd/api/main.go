package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/healthdesk/admin-api/internal/app"
	"github.com/healthdesk/admin-api/internal/config"
	"github.com/healthdesk/admin-api/internal/handler"
	activityHandler "github.com/healthdesk/admin-api/internal/handler/activity"
	blacklistHandler "github.com/healthdesk/admin-api/internal/handler/blacklist"
	doctorHandler "github.com/healthdesk/admin-api/internal/handler/doctor"
	suspensionHandler "github.com/healthdesk/admin-api/internal/handler/suspension"
	"github.com/healthdesk/admin-api/internal/middleware"
	"github.com/healthdesk/admin-api/internal/router"
	activityService "github.com/healthdesk/admin-api/internal/service/activity"
	doctorService "github.com/healthdesk/admin-api/internal/service/doctor"
	suspensionService "github.com/healthdesk/admin-api/internal/service/suspension"
	"github.com/healthdesk/admin-api/pkg/auth"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := app.NewLogger(cfg.Log)

	if cfg.JWT.Secret == "" {
		logger.Fatal(errors.New("jwt.secret is empty"), "refusing to start without a signing secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to open storage")
	}
	defer store.Close(context.Background())

	policy, err := app.NewPolicy(cfg.Suspension)
	if err != nil {
		logger.Fatal(err, "invalid suspension policy")
	}

	m := metrics.NewMetrics("admin", prometheus.DefaultRegisterer)

	// Initialize services
	activitySvc := activityService.NewService(store.Activity())
	doctorSvc := doctorService.NewService(store, activitySvc, m, logger)
	suspensionSvc := suspensionService.NewService(store, policy, activitySvc, m, logger)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// The in-memory store is private to this process, so its outbox and
	// jobs have to run here.
	if cfg.Storage.Driver == "memory" {
		broker, err := app.NewBroker(cfg, logger)
		if err != nil {
			logger.Fatal(err, "failed to create broker")
		}
		defer broker.Close()
		bg, err := app.NewBackground(cfg, store, broker, suspensionSvc, activitySvc, m, logger)
		if err != nil {
			logger.Fatal(err, "failed to configure background workers")
		}
		if err := bg.Start(ctx); err != nil {
			logger.Fatal(err, "failed to start background workers")
		}
		defer bg.Stop(context.Background())
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		router.Handlers{
			Doctor:     doctorHandler.NewHandler(doctorSvc),
			Suspension: suspensionHandler.NewHandler(suspensionSvc),
			Activity:   activityHandler.NewHandler(activitySvc),
			Blacklist:  blacklistHandler.NewHandler(store.Blacklist()),
		},
		handler.NewHandler(store, prometheus.DefaultGatherer),
		router.RouterConfig{
			RateLimit:      limit,
			RateBurst:      cfg.RateLimit.Burst,
			RateClientTTL:  cfg.RateLimit.ClientTTL,
			CORSConfig:     corsConfig,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			RequestTimeout: cfg.Server.WriteTimeout,
			MetricsPrefix:  "admin_http",
			Logger:         logger,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
		os.Exit(1)
	}
	logger.Info("Server exited properly")
}
