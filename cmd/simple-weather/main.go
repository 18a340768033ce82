package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/publicfarley/simple-weather/internal/api"
	"github.com/publicfarley/simple-weather/internal/config"
	"github.com/publicfarley/simple-weather/internal/location"
	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
	"github.com/publicfarley/simple-weather/internal/places"
	"github.com/publicfarley/simple-weather/internal/scheduler"
	"github.com/publicfarley/simple-weather/internal/store"
	"github.com/publicfarley/simple-weather/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := location.NewStaticProvider()
	locationCache := location.NewCache(st, cfg.LocationFreshness, logger)
	reconciler := location.NewReconciler(provider, locationCache, cfg.SupersedeDistanceMeters, cfg.FixTimeout, logger)
	placesMgr := places.NewManager(ctx, st, logger)

	// The resolved coordinate doubles as the "Current Location" entry in
	// the places list and joins the batch refresh.
	reconciler.OnLocationChange(func(coord *models.Coordinate) {
		if coord == nil {
			placesMgr.ClearCurrentLocation()
			return
		}
		placesMgr.SetCurrentLocation(*coord)
	})

	// Publish the cached location immediately, then chase the live fix in
	// the background.
	reconciler.Start(ctx)
	go func() {
		if err := reconciler.RequestFix(ctx); err != nil {
			logger.Warn("startup location fix failed", zap.Error(err))
		}
	}()

	meteo := weather.NewOpenMeteoClient(weather.OpenMeteoConfig{
		BaseURL:            cfg.ProviderBaseURL,
		APIKey:             cfg.ProviderAPIKey,
		Timeout:            cfg.ProviderTimeout,
		RetryInitialDelay:  cfg.RetryInitialDelay,
		RetryMaxDelay:      cfg.RetryMaxDelay,
		RetryMaxElapsed:    cfg.RetryMaxElapsed,
		BreakerMaxRequests: cfg.BreakerMaxRequests,
		BreakerInterval:    cfg.BreakerInterval,
		BreakerTimeout:     cfg.BreakerTimeout,
	})
	fetchCache := weather.NewFetchCache(meteo, cfg.WeatherFreshness, cfg.CoalesceTimeout, logger)

	refresh := func(jobCtx context.Context) {
		coords := placesMgr.Coordinates()
		results := fetchCache.FetchBatch(jobCtx, coords)
		logger.Info("background refresh finished",
			zap.Int("requested", len(coords)), zap.Int("refreshed", len(results)))
	}
	sched := scheduler.New(cfg.RefreshInterval, 2*time.Minute, refresh, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := api.NewHandler(reconciler, fetchCache, placesMgr, logger)
	router := api.NewRouter(handler, logger, limiter, cfg.FixTimeout+cfg.CoalesceTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
