package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/cache"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/circuitbreaker"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/config"
	httphandler "github.com/NasaLegend/nasa-spaceapps-2/internal/http"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/lifecycle"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/observability"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/provider"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/service"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
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

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "power_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerTransitionsTotal.WithLabelValues("power_api", from.String(), to.String()).Inc()
				observability.CircuitBreakerState.WithLabelValues("power_api").Set(float64(to))
			},
		})
		observability.CircuitBreakerState.WithLabelValues("power_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	powerClient, err := provider.NewPowerClient(provider.Config{
		BaseURL:    cfg.ProviderBaseURL,
		Timeout:    cfg.ProviderTimeout,
		ChunkYears: cfg.ProviderChunkYears,
		ChunkDelay: cfg.ProviderChunkDelay,
		Breaker:    breaker,
	}, logger)
	if err != nil {
		logger.Fatal("provider client", zap.Error(err))
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	locationCache := cache.New(st, logger)
	if err := locationCache.Hydrate(); err != nil {
		logger.Warn("cache hydration incomplete", zap.Error(err))
	}
	logger.Info("cache hydrated", zap.Int("locations", locationCache.Len()))

	artifacts := store.NewArtifacts(cfg.DataDir)
	svc := service.New(cfg, powerClient, locationCache, st, artifacts, clockwork.NewRealClock(), logger)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StartTime:            time.Now(),
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(svc, healthConfig, logger, limiter)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	weatherRouter.HandleFunc("/probability", handler.PostProbability).Methods("POST")
	weatherRouter.HandleFunc("/future/{latitude}/{longitude}", handler.GetFuture).Methods("GET")
	weatherRouter.HandleFunc("/model-metrics/{latitude}/{longitude}", handler.GetModelMetrics).Methods("GET")
	weatherRouter.HandleFunc("/cache", handler.GetCacheInfo).Methods("GET")
	weatherRouter.HandleFunc("/cache", handler.DeleteCache).Methods("DELETE")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
