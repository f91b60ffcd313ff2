package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/actionlog/internal/adapter/api"
	"github.com/V4T54L/actionlog/internal/adapter/api/handler"
	"github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/adapter/transport"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/config"
	"github.com/V4T54L/actionlog/internal/pkg/logger"
	"github.com/V4T54L/actionlog/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.NewForEnv(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollectorMetrics(reg)

	// --- Start Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Optional NDJSON sink ---
	var sink domain.Transport
	if cfg.CollectorSinkPath != "" {
		f, err := os.OpenFile(cfg.CollectorSinkPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open collector sink", "path", cfg.CollectorSinkPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		sink = transport.NewWriterTransport(f)
		logger.Info("writing received events", "path", cfg.CollectorSinkPath)
	}

	sseBroker := handler.NewSSEBroker(ctx, time.Second, logger)
	collectUseCase := usecase.NewCollectBatchUseCase(sink, sseBroker, m, logger)
	collectHandler := handler.NewCollectHandler(collectUseCase, logger, cfg.MaxBatchBytes, m)

	// --- Initialize Collector Server ---
	collectorServer := &http.Server{
		Addr:         cfg.CollectorAddr,
		Handler:      api.NewRouter(logger, collectHandler, sseBroker),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting collector", "addr", collectorServer.Addr, "path", transport.DefaultPath)
		if err := collectorServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("collector server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
	if err := collectorServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("collector server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
