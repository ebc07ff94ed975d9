// Package main provides the entry point for the scholar service HTTP server.
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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/helixir/scholar-service/internal/config"
	"github.com/helixir/scholar-service/internal/observability"
	"github.com/helixir/scholar-service/internal/resilience"
	"github.com/helixir/scholar-service/internal/scholar"
	httpserver "github.com/helixir/scholar-service/internal/server/http"
	"github.com/helixir/scholar-service/internal/tools"
	"github.com/helixir/scholar-service/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("scholar-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics registry with runtime collectors plus service metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, registry)

	// Circuit breaker for the upstream API, exporting state transitions.
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreaker.RecoveryTimeout,
		HalfOpenMaxCalls: cfg.CircuitBreaker.HalfOpenMaxCalls,
	}, logger)
	breaker.OnStateChange(func(state resilience.CircuitState) {
		metrics.CircuitState.Set(float64(state))
		metrics.CircuitTransitions.WithLabelValues(state.String()).Inc()
	})

	retryPolicy := resilience.NewRetryPolicy(resilience.RetryConfig{
		MaxRetries:      cfg.Retry.MaxRetries,
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxDelay:        cfg.Retry.MaxDelay,
		ExponentialBase: cfg.Retry.ExponentialBase,
		Jitter:          cfg.Retry.Jitter,
	})

	apiClient := scholar.NewClient(scholar.Config{
		GraphBaseURL:           cfg.SemanticScholar.GraphBaseURL,
		RecommendationsBaseURL: cfg.SemanticScholar.RecommendationsBaseURL,
		APIKey:                 cfg.SemanticScholar.APIKey,
		Timeout:                cfg.SemanticScholar.Timeout,
		RateLimit:              cfg.SemanticScholar.RateLimit,
		BurstSize:              cfg.SemanticScholar.RateBurst,
		MaxResponseBytes:       cfg.SemanticScholar.MaxResponseBytes,
	}, retryPolicy, breaker, logger, metrics)

	if cfg.SemanticScholar.APIKey == "" {
		logger.Warn().Msg("no Semantic Scholar API key configured, using public rate limits")
	}

	paperTracker := tracker.NewPaperTracker()
	toolService := tools.NewService(apiClient, paperTracker, logger, metrics)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}
	httpSrv := httpserver.NewServer(httpCfg, toolService, breaker, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("scholar-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down scholar-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("scholar-service shutdown complete")
	return nil
}
