// Package main provides the entry point for the evidence search HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/helixir/evidence-search-service/internal/config"
	"github.com/helixir/evidence-search-service/internal/evidence"
	"github.com/helixir/evidence-search-service/internal/observability"
	httpserver "github.com/helixir/evidence-search-service/internal/server/http"
)

// healthServiceName is the service name reported by the gRPC health check.
const healthServiceName = "evidence.v1.EvidenceSearchService"

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
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("evidence-search-service server starting")

	for _, warning := range evidence.EnvironmentWarnings(cfg) {
		logger.Warn().Msg(warning)
	}

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	// Wire the search pipeline.
	components := evidence.NewFromConfig(cfg, logger, metrics)

	// gRPC only carries the standard health service.
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           1 * time.Minute,
		}),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)

	grpcAddr := cfg.Server.GRPCAddress()
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.CORS.Origins(),
		RequestTimeout:  cfg.Pipeline.RequestTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, components.Service, logger, httpserver.WithMetrics(metrics))

	// Serve Prometheus metrics on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 3)

	go func() {
		logger.Info().
			Str("address", grpcAddr).
			Msg("gRPC health server starting")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Strs("allowed_origins", httpCfg.AllowedOrigins).
			Msg("HTTP API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("grpc_address", grpcAddr).
		Str("http_address", httpCfg.Address).
		Int("enabled_sources", len(components.Registry.EnabledSources())).
		Bool("summaries", components.Summarizer.Enabled())
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("evidence-search-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down evidence-search-service")
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("gRPC server forced shutdown due to timeout")
		grpcServer.Stop()
	}

	logger.Info().Msg("evidence-search-service shutdown complete")
	return nil
}
