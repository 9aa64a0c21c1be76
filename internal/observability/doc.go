// Package observability provides logging and metrics support for the
// evidence search service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//
// Attach request identifiers carried by a context:
//
//	logger = observability.WithRequestContext(ctx, logger)
//
// # Metrics
//
// Each Metrics value owns a Prometheus registry. It satisfies the recorder
// interfaces of the pipeline packages and is passed to them directly:
//
//	metrics := observability.NewMetrics("evidence")
//	registry := papersources.NewRegistry(logger, papersources.WithMetrics(metrics))
//	mux.Handle("/metrics", metrics.Handler())
package observability
