// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for the gateway.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("collection", id).Info("audit started")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveUpstreamRequest("GET", "2.0.0", 200, elapsed)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(upstreamClient)
//	mux.HandleFunc("/health/ready", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request logging and metrics middleware
package observability
