package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/mosaicops/cmsgate/pkg/api"
	"github.com/mosaicops/cmsgate/pkg/audit"
	"github.com/mosaicops/cmsgate/pkg/config"
	"github.com/mosaicops/cmsgate/pkg/observability"
	"github.com/mosaicops/cmsgate/pkg/trail"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Upstream client stack.
	client := upstream.NewClient(cfg.Upstream, logger, metrics)
	dispatcher := upstream.NewDispatcher(client, logger, metrics)
	writer := upstream.NewWriter(dispatcher, logger, metrics)
	lister := upstream.NewLister(dispatcher, metrics, cfg.Upstream.PageSize, cfg.Upstream.MaxPages)
	resolver := upstream.NewResolver(dispatcher, logger, metrics)
	publisher := upstream.NewPublisher(dispatcher, logger, metrics)

	var trailLog trail.Logger = trail.NopLogger{}
	if cfg.Audit.TrailPath != "" {
		fileTrail, err := trail.NewFileLogger(cfg.Audit.TrailPath)
		if err != nil {
			logger.WithError(err).Error("Failed to open write trail")
			os.Exit(1)
		}
		defer fileTrail.Close()
		trailLog = fileTrail
	}

	engine := audit.NewEngine(resolver, lister, writer, publisher, trailLog, logger, metrics, cfg.Audit)

	server := api.NewServer(engine, resolver, lister, writer, publisher, dispatcher, trailLog, logger, metrics, *cfg)

	// Health and metrics on a separate port for probes.
	healthChecker := observability.NewHealthChecker(client)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health/live", healthChecker.Liveness)
	healthMux.HandleFunc("/health/ready", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.Infof("Health server listening on :%s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	// Scheduled site-wide audits.
	var scheduler *cron.Cron
	if cfg.Server.AuditSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Server.AuditSchedule, func() {
			defer observability.RecoverPanic(logger, "scheduled audit")
			logger.Info("Starting scheduled site-wide audit")
			report, err := engine.Run(context.Background(), audit.Options{
				ScanSiteWide: true,
				RunSmokeTest: true,
			})
			if err != nil {
				logger.WithError(err).Error("Scheduled audit failed")
				return
			}
			logger.WithFields(map[string]interface{}{
				"collections": report.Totals.Collections,
				"items":       report.Totals.Items,
				"failed":      report.Totals.Failed,
			}).Info("Scheduled audit finished")
		})
		if err != nil {
			logger.WithError(err).Error("Failed to schedule audits")
			os.Exit(1)
		}
		scheduler.Start()
		logger.Infof("Scheduled audits enabled: %s", cfg.Server.AuditSchedule)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		logger.Infof("Gateway listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Health server shutdown failed")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("OpenTelemetry shutdown failed")
	}
	logger.Info("Shutdown complete")
}
