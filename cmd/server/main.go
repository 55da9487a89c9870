package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	alerthandler "finreg/internal/alert/handler"
	alertmetrics "finreg/internal/alert/metrics"
	"finreg/internal/alert/publisher"
	alertservice "finreg/internal/alert/service"
	"finreg/internal/audit"
	audithandler "finreg/internal/audit/handler"
	entityhandler "finreg/internal/entity/handler"
	entitymetrics "finreg/internal/entity/metrics"
	entityservice "finreg/internal/entity/service"
	"finreg/internal/platform/config"
	"finreg/internal/platform/httpserver"
	"finreg/internal/platform/logger"
	platformmetrics "finreg/internal/platform/metrics"
	platformredis "finreg/internal/platform/redis"
	"finreg/internal/report"
	reporthandler "finreg/internal/report/handler"
	httptransport "finreg/internal/transport/http"
	violationhandler "finreg/internal/violation/handler"
	violationmetrics "finreg/internal/violation/metrics"
	violationservice "finreg/internal/violation/service"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openBackends(cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	auditLog := audit.NewLog(stores.trail,
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics()))

	alertOpts := []alertservice.Option{
		alertservice.WithStoreTx(stores.runner),
		alertservice.WithLogger(log),
		alertservice.WithMetrics(alertmetrics.New()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		notifier, err := publisher.New(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			publisher.WithLogger(log),
			publisher.WithMetrics(publisher.NewMetrics()))
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer notifier.Close()
		go func() {
			if err := notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("alert publisher stopped", slog.String("error", err.Error()))
			}
		}()
		alertOpts = append(alertOpts, alertservice.WithNotifier(notifier))
		log.Info("alert notifications enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	alertSvc := alertservice.New(stores.alerts, stores.entities, stores.violations, auditLog, alertOpts...)
	entitySvc := entityservice.New(stores.entities, stores.violations, auditLog, alertSvc,
		entityservice.WithStoreTx(stores.runner),
		entityservice.WithLogger(log),
		entityservice.WithMetrics(entitymetrics.New()))
	violationSvc := violationservice.New(stores.violations, entitySvc, auditLog, alertSvc,
		violationservice.WithStoreTx(stores.runner),
		violationservice.WithLogger(log),
		violationservice.WithMetrics(violationmetrics.New()))

	reportOpts := []report.Option{
		report.WithLogger(log),
		report.WithMetrics(report.NewMetrics()),
	}
	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
		reportOpts = append(reportOpts, report.WithCache(report.NewRedisCache(cache.Client)))
		log.Info("report cache enabled")
	}
	reportSvc := report.New(stores.entities, stores.violations, stores.alerts, reportOpts...)

	router := httptransport.NewRouter(httptransport.Handlers{
		Entities:   entityhandler.New(entitySvc, log),
		Violations: violationhandler.New(violationSvc, log),
		Alerts:     alerthandler.New(alertSvc, log),
		Audit:      audithandler.New(auditLog, log),
		Reports:    reporthandler.New(reportSvc, log),
	}, httptransport.Options{
		Logger:         log,
		Metrics:        platformmetrics.New(),
		RequestTimeout: cfg.Server.WriteTimeout,
		Ready:          stores.Ready,
	})

	srv := httpserver.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting finreg server", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	stop()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
