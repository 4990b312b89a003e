package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/arena-backend/internal/bootstrap"
	"github.com/angelmondragon/arena-backend/internal/cron"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config

	core, err := bootstrap.Build(bootstrap.Options{
		Config:     cfg,
		DB:         rt.DB,
		Logger:     rt.Logger,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	expiry, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:     rt.Logger,
		Expirer:    core.Payments,
		StaleAfter: cfg.Cron.ReservationStaleAt,
	})
	if err != nil {
		return fmt.Errorf("reservation expiry job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     rt.Logger,
		DB:         rt.DB,
		Repository: outbox.NewRepository(),
		Retention:  cfg.Outbox.Retention,
		BatchSize:  cfg.Outbox.PruneBatch,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}

	registry, err := cron.NewRegistry(expiry, retention)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     rt.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = rt.Logger.WithField(ctx, "interval", cfg.Cron.Interval.String())
	metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)
	rt.Logger.Info(ctx, "cron-worker.started")
	return service.Run(ctx)
}

// lockName scopes the scheduler lock per environment so staging and
// production workers sharing a Redis do not exclude each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
