package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/arena-backend/internal/bootstrap"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
)

func main() {
	bootstrap.Main("outbox-relay", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config.Outbox
	relay, err := NewRelay(RelayParams{
		Logger:       rt.Logger,
		DB:           rt.DB,
		Repository:   outbox.NewRepository(),
		Publisher:    rt.Redis,
		Metrics:      metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Stream:       rt.Redis.StreamKey(cfg.Stream),
		StreamMaxLen: cfg.StreamMaxLen,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox relay: %w", err)
	}

	ctx = rt.Logger.WithField(ctx, "stream", cfg.Stream)
	metrics.Serve(ctx, rt.Config.App.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)
	rt.Logger.Info(ctx, "outbox-relay.started")
	return relay.Run(ctx)
}
