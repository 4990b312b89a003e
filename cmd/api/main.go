package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/arena-backend/api/routes"
	"github.com/angelmondragon/arena-backend/internal/bootstrap"
	"github.com/angelmondragon/arena-backend/pkg/env"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	core, err := bootstrap.Build(bootstrap.Options{
		Config:     rt.Config,
		DB:         rt.DB,
		Logger:     rt.Logger,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// PORT and DYNO are set by the hosting platform.
	addr := ":" + env.Get("PORT", rt.Config.App.Port)
	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"addr":     addr,
		"instance": env.Get("DYNO", "local"),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   rt.Config,
			Logger:   rt.Logger,
			Core:     core,
			DB:       rt.DB,
			Redis:    rt.Redis,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info(ctx, "api.listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
