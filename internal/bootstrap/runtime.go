package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/arena-backend/pkg/config"
	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/migrate"
	"github.com/angelmondragon/arena-backend/pkg/redis"
)

// Runtime is the process plumbing every binary starts from.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
}

// Start loads .env and configuration, opens the database (running dev
// migrations when enabled) and connects to Redis. On error everything opened
// so far is closed again.
func Start(ctx context.Context, service string) (rt *Runtime, err error) {
	rt = &Runtime{Service: service, Logger: logger.New(logger.Options{ServiceName: service})}
	if loadErr := godotenv.Load(); loadErr != nil {
		rt.Logger.Warn(ctx, "bootstrap.no_dotenv")
	}

	if rt.Config, err = config.Load(); err != nil {
		return rt, fmt.Errorf("load config: %w", err)
	}
	rt.Logger = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(rt.Config.App.LogLevel),
		WarnStack:   rt.Config.App.LogWarnStack,
	})

	defer func() {
		if err != nil {
			err = multierr.Append(err, rt.Close())
		}
	}()
	if rt.DB, err = db.New(ctx, rt.Config.DB, rt.Config.FeatureFlags.UseSQLite, rt.Logger); err != nil {
		return rt, fmt.Errorf("open database: %w", err)
	}
	if err = migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, rt.DB); err != nil {
		return rt, fmt.Errorf("dev migrations: %w", err)
	}
	if rt.Redis, err = redis.New(ctx, rt.Config.Redis, rt.Logger); err != nil {
		return rt, fmt.Errorf("connect redis: %w", err)
	}
	return rt, nil
}

// Close releases the Redis and database connections that were opened.
func (rt *Runtime) Close() error {
	var err error
	if rt.Redis != nil {
		err = multierr.Append(err, rt.Redis.Close())
	}
	if rt.DB != nil {
		err = multierr.Append(err, rt.DB.Close())
	}
	return err
}

// Main runs fn under a context cancelled by SIGINT or SIGTERM and exits the
// process with status 1 when startup or fn fails. Cancellation is a clean
// shutdown.
func Main(service string, fn func(ctx context.Context, rt *Runtime) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rt, err := Start(ctx, service)
	if err == nil {
		ctx = rt.Logger.WithFields(ctx, map[string]any{"env": rt.Config.App.Env})
		err = fn(ctx, rt)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		err = multierr.Append(err, rt.Close())
	}
	stop()

	if err != nil {
		rt.Logger.Error(context.Background(), service+".failed", err)
		os.Exit(1)
	}
	rt.Logger.Info(context.Background(), service+".stopped")
}
