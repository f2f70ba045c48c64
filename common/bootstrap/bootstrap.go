// Package bootstrap wires together the ambient components every engine
// binary needs (config, logger, db, redis, cache, telemetry). There is no
// queue step here: node dispatch is in-process (internal/engine) rather
// than choreographed over a broker, so there is nothing left to queue.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/orbitalflow/engine/common/cache"
	"github.com/orbitalflow/engine/common/config"
	"github.com/orbitalflow/engine/common/db"
	"github.com/orbitalflow/engine/common/logger"
	"github.com/orbitalflow/engine/common/telemetry"
)

// Setup initializes all ambient service components. This is the entry
// point every cmd/ binary calls before wiring its internal/ components.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	needRedis := !options.skipRedis && (components.Config.Cache.Backend == "redis" || components.Config.Features.EnableDistributedCache)
	if needRedis {
		components.Logger.Info("connecting to redis", "addr", components.Config.Cache.RedisAddr)
		components.Redis = newRedisClient(components.Config, components.Logger)
		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.GetUnderlying().Close()
		})
	}

	if !options.skipCache && components.Config.Cache.Enabled {
		components.Logger.Info("initializing cache", "backend", components.Config.Cache.Backend)
		switch components.Config.Cache.Backend {
		case "redis":
			if components.Redis == nil {
				return nil, fmt.Errorf("redis cache backend requested but redis client was skipped")
			}
			components.Cache = cache.NewRedisCache(components.Redis)
		default:
			components.Cache = cache.NewMemoryCache(components.Logger)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Config.Telemetry.MetricsPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
