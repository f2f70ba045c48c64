package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/orbitalflow/engine/common/cache"
	"github.com/orbitalflow/engine/common/config"
	"github.com/orbitalflow/engine/common/db"
	"github.com/orbitalflow/engine/common/logger"
	"github.com/orbitalflow/engine/common/redis"
	"github.com/orbitalflow/engine/common/telemetry"
)

// Components holds all initialized service dependencies shared by the
// engine's HTTP/WS binary and any worker processes built on top of it.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Redis     *redis.Client
	Cache     cache.Cache
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components.
// Should be called with defer after Setup().
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components.
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	if c.Redis != nil {
		if _, err := c.Redis.GetUnderlying().Ping(ctx).Result(); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// addCleanup registers a cleanup function.
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// redisLoggerAdapter bridges *logger.Logger to common/redis.Logger.
type redisLoggerAdapter struct{ log *logger.Logger }

func (a redisLoggerAdapter) Info(msg string, kv ...interface{})  { a.log.Info(msg, kv...) }
func (a redisLoggerAdapter) Error(msg string, kv ...interface{}) { a.log.Error(msg, kv...) }
func (a redisLoggerAdapter) Warn(msg string, kv ...interface{})  { a.log.Warn(msg, kv...) }
func (a redisLoggerAdapter) Debug(msg string, kv ...interface{}) { a.log.Debug(msg, kv...) }

func newRedisClient(cfg *config.Config, log *logger.Logger) *redis.Client {
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Cache.RedisAddr})
	return redis.NewClient(rdb, redisLoggerAdapter{log: log})
}
