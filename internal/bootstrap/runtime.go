// Package bootstrap wires the database and Redis connections a process needs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cookiegram/internal/cache"
	"cookiegram/internal/config"
	"cookiegram/internal/database"
	"cookiegram/internal/middleware"
	"cookiegram/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs migrations according to DB_SCHEMA_MODE.
	ApplySchema bool
	// SeedDevFixture applies cfg.DevSeedFixture when running in development.
	SeedDevFixture bool
}

// InitRuntime connects to DB and Redis and optionally applies the schema and dev fixture.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("schema apply failed: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDevFixture {
		if err := seedDevFixture(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed development fixture: %w", err)
		}
	}

	return db, r, nil
}

func seedDevFixture(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.DevSeedFixture == "" {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		middleware.Logger.Warn("DEV_SEED_FIXTURE ignored outside development", slog.String("env", cfg.Env))
		return nil
	}

	fx, err := seed.LoadFixtureFile(cfg.DevSeedFixture)
	if err != nil {
		return err
	}
	return seed.NewSeeder(db, seed.Options{}).ApplyFixture(fx)
}
