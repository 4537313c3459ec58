// Package bootstrap holds the runtime initialization shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"timeout/internal/cache"
	"timeout/internal/config"
	"timeout/internal/database"
	"timeout/internal/middleware"
	"timeout/internal/seed"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ScenarioPath, when set and the database has no users yet, loads a
	// seed scenario after the schema is in place. Ignored in production.
	ScenarioPath string
}

// LoadEnv reads .env files into the process environment before config is
// loaded. Missing files are fine.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			middleware.Logger.Info("loaded environment file", "file", f)
		}
	}
}

// InitRuntime connects to DB and Redis and optionally applies a seed scenario.
// The redis client is nil when redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(ctx, cfg.RedisURL)
	r := cache.GetClient()

	if opts.ScenarioPath != "" && !cfg.IsProduction() {
		if err := applyScenarioOnce(ctx, db, cache.ClientStore(r), opts.ScenarioPath); err != nil {
			return nil, nil, fmt.Errorf("failed to apply seed scenario: %w", err)
		}
	}

	return db, r, nil
}

func applyScenarioOnce(ctx context.Context, db *gorm.DB, store *cache.Store, path string) error {
	var users int64
	if err := db.WithContext(ctx).Table("users").Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}
	sc, err := seed.LoadScenario(path)
	if err != nil {
		return err
	}
	_, err = seed.ApplyScenario(ctx, db, sc, seed.Options{Cache: store})
	return err
}
