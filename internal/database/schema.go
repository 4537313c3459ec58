package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"timeout/internal/config"
	"timeout/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMode is DB_SCHEMA_MODE: how startup brings the schema up to date.
type SchemaMode string

const (
	// SchemaModeHybrid applies the SQL migrations, then outside production
	// lets AutoMigrate add whatever the models gained since the last script.
	SchemaModeHybrid SchemaMode = "hybrid"
	// SchemaModeSQL applies only the versioned SQL migrations.
	SchemaModeSQL SchemaMode = "sql"
	// SchemaModeAuto derives the schema from the models. Development only.
	SchemaModeAuto SchemaMode = "auto"
)

// SchemaPlan is what ApplySchema does for one configuration.
type SchemaPlan struct {
	Mode        SchemaMode
	Migrations  bool
	AutoMigrate bool
}

// SchemaStatus is a plan plus where the migration log stands.
type SchemaStatus struct {
	SchemaPlan
	Environment     string
	AppliedVersions []int
	Pending         []Migration
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. Production
// never runs AutoMigrate: calendar and message tables there only change
// through reviewed scripts.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := SchemaMode(strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode}

	switch mode {
	case SchemaModeSQL:
		plan.Migrations = true
	case SchemaModeAuto:
		if cfg.IsProduction() {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q; use sql", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.Migrations = true
		plan.AutoMigrate = !cfg.IsProduction()
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

// ApplySchema carries out the plan for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.Migrations {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.AutoMigrate {
		middleware.Logger.Info("auto-migrating models", slog.String("mode", string(plan.Mode)), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan and, when migrations are part of it, which
// embedded scripts have not been applied yet.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Environment: cfg.Env}
	if !plan.Migrations {
		return status, nil
	}

	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	if status.AppliedVersions, err = appliedVersions(ctx, db); err != nil {
		return nil, err
	}
	if status.Pending, err = pendingMigrations(status.AppliedVersions, all); err != nil {
		return nil, err
	}
	return status, nil
}
