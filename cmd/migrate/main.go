// Command migrate manages the Timeout database schema outside server startup.
//
//	migrate up             apply pending SQL migrations
//	migrate auto           auto-migrate the models (refused in production)
//	migrate status         print the schema plan and pending scripts
//	migrate list           print every embedded migration
//	migrate down VERSION   roll back one applied migration
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"

	"timeout/internal/bootstrap"
	"timeout/internal/config"
	"timeout/internal/database"

	"gorm.io/gorm"
)

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":     migrateUp,
	"auto":   migrateAuto,
	"status": migrateStatus,
	"list":   migrateList,
	"down":   migrateDown,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|list|down VERSION>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}
	cmd, ok := commands[strings.ToLower(flag.Arg(0))]
	if !ok {
		return usage()
	}

	bootstrap.LoadEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	return cmd(ctx, db, cfg, flag.Args()[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Println("sql migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = string(database.SchemaModeAuto)
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	log.Println("models auto-migrated")
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("mode=%s env=%s migrations=%t auto_migrate=%t applied=%d pending=%d",
		status.Mode, status.Environment, status.Migrations, status.AutoMigrate,
		len(status.AppliedVersions), len(status.Pending))
	for _, m := range status.Pending {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func migrateList(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	all, err := database.Migrations()
	if err != nil {
		return err
	}
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	for _, m := range all {
		mark := " "
		if slices.Contains(status.AppliedVersions, m.Version) {
			mark = "x"
		}
		log.Printf("[%s] %s", mark, m.String())
	}
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate down VERSION")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	m, err := database.MigrationByVersion(version)
	if err != nil {
		return err
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back %s", m.String())
	return nil
}
