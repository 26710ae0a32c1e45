package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/db"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|up-to|down-to|redo|reset")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=up-to|down-to")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env":            cfg.App.Env,
		"cmd":            *cmd,
		"storage_driver": cfg.Storage.Driver,
	})

	var args []string
	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
	case "up-to", "down-to":
		if *version == "" {
			fmt.Fprintf(os.Stderr, "missing -version for %s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	var dbClient *db.Client
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dbClient, err = db.New(ctx, cfg.DB, logg)
	case config.StorageSQLite:
		dbClient, err = db.NewSQLite(ctx, cfg.Storage.SQLitePath, logg)
	default:
		fmt.Fprintf(os.Stderr, "storage driver %q has no schema to migrate\n", cfg.Storage.Driver)
		os.Exit(1)
	}
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	if err := migrate.Run(ctx, sqlDB, dbClient.Dialect(), *cmd, args...); err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate complete")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
