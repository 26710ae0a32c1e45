package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/db"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

// MaybeRun applies pending migrations at boot when the storage is SQL backed and either the
// app runs in dev with auto-migrate on, or the driver is sqlite (single node, no migrate job).
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil {
		return nil
	}
	sqlite := cfg.Storage.Driver == config.StorageSQLite
	if !sqlite && !(cfg.App.IsDev() && cfg.App.AutoMigrate) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "running goose migrations at boot")

	if err := Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
