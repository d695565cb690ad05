package commands

import (
	"context"

	"github.com/wolfeidau/foundation/internal/logger"
	"github.com/wolfeidau/foundation/internal/store/postgres"
)

type MigrateCmd struct {
	Config string `help:"Path to config file" default:"foundation.yaml"`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := loadConfig(m.Config)
	if err != nil {
		return err
	}

	// Migrations run explicitly here, not on connect.
	cfg.Postgres.AutoMigrate = false

	pool, err := postgres.NewPool(ctx, &cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	log.Info().Msg("Migrations complete")
	return nil
}
