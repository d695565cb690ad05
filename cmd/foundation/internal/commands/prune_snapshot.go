package commands

import (
	"context"

	"github.com/wolfeidau/foundation/internal/logger"
	"github.com/wolfeidau/foundation/internal/snapshot"
	"github.com/wolfeidau/foundation/internal/store/postgres"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type PruneSnapshotCmd struct {
	Config    string `help:"Path to config file" default:"foundation.yaml"`
	Tenant    string `help:"Tenant identifier" required:""`
	Aggregate string `help:"Aggregate identifier" required:""`
}

func (p *PruneSnapshotCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	tenantID, err := tenant.Parse(p.Tenant)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(p.Config)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, &cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := snapshot.NewManager(postgres.NewSnapshotStore(pool), snapshot.Config{})
	if err != nil {
		return err
	}

	ctx = tenant.WithContext(ctx, tenantID)

	if err := manager.Delete(ctx, tenantID, p.Aggregate); err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("aggregate_id", p.Aggregate).
		Msg("Snapshot pruned")
	return nil
}
