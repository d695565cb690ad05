package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/foundation/internal/logger"
	"github.com/wolfeidau/foundation/internal/platform"
	"github.com/wolfeidau/foundation/internal/projection"
	"github.com/wolfeidau/foundation/internal/store/postgres"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type RebuildProjectionCmd struct {
	Config     string `help:"Path to config file" default:"foundation.yaml"`
	Tenant     string `help:"Tenant identifier" required:""`
	Projection string `help:"Projection name" required:""`
}

func (r *RebuildProjectionCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	tenantID, err := tenant.Parse(r.Tenant)
	if err != nil {
		return err
	}

	proj, err := lookupProjection(r.Projection)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(r.Config)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, &cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := postgres.NewEventStore(pool)
	readModels := postgres.NewProjectionStore(pool)

	ctx = tenant.WithContext(ctx, tenantID)

	manager := projection.NewManager(events, readModels, projection.Config{})
	if err := manager.Rebuild(ctx, proj, tenantID); err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("projection", r.Projection).
		Msg("Projection rebuilt")
	return nil
}

// lookupProjection maps a projection name to its implementation. Grows as
// projections are added.
func lookupProjection(name string) (projection.Projection, error) {
	switch name {
	case platform.DirectoryProjectionName:
		return platform.DirectoryProjection{}, nil
	default:
		return nil, fmt.Errorf("unknown projection %s", name)
	}
}
