package commands

import (
	"context"

	"github.com/wolfeidau/foundation/internal/aggregate"
	"github.com/wolfeidau/foundation/internal/audit"
	"github.com/wolfeidau/foundation/internal/auth"
	"github.com/wolfeidau/foundation/internal/bus"
	"github.com/wolfeidau/foundation/internal/logger"
	"github.com/wolfeidau/foundation/internal/platform"
	"github.com/wolfeidau/foundation/internal/snapshot"
	"github.com/wolfeidau/foundation/internal/store/postgres"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type SeedTenantCmd struct {
	Config    string `help:"Path to config file" default:"foundation.yaml"`
	Tenant    string `help:"Tenant identifier" required:""`
	Name      string `help:"Tenant display name" required:""`
	Principal string `help:"Operator principal to grant super-admin" required:""`
}

func (s *SeedTenantCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	tenantID, err := tenant.Parse(s.Tenant)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(s.Config)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, &cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := postgres.NewEventStore(pool)
	roles := postgres.NewRoleStore(pool)
	snapshots := postgres.NewSnapshotStore(pool)

	recorder := audit.NewLog(log, 64)
	defer recorder.Stop()

	// Bootstrap: the operator needs a grant before the command bus will
	// accept the create, and the grant needs the role catalog in place.
	ctx = tenant.WithContext(ctx, tenantID)
	for _, role := range auth.DefaultRoles() {
		if err := roles.UpsertRole(ctx, tenantID, &role); err != nil {
			return err
		}
	}
	if err := roles.AssignRole(ctx, tenantID, s.Principal, auth.RoleSuperAdmin); err != nil {
		return err
	}

	snapManager, err := snapshot.NewManager(snapshots, snapshot.Config{})
	if err != nil {
		return err
	}
	loader := aggregate.NewLoader(events, snapManager)

	resolver := auth.NewResolver(roles, recorder, auth.ResolverConfig{})
	commandBus := bus.NewCommandBus(resolver, recorder, nil, bus.CommandBusConfig{})

	handlers := platform.NewTenantCommands(loader, events, roles)
	if err := handlers.Register(commandBus); err != nil {
		return err
	}

	ctx = auth.WithPrincipal(ctx, &auth.Principal{PrincipalID: s.Principal, TenantID: tenantID})

	result, err := commandBus.Dispatch(ctx, platform.CreateTenant{
		Tenant: tenantID,
		Name:   s.Name,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Int64("version", result.NewVersion).
		Msg("Tenant seeded")
	return nil
}
