package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/foundation/cmd/foundation/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Migrate           commands.MigrateCmd           `cmd:"" help:"Run database migrations"`
		SeedTenant        commands.SeedTenantCmd        `cmd:"" help:"Provision a tenant and its default roles"`
		RebuildProjection commands.RebuildProjectionCmd `cmd:"" help:"Rebuild a projection read model from the event log"`
		PruneSnapshot     commands.PruneSnapshotCmd     `cmd:"" help:"Delete an aggregate snapshot"`
		Debug             bool                          `help:"Enable debug mode."`
		Version           kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
