//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &PoolConfig{
		ConnString:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		AutoMigrate: true,
	}

	pool, err := NewPool(ctx, cfg)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestIntegration_EventStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	events := NewEventStore(pool)

	t.Run("append and read", func(t *testing.T) {
		version, err := events.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed", Payload: []byte(`{"sku":"a"}`)},
			{EventType: "order.paid", Payload: []byte(`{}`)},
		})
		require.NoError(t, err)
		require.Equal(t, int64(2), version)

		stream, err := events.Read(ctx, "acme", "order-1", 0)
		require.NoError(t, err)
		require.Len(t, stream, 2)
		require.Equal(t, int64(1), stream[0].Version)
		require.Equal(t, "order.placed", stream[0].EventType)
	})

	t.Run("stale expected version conflicts", func(t *testing.T) {
		_, err := events.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.cancelled", Payload: []byte(`{}`)},
		})
		require.ErrorIs(t, err, store.ErrConcurrencyConflict)
	})

	t.Run("read all returns tenant commit order", func(t *testing.T) {
		_, err := events.Append(ctx, "acme", "invoice", "invoice-1", 0, []models.NewEvent{
			{EventType: "invoice.raised", Payload: []byte(`{}`)},
		})
		require.NoError(t, err)

		all, err := events.ReadAll(ctx, "acme", 0, 10)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, evt := range all {
			require.Equal(t, int64(i+1), evt.Position)
		}
	})

	t.Run("tenants do not share streams", func(t *testing.T) {
		stream, err := events.Read(ctx, "globex", "order-1", 0)
		require.NoError(t, err)
		require.Empty(t, stream)
	})
}

func TestIntegration_ProjectionStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	readModels := NewProjectionStore(pool)

	t.Run("apply batch and read back", func(t *testing.T) {
		err := readModels.ApplyBatch(ctx, "acme", "directory", false, []store.DocumentPut{
			{Key: "tenant/acme", Value: []byte(`{"status":"active"}`)},
		}, 1)
		require.NoError(t, err)

		value, err := readModels.Get(ctx, "acme", "directory", "tenant/acme")
		require.NoError(t, err)
		require.JSONEq(t, `{"status":"active"}`, string(value))

		position, err := readModels.Checkpoint(ctx, "acme", "directory")
		require.NoError(t, err)
		require.Equal(t, int64(1), position)
	})

	t.Run("rebuild swaps generations", func(t *testing.T) {
		require.NoError(t, readModels.BeginRebuild(ctx, "acme", "directory"))
		require.NoError(t, readModels.ApplyBatch(ctx, "acme", "directory", true, []store.DocumentPut{
			{Key: "tenant/acme", Value: []byte(`{"status":"suspended"}`)},
		}, 1))

		// Live still serves the old value until promotion.
		value, err := readModels.Get(ctx, "acme", "directory", "tenant/acme")
		require.NoError(t, err)
		require.JSONEq(t, `{"status":"active"}`, string(value))

		require.NoError(t, readModels.CompleteRebuild(ctx, "acme", "directory"))

		value, err = readModels.Get(ctx, "acme", "directory", "tenant/acme")
		require.NoError(t, err)
		require.JSONEq(t, `{"status":"suspended"}`, string(value))
	})
}

func TestIntegration_RoleStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	roles := NewRoleStore(pool)

	t.Run("upsert assign and resolve", func(t *testing.T) {
		err := roles.UpsertRole(ctx, "acme", &models.Role{
			Name:        "editor",
			Permissions: []models.Permission{{Resource: "documents", Action: "update"}},
		})
		require.NoError(t, err)

		require.NoError(t, roles.AssignRole(ctx, "acme", "user-1", "editor"))

		held, err := roles.RolesFor(ctx, "acme", "user-1")
		require.NoError(t, err)
		require.Len(t, held, 1)
		require.Equal(t, "editor", held[0].Name)
	})

	t.Run("assigning unknown role fails", func(t *testing.T) {
		err := roles.AssignRole(ctx, "acme", "user-1", "missing")
		require.ErrorIs(t, err, store.ErrRoleNotFound)
	})

	t.Run("delete role cascades assignments", func(t *testing.T) {
		require.NoError(t, roles.DeleteRole(ctx, "acme", "editor"))

		held, err := roles.RolesFor(ctx, "acme", "user-1")
		require.NoError(t, err)
		require.Empty(t, held)
	})
}

func TestIntegration_SnapshotStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	snapshots := NewSnapshotStore(pool)

	err := snapshots.Save(ctx, &models.Snapshot{
		TenantID:    "acme",
		AggregateID: "order-1",
		Version:     10,
		State:       []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	// Upsert replaces the previous row.
	err = snapshots.Save(ctx, &models.Snapshot{
		TenantID:    "acme",
		AggregateID: "order-1",
		Version:     20,
		State:       []byte{0x03},
	})
	require.NoError(t, err)

	snap, err := snapshots.Load(ctx, "acme", "order-1")
	require.NoError(t, err)
	require.Equal(t, int64(20), snap.Version)

	require.NoError(t, snapshots.Delete(ctx, "acme", "order-1"))
	_, err = snapshots.Load(ctx, "acme", "order-1")
	require.ErrorIs(t, err, store.ErrSnapshotNotFound)
}
