package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// SnapshotStore implements store.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new PostgreSQL-backed snapshot store.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Save stores the snapshot, replacing any previous one for the key.
func (s *SnapshotStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := store.GuardTenant(ctx, snap.TenantID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (tenant_id, aggregate_id, version, state, taken_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, aggregate_id)
		DO UPDATE SET version = EXCLUDED.version,
		              state = EXCLUDED.state,
		              taken_at = EXCLUDED.taken_at
	`, snap.TenantID, snap.AggregateID, snap.Version, snap.State, snap.TakenAt)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// Load returns the current snapshot for the aggregate.
func (s *SnapshotStore) Load(ctx context.Context, tenantID tenant.ID, aggregateID string) (*models.Snapshot, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{TenantID: tenantID, AggregateID: aggregateID}
	err := s.pool.QueryRow(ctx, `
		SELECT version, state, taken_at
		FROM snapshots
		WHERE tenant_id = $1 AND aggregate_id = $2
	`, tenantID, aggregateID).Scan(&snap.Version, &snap.State, &snap.TakenAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, mapPostgresError(err)
	}
	return snap, nil
}

// Delete removes the aggregate's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, tenantID tenant.ID, aggregateID string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM snapshots WHERE tenant_id = $1 AND aggregate_id = $2
	`, tenantID, aggregateID)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}
