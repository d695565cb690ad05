package store

import (
	"context"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// SnapshotStore persists at most one current snapshot per
// (tenant, aggregate). Save replaces any older snapshot for the key.
// Snapshots are safe to delete at any time; loads fall back to full replay.
type SnapshotStore interface {
	// Save stores the snapshot, replacing an existing one for the same key.
	Save(ctx context.Context, snap *models.Snapshot) error

	// Load returns the current snapshot for the aggregate, or
	// ErrSnapshotNotFound.
	Load(ctx context.Context, tenantID tenant.ID, aggregateID string) (*models.Snapshot, error)

	// Delete removes the aggregate's snapshot. Deleting a missing snapshot
	// is not an error.
	Delete(ctx context.Context, tenantID tenant.ID, aggregateID string) error
}
