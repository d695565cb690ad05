package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type snapshotKey struct {
	tenantID    tenant.ID
	aggregateID string
}

// SnapshotStore implements store.SnapshotStore using in-memory storage.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]*models.Snapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[snapshotKey]*models.Snapshot),
	}
}

// Save stores the snapshot, replacing any previous one for the key.
func (s *SnapshotStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := store.GuardTenant(ctx, snap.TenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *snap
	clone.State = append([]byte(nil), snap.State...)
	s.snapshots[snapshotKey{tenantID: snap.TenantID, aggregateID: snap.AggregateID}] = &clone
	return nil
}

// Load returns the current snapshot for the aggregate.
func (s *SnapshotStore) Load(ctx context.Context, tenantID tenant.ID, aggregateID string) (*models.Snapshot, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapshotKey{tenantID: tenantID, aggregateID: aggregateID}]
	if !ok {
		return nil, store.ErrSnapshotNotFound
	}

	clone := *snap
	clone.State = append([]byte(nil), snap.State...)
	return &clone, nil
}

// Delete removes the aggregate's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, tenantID tenant.ID, aggregateID string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, snapshotKey{tenantID: tenantID, aggregateID: aggregateID})
	return nil
}
