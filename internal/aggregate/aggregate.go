// Package aggregate loads aggregate state by replaying its event stream,
// using a snapshot as the starting point when one is available.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/snapshot"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Root is an aggregate that rebuilds its state by folding events in stream
// order.
type Root interface {
	ApplyEvent(evt models.Event) error
}

// Snapshotter is an optional Root capability. Roots implementing it
// participate in snapshotting: state is captured after appends and restored
// on load.
type Snapshotter interface {
	SnapshotState() ([]byte, error)
	RestoreSnapshot(state []byte) error
}

// Loader rehydrates aggregates from the event store, optionally seeded from
// snapshots.
type Loader struct {
	events    store.EventStore
	snapshots *snapshot.Manager
}

// NewLoader creates a loader. The snapshot manager may be nil, in which case
// every load replays the full stream.
func NewLoader(events store.EventStore, snapshots *snapshot.Manager) *Loader {
	return &Loader{events: events, snapshots: snapshots}
}

// Load replays the aggregate's stream into root. It returns the current
// stream version, which callers pass to Append as the expected version, and
// the version of the snapshot the replay was seeded from, zero when the
// stream was replayed from scratch. A missing or corrupt snapshot silently
// degrades to full replay.
func (l *Loader) Load(ctx context.Context, tenantID tenant.ID, aggregateID string, root Root) (version, snapshotVersion int64, err error) {
	if snapshotter, ok := root.(Snapshotter); ok && l.snapshots != nil {
		snap, err := l.snapshots.Load(ctx, tenantID, aggregateID)
		switch {
		case err == nil:
			if err := snapshotter.RestoreSnapshot(snap.State); err != nil {
				return 0, 0, fmt.Errorf("failed to restore snapshot: %w", err)
			}
			version = snap.Version
			snapshotVersion = snap.Version
		case errors.Is(err, store.ErrSnapshotNotFound), errors.Is(err, snapshot.ErrCorrupt):
			// Fall back to full replay.
		default:
			return 0, 0, err
		}
	}

	events, err := l.events.Read(ctx, tenantID, aggregateID, version)
	if err != nil {
		return 0, 0, err
	}

	for _, evt := range events {
		if err := root.ApplyEvent(evt); err != nil {
			return 0, 0, fmt.Errorf("failed to apply event %s at version %d: %w", evt.EventType, evt.Version, err)
		}
		version = evt.Version
	}

	return version, snapshotVersion, nil
}

// Snapshot captures the root's state at version if it implements Snapshotter
// and the manager's policy says one is due. lastVersion is the version of the
// previous snapshot, zero when none exists.
func (l *Loader) Snapshot(ctx context.Context, tenantID tenant.ID, aggregateID string, root Root, lastVersion, version int64) error {
	snapshotter, ok := root.(Snapshotter)
	if !ok || l.snapshots == nil {
		return nil
	}
	if !l.snapshots.Due(lastVersion, version) {
		return nil
	}

	state, err := snapshotter.SnapshotState()
	if err != nil {
		return fmt.Errorf("failed to capture snapshot state: %w", err)
	}
	return l.snapshots.Save(ctx, tenantID, aggregateID, version, state)
}
