package store

import (
	"context"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// EventStore is the append-only, tenant-partitioned event log and the
// system's sole source of truth. Implementations must guarantee:
//
//   - Append is atomic: all events are committed or none are.
//   - Version is strictly increasing per (tenant, aggregate) with no gaps,
//     enforced via the expectedVersion check.
//   - Read and ReadAll return events in ascending order and never cross the
//     tenant boundary.
type EventStore interface {
	// Append commits events to the (tenantID, aggregateID) stream. The first
	// event of a new stream is appended with expectedVersion 0. Returns the
	// new stream version, or ErrConcurrencyConflict if the stored version
	// does not equal expectedVersion.
	Append(ctx context.Context, tenantID tenant.ID, aggregateType, aggregateID string, expectedVersion int64, events []models.NewEvent) (int64, error)

	// Read returns the stream's events with Version > fromVersion in
	// ascending version order. fromVersion 0 reads the whole stream.
	Read(ctx context.Context, tenantID tenant.ID, aggregateID string, fromVersion int64) ([]models.Event, error)

	// ReadAll returns up to limit events across all of the tenant's
	// aggregates with Position > fromPosition, in commit order. Used by the
	// projection manager; restartable from any position.
	ReadAll(ctx context.Context, tenantID tenant.ID, fromPosition int64, limit int) ([]models.Event, error)
}

// EventSink receives committed events for secondary destinations (analytics,
// brokers). Sinks are strictly derived and best-effort: a failing sink is
// logged and counted but never blocks or fails the primary append.
type EventSink interface {
	Publish(ctx context.Context, events []models.Event) error
}
