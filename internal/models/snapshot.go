package models

import (
	"time"

	"github.com/wolfeidau/foundation/internal/tenant"
)

// Snapshot captures aggregate state at a known version so loads can skip
// replaying the full stream. Snapshots are an optimization, never
// authoritative: deleting one only costs replay time.
type Snapshot struct {
	TenantID    tenant.ID
	AggregateID string
	// Version is the stream version the state reflects.
	Version int64
	// State is the encoded aggregate state. Encoding (compression, checksum)
	// is the snapshot manager's concern; stores treat it as opaque bytes.
	State   []byte
	TakenAt time.Time
}

// Checkpoint is the durable cursor marking the last event position a
// projection has processed for one tenant.
type Checkpoint struct {
	ProjectionName string
	TenantID       tenant.ID
	Position       int64
}
