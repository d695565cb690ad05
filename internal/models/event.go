package models

import (
	"time"

	"github.com/wolfeidau/foundation/internal/tenant"
)

// EventMetadata carries tracing context recorded alongside every event.
type EventMetadata struct {
	// Timestamp is when the event was recorded. Assigned by the store on
	// append when zero.
	Timestamp time.Time
	// CorrelationID links all events produced by one logical operation.
	CorrelationID string
	// CausationID identifies the event or command that directly caused this one.
	CausationID string
}

// Event is an immutable record in a tenant's event log. Events are never
// updated or deleted once appended.
type Event struct {
	// EventID is globally unique. Assigned by the store on append.
	EventID string
	// TenantID scopes the event; no read path ever crosses this boundary.
	TenantID tenant.ID
	// AggregateType names the kind of aggregate that emitted the event.
	AggregateType string
	// AggregateID identifies the stream within the tenant.
	AggregateID string
	// EventType identifies the kind of event, e.g. "tenant.created".
	EventType string
	// Version is the position within the (tenant, aggregate) stream.
	// Strictly increasing from 1 with no gaps; the optimistic-concurrency key.
	Version int64
	// Position is the tenant-scoped commit position across all aggregates.
	// Strictly increasing per tenant; the projection cursor.
	Position int64
	// Payload is the event body, opaque to the store.
	Payload []byte

	Metadata EventMetadata
}

// NewEvent is an event as submitted to Append, before the store assigns
// identity, version and position.
type NewEvent struct {
	EventType string
	Payload   []byte
	Metadata  EventMetadata
}
