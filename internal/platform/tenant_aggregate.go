// Package platform is the tenant directory: the reference business module
// built on the command bus, event store, projections and query bus. It
// records tenant lifecycle as events and serves lookups from a projected
// directory read model.
package platform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfeidau/foundation/internal/models"
)

// Aggregate and event type tags for the tenant lifecycle stream.
const (
	AggregateTypeTenant = "tenant"

	EventTenantCreated   = "tenant.created"
	EventTenantSuspended = "tenant.suspended"
	EventTenantResumed   = "tenant.resumed"
)

// Tenant statuses as they appear in events and the directory read model.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// TenantCreated is the payload of a tenant.created event.
type TenantCreated struct {
	Name string `json:"name"`
}

// TenantSuspended is the payload of a tenant.suspended event. Name and
// CreatedAt are carried so the directory projection can rewrite the entry
// without reading prior state.
type TenantSuspended struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason,omitempty"`
}

// TenantResumed is the payload of a tenant.resumed event.
type TenantResumed struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantAggregate is the event-sourced state of one tenant's lifecycle
// stream. It participates in snapshotting via JSON state capture.
type TenantAggregate struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Exists    bool      `json:"exists"`
}

// ApplyEvent folds one event into the aggregate state.
func (a *TenantAggregate) ApplyEvent(evt models.Event) error {
	switch evt.EventType {
	case EventTenantCreated:
		var payload TenantCreated
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
		}
		a.Name = payload.Name
		a.Status = StatusActive
		a.CreatedAt = evt.Metadata.Timestamp
		a.Exists = true
	case EventTenantSuspended:
		a.Status = StatusSuspended
	case EventTenantResumed:
		a.Status = StatusActive
	default:
		return fmt.Errorf("unknown event type %s", evt.EventType)
	}
	return nil
}

// SnapshotState captures the aggregate state for snapshotting.
func (a *TenantAggregate) SnapshotState() ([]byte, error) {
	return json.Marshal(a)
}

// RestoreSnapshot restores the aggregate from captured state.
func (a *TenantAggregate) RestoreSnapshot(state []byte) error {
	return json.Unmarshal(state, a)
}
