package platform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
)

// DirectoryProjectionName is the read model the directory projection folds
// into.
const DirectoryProjectionName = "tenant-directory"

// DirectoryEntry is the projected view of one tenant served by lookups.
type DirectoryEntry struct {
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	SuspendedAt time.Time `json:"suspended_at,omitempty"`
}

// DirectoryProjection folds tenant lifecycle events into directory entries.
// One document per tenant, keyed by tenant ID.
type DirectoryProjection struct{}

func (DirectoryProjection) Name() string { return DirectoryProjectionName }

// Ignores skips everything outside the lifecycle event family.
func (DirectoryProjection) Ignores(eventType string) bool {
	switch eventType {
	case EventTenantCreated, EventTenantSuspended, EventTenantResumed:
		return false
	}
	return true
}

// Apply folds one lifecycle event into its tenant's directory entry.
func (DirectoryProjection) Apply(evt models.Event) ([]store.DocumentPut, error) {
	entry := DirectoryEntry{TenantID: evt.TenantID.String()}

	switch evt.EventType {
	case EventTenantCreated:
		var payload TenantCreated
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
		}
		entry.Name = payload.Name
		entry.Status = StatusActive
		entry.CreatedAt = evt.Metadata.Timestamp
	case EventTenantSuspended:
		var payload TenantSuspended
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
		}
		entry.Name = payload.Name
		entry.Status = StatusSuspended
		entry.CreatedAt = payload.CreatedAt
		entry.SuspendedAt = evt.Metadata.Timestamp
	case EventTenantResumed:
		var payload TenantResumed
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
		}
		entry.Name = payload.Name
		entry.Status = StatusActive
		entry.CreatedAt = payload.CreatedAt
	default:
		return nil, fmt.Errorf("unknown event type %s", evt.EventType)
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode directory entry: %w", err)
	}

	return []store.DocumentPut{{Key: directoryKey(entry.TenantID), Value: value}}, nil
}

func directoryKey(tenantID string) string {
	return "tenant/" + tenantID
}
