package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfeidau/foundation/internal/bus"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Query type tags routed by the query bus.
const (
	QueryTenantByID  = "tenant.by_id"
	QueryListTenants = "tenant.list"
)

// TenantByID looks up the tenant's directory entry.
type TenantByID struct {
	Tenant tenant.ID
}

func (q TenantByID) QueryType() string { return QueryTenantByID }

func (q TenantByID) TenantID() tenant.ID { return q.Tenant }

func (q TenantByID) Permission() models.Permission {
	return models.Permission{Resource: "tenants", Action: "read"}
}

// ListTenants pages directory entries within the tenant partition.
type ListTenants struct {
	Tenant tenant.ID
	Limit  int
}

func (q ListTenants) QueryType() string { return QueryListTenants }

func (q ListTenants) TenantID() tenant.ID { return q.Tenant }

func (q ListTenants) Permission() models.Permission {
	return models.Permission{Resource: "tenants", Action: "read"}
}

// TenantQueries answers directory lookups from the projected read model.
type TenantQueries struct{}

// Register binds the handlers to their query types on the bus.
func (h TenantQueries) Register(b *bus.QueryBus) error {
	if err := b.Register(QueryTenantByID, bus.QueryHandlerFunc(h.handleByID)); err != nil {
		return err
	}
	return b.Register(QueryListTenants, bus.QueryHandlerFunc(h.handleList))
}

func (TenantQueries) handleByID(ctx context.Context, q bus.Query, reader store.ReadModelReader) (*bus.QueryResult, error) {
	byID, ok := q.(TenantByID)
	if !ok {
		return nil, fmt.Errorf("unexpected query %T", q)
	}

	value, err := reader.Get(ctx, byID.Tenant, DirectoryProjectionName, directoryKey(byID.Tenant.String()))
	if err != nil {
		return nil, err
	}

	var entry DirectoryEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode directory entry: %w", err)
	}

	position, err := reader.Checkpoint(ctx, byID.Tenant, DirectoryProjectionName)
	if err != nil {
		return nil, err
	}

	return &bus.QueryResult{Data: entry, Position: position}, nil
}

func (TenantQueries) handleList(ctx context.Context, q bus.Query, reader store.ReadModelReader) (*bus.QueryResult, error) {
	list, ok := q.(ListTenants)
	if !ok {
		return nil, fmt.Errorf("unexpected query %T", q)
	}

	limit := list.Limit
	if limit <= 0 {
		limit = 100
	}

	docs, err := reader.List(ctx, list.Tenant, DirectoryProjectionName, "tenant/", limit)
	if err != nil {
		return nil, err
	}

	entries := make([]DirectoryEntry, 0, len(docs))
	for _, doc := range docs {
		var entry DirectoryEntry
		if err := json.Unmarshal(doc.Value, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode directory entry %s: %w", doc.Key, err)
		}
		entries = append(entries, entry)
	}

	position, err := reader.Checkpoint(ctx, list.Tenant, DirectoryProjectionName)
	if err != nil {
		return nil, err
	}

	return &bus.QueryResult{Data: entries, Position: position}, nil
}
