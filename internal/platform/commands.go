package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/aggregate"
	"github.com/wolfeidau/foundation/internal/auth"
	"github.com/wolfeidau/foundation/internal/bus"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Command type tags routed by the command bus.
const (
	CommandCreateTenant  = "tenant.create"
	CommandSuspendTenant = "tenant.suspend"
	CommandResumeTenant  = "tenant.resume"
)

// Each tenant's lifecycle lives in a single well-known stream within its own
// partition.
const lifecycleStreamID = "lifecycle"

// CreateTenant provisions a tenant: records the creation event and seeds the
// default role catalog.
type CreateTenant struct {
	Tenant        tenant.ID
	Name          string
	CorrelationID string
}

func (c CreateTenant) CommandType() string { return CommandCreateTenant }

func (c CreateTenant) TenantID() tenant.ID { return c.Tenant }

func (c CreateTenant) AggregateID() string { return lifecycleStreamID }

func (c CreateTenant) Permission() models.Permission {
	return models.Permission{Resource: "tenants", Action: "create"}
}

// SuspendTenant marks the tenant suspended.
type SuspendTenant struct {
	Tenant        tenant.ID
	Reason        string
	CorrelationID string
}

func (c SuspendTenant) CommandType() string { return CommandSuspendTenant }

func (c SuspendTenant) TenantID() tenant.ID { return c.Tenant }

func (c SuspendTenant) AggregateID() string { return lifecycleStreamID }

func (c SuspendTenant) Permission() models.Permission {
	return models.Permission{Resource: "tenants", Action: "update"}
}

// ResumeTenant reactivates a suspended tenant.
type ResumeTenant struct {
	Tenant        tenant.ID
	CorrelationID string
}

func (c ResumeTenant) CommandType() string { return CommandResumeTenant }

func (c ResumeTenant) TenantID() tenant.ID { return c.Tenant }

func (c ResumeTenant) AggregateID() string { return lifecycleStreamID }

func (c ResumeTenant) Permission() models.Permission {
	return models.Permission{Resource: "tenants", Action: "update"}
}

// TenantCommands handles tenant lifecycle commands.
type TenantCommands struct {
	loader *aggregate.Loader
	events store.EventStore
	roles  store.RoleStore
}

// NewTenantCommands creates the lifecycle command handlers.
func NewTenantCommands(loader *aggregate.Loader, events store.EventStore, roles store.RoleStore) *TenantCommands {
	return &TenantCommands{loader: loader, events: events, roles: roles}
}

// Register binds the handlers to their command types on the bus.
func (h *TenantCommands) Register(b *bus.CommandBus) error {
	if err := b.Register(CommandCreateTenant, bus.CommandHandlerFunc(h.handleCreate)); err != nil {
		return err
	}
	if err := b.Register(CommandSuspendTenant, bus.CommandHandlerFunc(h.handleSuspend)); err != nil {
		return err
	}
	return b.Register(CommandResumeTenant, bus.CommandHandlerFunc(h.handleResume))
}

func (h *TenantCommands) handleCreate(ctx context.Context, cmd bus.Command) (*bus.CommandResult, error) {
	create, ok := cmd.(CreateTenant)
	if !ok {
		return nil, fmt.Errorf("unexpected command %T", cmd)
	}
	if create.Name == "" {
		return nil, fault.New(fault.KindValidation, "tenant.name_required")
	}

	root := &TenantAggregate{}
	version, _, err := h.loader.Load(ctx, create.Tenant, lifecycleStreamID, root)
	if err != nil {
		return nil, err
	}
	if root.Exists {
		return nil, fault.New(fault.KindValidation, "tenant.already_exists").
			WithDetail("tenant_id", create.Tenant.String())
	}

	// Seed before appending: if seeding fails nothing is durable yet, and a
	// retried create re-runs the idempotent upserts and converges.
	for _, role := range auth.DefaultRoles() {
		if err := h.roles.UpsertRole(ctx, create.Tenant, &role); err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}

	result, err := h.append(ctx, create.Tenant, version, EventTenantCreated,
		TenantCreated{Name: create.Name}, create.CorrelationID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", create.Tenant.String()).
		Str("name", create.Name).
		Msg("Tenant created")
	return result, nil
}

func (h *TenantCommands) handleSuspend(ctx context.Context, cmd bus.Command) (*bus.CommandResult, error) {
	suspend, ok := cmd.(SuspendTenant)
	if !ok {
		return nil, fmt.Errorf("unexpected command %T", cmd)
	}

	root := &TenantAggregate{}
	version, _, err := h.loader.Load(ctx, suspend.Tenant, lifecycleStreamID, root)
	if err != nil {
		return nil, err
	}
	if !root.Exists {
		return nil, fault.New(fault.KindValidation, "tenant.not_found").
			WithDetail("tenant_id", suspend.Tenant.String())
	}
	if root.Status == StatusSuspended {
		return nil, fault.New(fault.KindValidation, "tenant.already_suspended").
			WithDetail("tenant_id", suspend.Tenant.String())
	}

	return h.append(ctx, suspend.Tenant, version, EventTenantSuspended,
		TenantSuspended{Name: root.Name, CreatedAt: root.CreatedAt, Reason: suspend.Reason}, suspend.CorrelationID)
}

func (h *TenantCommands) handleResume(ctx context.Context, cmd bus.Command) (*bus.CommandResult, error) {
	resume, ok := cmd.(ResumeTenant)
	if !ok {
		return nil, fmt.Errorf("unexpected command %T", cmd)
	}

	root := &TenantAggregate{}
	version, _, err := h.loader.Load(ctx, resume.Tenant, lifecycleStreamID, root)
	if err != nil {
		return nil, err
	}
	if !root.Exists {
		return nil, fault.New(fault.KindValidation, "tenant.not_found").
			WithDetail("tenant_id", resume.Tenant.String())
	}
	if root.Status != StatusSuspended {
		return nil, fault.New(fault.KindValidation, "tenant.not_suspended").
			WithDetail("tenant_id", resume.Tenant.String())
	}

	return h.append(ctx, resume.Tenant, version, EventTenantResumed,
		TenantResumed{Name: root.Name, CreatedAt: root.CreatedAt}, resume.CorrelationID)
}

// append commits one event to the lifecycle stream and reads back the
// committed batch for the result.
func (h *TenantCommands) append(ctx context.Context, tenantID tenant.ID, expectedVersion int64, eventType string, payload any, correlationID string) (*bus.CommandResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	newVersion, err := h.events.Append(ctx, tenantID, AggregateTypeTenant, lifecycleStreamID, expectedVersion, []models.NewEvent{
		{
			EventType: eventType,
			Payload:   body,
			Metadata: models.EventMetadata{
				Timestamp:     time.Now(),
				CorrelationID: correlationID,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	committed, err := h.events.Read(ctx, tenantID, lifecycleStreamID, expectedVersion)
	if err != nil {
		return nil, err
	}

	return &bus.CommandResult{Events: committed, NewVersion: newVersion}, nil
}
