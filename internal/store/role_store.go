package store

import (
	"context"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// RoleStore holds the tenant-scoped role/permission graph and the
// principal-to-role assignments the authorization resolver traverses. This is
// the source of truth; the resolver's permission cache is derived from it.
type RoleStore interface {
	// UpsertRole creates or replaces a role definition within the tenant.
	UpsertRole(ctx context.Context, tenantID tenant.ID, role *models.Role) error

	// GetRole returns the named role, or ErrRoleNotFound.
	GetRole(ctx context.Context, tenantID tenant.ID, name string) (*models.Role, error)

	// DeleteRole removes the role and all assignments referencing it.
	// Returns ErrRoleNotFound if the role doesn't exist.
	DeleteRole(ctx context.Context, tenantID tenant.ID, name string) error

	// AssignRole grants the named role to a principal within the tenant.
	// Assigning an unknown role returns ErrRoleNotFound; re-assigning an
	// already-held role is a no-op.
	AssignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error

	// UnassignRole revokes the role from the principal. Revoking a role the
	// principal doesn't hold is a no-op.
	UnassignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error

	// RolesFor returns the roles held by the principal within the tenant.
	// A principal with no assignments gets an empty slice, not an error.
	RolesFor(ctx context.Context, tenantID tenant.ID, principalID string) ([]models.Role, error)
}
