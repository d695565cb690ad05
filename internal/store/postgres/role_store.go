package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// RoleStore implements store.RoleStore using PostgreSQL. Role permissions are
// stored as JSONB; assignments cascade-delete with their role.
type RoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore creates a new PostgreSQL-backed role store.
func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	return &RoleStore{pool: pool}
}

// UpsertRole creates or replaces a role definition.
func (s *RoleStore) UpsertRole(ctx context.Context, tenantID tenant.ID, role *models.Role) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO roles (tenant_id, name, permissions)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET permissions = EXCLUDED.permissions
	`, tenantID, role.Name, permissions)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// GetRole returns the named role.
func (s *RoleStore) GetRole(ctx context.Context, tenantID tenant.ID, name string) (*models.Role, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	var permissions []byte
	err := s.pool.QueryRow(ctx, `
		SELECT permissions FROM roles WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&permissions)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrRoleNotFound
		}
		return nil, mapPostgresError(err)
	}

	role := &models.Role{Name: name}
	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return role, nil
}

// DeleteRole removes the role; assignments cascade via the foreign key.
func (s *RoleStore) DeleteRole(ctx context.Context, tenantID tenant.ID, name string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	result, err := s.pool.Exec(ctx, `
		DELETE FROM roles WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}
	return nil
}

// AssignRole grants the named role to a principal within the tenant.
func (s *RoleStore) AssignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	// The foreign key rejects assignments to unknown roles; mapPostgresError
	// turns that into ErrRoleNotFound.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_assignments (tenant_id, principal_id, role_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, principal_id, role_name) DO NOTHING
	`, tenantID, principalID, roleName)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// UnassignRole revokes the role from the principal.
func (s *RoleStore) UnassignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE tenant_id = $1 AND principal_id = $2 AND role_name = $3
	`, tenantID, principalID, roleName)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// RolesFor returns the roles held by the principal within the tenant.
func (s *RoleStore) RolesFor(ctx context.Context, tenantID tenant.ID, principalID string) ([]models.Role, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.name, r.permissions
		FROM role_assignments a
		JOIN roles r ON r.tenant_id = a.tenant_id AND r.name = a.role_name
		WHERE a.tenant_id = $1 AND a.principal_id = $2
		ORDER BY r.name ASC
	`, tenantID, principalID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		var role models.Role
		var permissions []byte
		if err := rows.Scan(&role.Name, &permissions); err != nil {
			return nil, mapPostgresError(err)
		}
		if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return roles, nil
}
