package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type roleKey struct {
	tenantID tenant.ID
	name     string
}

type assignmentKey struct {
	tenantID    tenant.ID
	principalID string
}

// RoleStore implements store.RoleStore using in-memory storage.
type RoleStore struct {
	mu          sync.RWMutex
	roles       map[roleKey]*models.Role
	assignments map[assignmentKey][]string // role names, insertion order
}

// NewRoleStore creates a new in-memory role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{
		roles:       make(map[roleKey]*models.Role),
		assignments: make(map[assignmentKey][]string),
	}
}

// UpsertRole creates or replaces a role definition.
func (s *RoleStore) UpsertRole(ctx context.Context, tenantID tenant.ID, role *models.Role) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *role
	clone.Permissions = append([]models.Permission(nil), role.Permissions...)
	s.roles[roleKey{tenantID: tenantID, name: role.Name}] = &clone
	return nil
}

// GetRole returns the named role.
func (s *RoleStore) GetRole(ctx context.Context, tenantID tenant.ID, name string) (*models.Role, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[roleKey{tenantID: tenantID, name: name}]
	if !ok {
		return nil, store.ErrRoleNotFound
	}

	clone := *role
	clone.Permissions = append([]models.Permission(nil), role.Permissions...)
	return &clone, nil
}

// DeleteRole removes the role and all assignments referencing it.
func (s *RoleStore) DeleteRole(ctx context.Context, tenantID tenant.ID, name string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := roleKey{tenantID: tenantID, name: name}
	if _, ok := s.roles[key]; !ok {
		return store.ErrRoleNotFound
	}
	delete(s.roles, key)

	for ak, names := range s.assignments {
		if ak.tenantID != tenantID {
			continue
		}
		s.assignments[ak] = removeString(names, name)
		if len(s.assignments[ak]) == 0 {
			delete(s.assignments, ak)
		}
	}
	return nil
}

// AssignRole grants the named role to a principal within the tenant.
func (s *RoleStore) AssignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleKey{tenantID: tenantID, name: roleName}]; !ok {
		return store.ErrRoleNotFound
	}

	key := assignmentKey{tenantID: tenantID, principalID: principalID}
	for _, name := range s.assignments[key] {
		if name == roleName {
			return nil
		}
	}
	s.assignments[key] = append(s.assignments[key], roleName)
	return nil
}

// UnassignRole revokes the role from the principal.
func (s *RoleStore) UnassignRole(ctx context.Context, tenantID tenant.ID, principalID, roleName string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{tenantID: tenantID, principalID: principalID}
	s.assignments[key] = removeString(s.assignments[key], roleName)
	if len(s.assignments[key]) == 0 {
		delete(s.assignments, key)
	}
	return nil
}

// RolesFor returns the roles held by the principal within the tenant.
func (s *RoleStore) RolesFor(ctx context.Context, tenantID tenant.ID, principalID string) ([]models.Role, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.assignments[assignmentKey{tenantID: tenantID, principalID: principalID}]
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		role, ok := s.roles[roleKey{tenantID: tenantID, name: name}]
		if !ok {
			continue
		}
		clone := *role
		clone.Permissions = append([]models.Permission(nil), role.Permissions...)
		roles = append(roles, clone)
	}
	return roles, nil
}

func removeString(names []string, target string) []string {
	for i, name := range names {
		if name == target {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
