package auth

import "github.com/wolfeidau/foundation/internal/models"

// Well-known role names seeded into new tenants.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
)

// DefaultRoles returns the role catalog seeded into a new tenant. Tenants
// can extend or replace these; the resolver treats them like any other role.
func DefaultRoles() []models.Role {
	return []models.Role{
		{
			Name: RoleUser,
			Permissions: []models.Permission{
				{Resource: "users", Action: "create"},
				{Resource: "users", Action: "read"},
			},
		},
		{
			Name: RoleAdmin,
			Permissions: []models.Permission{
				{Resource: "users", Action: "create"},
				{Resource: "users", Action: "read"},
				{Resource: "users", Action: "update"},
				{Resource: "users", Action: "delete"},
			},
		},
		{
			Name: RoleSuperAdmin,
			Permissions: []models.Permission{
				{Resource: models.Wildcard, Action: models.Wildcard},
			},
		},
	}
}
