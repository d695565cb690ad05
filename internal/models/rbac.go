package models

// Wildcard matches any resource or action in a permission grant.
const Wildcard = "*"

// Permission is a (resource, action) pair, e.g. ("users", "create").
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Covers reports whether this grant satisfies a request for (resource, action),
// honouring wildcard grants.
func (p Permission) Covers(resource, action string) bool {
	if p.Resource != Wildcard && p.Resource != resource {
		return false
	}
	return p.Action == Wildcard || p.Action == action
}

// Role is a named set of permissions within a single tenant. Roles never
// cross tenants: the same role name in two tenants is two unrelated roles.
type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}
