package auth

import (
	"context"

	"github.com/wolfeidau/foundation/internal/tenant"
)

// Principal is the already-authenticated caller identity handed over by the
// transport layer. The core never performs protocol handshakes; it trusts
// the (principal, tenant) pair placed in the context by its caller.
type Principal struct {
	// PrincipalID identifies the caller.
	PrincipalID string
	// TenantID is the tenant the caller authenticated against. Commands and
	// queries for any other tenant are rejected before dispatch.
	TenantID tenant.ID
}

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*Principal)
	return principal, ok
}
