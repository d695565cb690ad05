package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/audit"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// PermissionSet is the effective permission set for one (principal, tenant).
type PermissionSet map[models.Permission]struct{}

// Allows reports whether the set grants (resource, action), honouring
// wildcard grants. Unknown pairs are denied.
func (s PermissionSet) Allows(resource, action string) bool {
	for perm := range s {
		if perm.Covers(resource, action) {
			return true
		}
	}
	return false
}

// ResolverConfig configures the permission cache.
type ResolverConfig struct {
	// CacheTTL bounds how stale a cached permission set may be after a
	// role-graph change that wasn't explicitly invalidated.
	// Default: 5 minutes
	CacheTTL time.Duration

	// CacheMaxEntries bounds cache memory. Default: 10000
	CacheMaxEntries int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *ResolverConfig) ApplyDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = 10000
	}
}

type cacheKey struct {
	principalID string
	tenantID    tenant.ID
}

type cacheEntry struct {
	perms   PermissionSet
	expires time.Time
}

// Resolver computes effective permissions by traversing principal->role and
// role->permission edges scoped to a tenant. Results are cached per
// (principal, tenant); the cache is a derived artifact invalidated explicitly
// on role-graph changes and bounded by TTL otherwise.
type Resolver struct {
	roles    store.RoleStore
	recorder audit.Recorder
	cfg      ResolverConfig

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

// NewResolver creates a resolver over the given role store. Authorization
// decisions are reported to the recorder.
func NewResolver(roles store.RoleStore, recorder audit.Recorder, cfg ResolverConfig) *Resolver {
	cfg.ApplyDefaults()
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Resolver{
		roles:    roles,
		recorder: recorder,
		cfg:      cfg,
		cache:    make(map[cacheKey]cacheEntry),
	}
}

// ResolvePermissions returns the effective permission set for the principal
// within the tenant. A principal with no roles gets an empty set.
func (r *Resolver) ResolvePermissions(ctx context.Context, principalID string, tenantID tenant.ID) (PermissionSet, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, fault.Wrap(fault.KindAccessDenied, "auth.tenant_mismatch", err)
	}

	key := cacheKey{principalID: principalID, tenantID: tenantID}

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.perms, nil
	}

	roles, err := r.roles.RolesFor(ctx, tenantID, principalID)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, "auth.roles_unavailable", err).
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("principal", principalID)
	}

	perms := make(PermissionSet)
	for _, role := range roles {
		for _, perm := range role.Permissions {
			perms[perm] = struct{}{}
		}
	}

	r.mu.Lock()
	if len(r.cache) >= r.cfg.CacheMaxEntries {
		// Cheap capacity bound: drop everything and let hot entries refill.
		r.cache = make(map[cacheKey]cacheEntry)
	}
	r.cache[key] = cacheEntry{perms: perms, expires: time.Now().Add(r.cfg.CacheTTL)}
	r.mu.Unlock()

	return perms, nil
}

// Authorize answers allow/deny for (principal, tenant, resource, action).
// Deny is the default: unknown pairs, missing roles and cross-tenant
// requests all fail with an access-denied fault. Every decision emits an
// audit entry.
func (r *Resolver) Authorize(ctx context.Context, principalID string, tenantID tenant.ID, resource, action string) error {
	perms, err := r.ResolvePermissions(ctx, principalID, tenantID)
	if err != nil {
		r.record(ctx, principalID, tenantID, resource, action, audit.OutcomeDeny)
		return err
	}

	if !perms.Allows(resource, action) {
		r.record(ctx, principalID, tenantID, resource, action, audit.OutcomeDeny)
		log.Debug().
			Str("principal", principalID).
			Str("tenant_id", tenantID.String()).
			Str("resource", resource).
			Str("action", action).
			Msg("Authorization denied")
		return fault.New(fault.KindAccessDenied, "auth.denied").
			WithDetail("resource", resource).
			WithDetail("action", action)
	}

	r.record(ctx, principalID, tenantID, resource, action, audit.OutcomeAllow)
	return nil
}

// Invalidate drops the cached permission set for one (principal, tenant).
// Call after changing the principal's assignments.
func (r *Resolver) Invalidate(principalID string, tenantID tenant.ID) {
	r.mu.Lock()
	delete(r.cache, cacheKey{principalID: principalID, tenantID: tenantID})
	r.mu.Unlock()
}

// InvalidateTenant drops all cached sets for the tenant. Call after changing
// a role definition, which affects every principal holding it.
func (r *Resolver) InvalidateTenant(tenantID tenant.ID) {
	r.mu.Lock()
	for key := range r.cache {
		if key.tenantID == tenantID {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}

func (r *Resolver) record(ctx context.Context, principalID string, tenantID tenant.ID, resource, action string, outcome audit.Outcome) {
	r.recorder.Record(ctx, audit.Entry{
		TenantID:  tenantID,
		Principal: principalID,
		Action:    action,
		Resource:  resource,
		Outcome:   outcome,
	})
}
