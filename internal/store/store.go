// Package store defines the storage contracts for the platform core: the
// event log, projection read models, snapshots and the role/permission graph.
// Backends are pluggable; internal/store/postgres is the production backend
// and internal/store/memory backs tests and single-node development.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/foundation/internal/tenant"
)

// Sentinel errors shared across storage backends.
var (
	// ErrAccessDenied is returned when an operation's tenant does not match
	// the tenant resolved from the caller's context. Cross-tenant reads never
	// silently return data; they fail with this error.
	ErrAccessDenied = errors.New("tenant access denied")

	// ErrConcurrencyConflict is returned by Append when the stored stream
	// version does not equal the caller's expected version.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	ErrDocumentNotFound = errors.New("document not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrRoleNotFound     = errors.New("role not found")
)

// GuardTenant enforces tenant isolation at the storage-access layer. It
// validates the operation's tenant and, when the context carries a resolved
// tenant, requires an exact match. Every backend calls this before touching
// rows.
func GuardTenant(ctx context.Context, id tenant.ID) error {
	if err := id.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if ctxID, ok := tenant.FromContext(ctx); ok && ctxID != id {
		return fmt.Errorf("%w: context tenant %q, requested %q", ErrAccessDenied, ctxID, id)
	}
	return nil
}
