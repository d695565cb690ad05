package store

import (
	"context"

	"github.com/wolfeidau/foundation/internal/tenant"
)

// Document is a materialized read-model row.
type Document struct {
	Key   string
	Value []byte
}

// DocumentPut is a single read-model mutation produced by folding an event.
// Delete removes the key instead of writing Value.
type DocumentPut struct {
	Key    string
	Value  []byte
	Delete bool
}

// ReadModelReader is the only storage surface query handlers receive. It
// exposes the live generation of each projection and its checkpoint so
// callers can detect staleness. It deliberately has no write methods and no
// event-log access.
type ReadModelReader interface {
	// Get returns the document stored under key, or ErrDocumentNotFound.
	Get(ctx context.Context, tenantID tenant.ID, projection, key string) ([]byte, error)

	// List returns up to limit documents whose keys start with prefix, in
	// ascending key order.
	List(ctx context.Context, tenantID tenant.ID, projection, prefix string, limit int) ([]Document, error)

	// Checkpoint returns the last event position folded into the live
	// generation of the projection. Zero means nothing processed yet.
	Checkpoint(ctx context.Context, tenantID tenant.ID, projection string) (int64, error)
}

// ProjectionStore persists read models and their checkpoints. Each
// (tenant, projection) has a live generation serving reads; rebuilds fold
// into a staging generation which is atomically promoted on completion.
type ProjectionStore interface {
	ReadModelReader

	// ApplyBatch atomically applies the mutations and advances the
	// checkpoint to position. The two land in the same transaction (or an
	// equivalent guard) so a crash can neither lose nor double-apply an
	// update. With staged set, writes target the staging generation.
	ApplyBatch(ctx context.Context, tenantID tenant.ID, projection string, staged bool, puts []DocumentPut, position int64) error

	// BeginRebuild clears any previous staging generation and creates a
	// fresh one at position zero. The live generation continues serving
	// reads untouched.
	BeginRebuild(ctx context.Context, tenantID tenant.ID, projection string) error

	// CompleteRebuild atomically promotes the staging generation to live and
	// discards the previous generation's rows.
	CompleteRebuild(ctx context.Context, tenantID tenant.ID, projection string) error
}
