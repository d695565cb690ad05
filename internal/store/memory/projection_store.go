package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type projectionKey struct {
	tenantID   tenant.ID
	projection string
}

// generations holds the live and staging read models for one
// (tenant, projection).
type generations struct {
	live        map[string][]byte
	livePos     int64
	staging     map[string][]byte
	stagingPos  int64
	hasStagings bool
}

// ProjectionStore implements store.ProjectionStore using in-memory storage.
// Document writes and checkpoint advancement happen under one lock, which is
// the memory equivalent of the Postgres backend's single transaction.
type ProjectionStore struct {
	mu    sync.RWMutex
	state map[projectionKey]*generations
}

// NewProjectionStore creates a new in-memory projection store.
func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{
		state: make(map[projectionKey]*generations),
	}
}

func (s *ProjectionStore) get(tenantID tenant.ID, projection string) *generations {
	key := projectionKey{tenantID: tenantID, projection: projection}
	gens, ok := s.state[key]
	if !ok {
		gens = &generations{live: make(map[string][]byte)}
		s.state[key] = gens
	}
	return gens
}

// ApplyBatch applies the mutations and advances the checkpoint atomically.
func (s *ProjectionStore) ApplyBatch(ctx context.Context, tenantID tenant.ID, projection string, staged bool, puts []store.DocumentPut, position int64) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gens := s.get(tenantID, projection)
	target := gens.live
	if staged {
		if !gens.hasStagings {
			return fmt.Errorf("projection %s has no staging generation", projection)
		}
		target = gens.staging
	}

	for _, put := range puts {
		if put.Delete {
			delete(target, put.Key)
			continue
		}
		target[put.Key] = append([]byte(nil), put.Value...)
	}

	if staged {
		gens.stagingPos = position
	} else {
		gens.livePos = position
	}
	return nil
}

// BeginRebuild resets the staging generation to empty at position zero.
func (s *ProjectionStore) BeginRebuild(ctx context.Context, tenantID tenant.ID, projection string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gens := s.get(tenantID, projection)
	gens.staging = make(map[string][]byte)
	gens.stagingPos = 0
	gens.hasStagings = true
	return nil
}

// CompleteRebuild promotes staging to live in one locked step.
func (s *ProjectionStore) CompleteRebuild(ctx context.Context, tenantID tenant.ID, projection string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gens := s.get(tenantID, projection)
	if !gens.hasStagings {
		return fmt.Errorf("projection %s has no staging generation to promote", projection)
	}
	gens.live = gens.staging
	gens.livePos = gens.stagingPos
	gens.staging = nil
	gens.stagingPos = 0
	gens.hasStagings = false
	return nil
}

// Get returns the document stored under key in the live generation.
func (s *ProjectionStore) Get(ctx context.Context, tenantID tenant.ID, projection, key string) ([]byte, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	gens, ok := s.state[projectionKey{tenantID: tenantID, projection: projection}]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	value, ok := gens.live[key]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return append([]byte(nil), value...), nil
}

// List returns live documents with keys starting with prefix, in key order.
func (s *ProjectionStore) List(ctx context.Context, tenantID tenant.ID, projection, prefix string, limit int) ([]store.Document, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	gens, ok := s.state[projectionKey{tenantID: tenantID, projection: projection}]
	if !ok {
		return nil, nil
	}

	keys := make([]string, 0, len(gens.live))
	for key := range gens.live {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	docs := make([]store.Document, 0, len(keys))
	for _, key := range keys {
		docs = append(docs, store.Document{
			Key:   key,
			Value: append([]byte(nil), gens.live[key]...),
		})
	}
	return docs, nil
}

// Checkpoint returns the live generation's last processed position.
func (s *ProjectionStore) Checkpoint(ctx context.Context, tenantID tenant.ID, projection string) (int64, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	gens, ok := s.state[projectionKey{tenantID: tenantID, projection: projection}]
	if !ok {
		return 0, nil
	}
	return gens.livePos, nil
}
