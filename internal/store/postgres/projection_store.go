package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// ProjectionStore implements store.ProjectionStore using PostgreSQL. Document
// mutations and the checkpoint advance share one transaction, so a crash can
// neither lose nor double-apply a fold. Rebuilds write into generation
// live+1 and are promoted by flipping projection_meta.live_generation.
type ProjectionStore struct {
	pool *pgxpool.Pool
}

// NewProjectionStore creates a new PostgreSQL-backed projection store.
func NewProjectionStore(pool *pgxpool.Pool) *ProjectionStore {
	return &ProjectionStore{pool: pool}
}

// ApplyBatch atomically applies the mutations and advances the checkpoint.
func (s *ProjectionStore) ApplyBatch(ctx context.Context, tenantID tenant.ID, projection string, staged bool, puts []store.DocumentPut, position int64) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPostgresError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	generation, err := s.lockGeneration(ctx, tx, tenantID, projection)
	if err != nil {
		return err
	}
	if staged {
		generation++
		// The staging checkpoint row is created by BeginRebuild; writing
		// without one means no rebuild is in progress.
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM projection_checkpoints
				WHERE tenant_id = $1 AND projection = $2 AND generation = $3
			)
		`, tenantID, projection, generation).Scan(&exists)
		if err != nil {
			return mapPostgresError(err)
		}
		if !exists {
			return fmt.Errorf("projection %s has no staging generation", projection)
		}
	}

	batch := &pgx.Batch{}
	for _, put := range puts {
		if put.Delete {
			batch.Queue(`
				DELETE FROM projection_documents
				WHERE tenant_id = $1 AND projection = $2 AND generation = $3 AND doc_key = $4
			`, tenantID, projection, generation, put.Key)
			continue
		}
		batch.Queue(`
			INSERT INTO projection_documents (tenant_id, projection, generation, doc_key, value)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, projection, generation, doc_key)
			DO UPDATE SET value = EXCLUDED.value
		`, tenantID, projection, generation, put.Key, put.Value)
	}
	batch.Queue(`
		INSERT INTO projection_checkpoints (tenant_id, projection, generation, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, projection, generation)
		DO UPDATE SET position = EXCLUDED.position
	`, tenantID, projection, generation, position)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(puts)+1; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return mapPostgresError(err)
		}
	}
	if err := results.Close(); err != nil {
		return mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// BeginRebuild clears any previous staging generation and creates a fresh one
// at position zero.
func (s *ProjectionStore) BeginRebuild(ctx context.Context, tenantID tenant.ID, projection string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPostgresError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	generation, err := s.lockGeneration(ctx, tx, tenantID, projection)
	if err != nil {
		return err
	}
	staging := generation + 1

	if _, err := tx.Exec(ctx, `
		DELETE FROM projection_documents
		WHERE tenant_id = $1 AND projection = $2 AND generation = $3
	`, tenantID, projection, staging); err != nil {
		return mapPostgresError(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO projection_checkpoints (tenant_id, projection, generation, position)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (tenant_id, projection, generation)
		DO UPDATE SET position = 0
	`, tenantID, projection, staging); err != nil {
		return mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(err)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("projection", projection).
		Int64("staging_generation", staging).
		Msg("Projection rebuild started")
	return nil
}

// CompleteRebuild promotes the staging generation to live and discards the
// previous generation's rows.
func (s *ProjectionStore) CompleteRebuild(ctx context.Context, tenantID tenant.ID, projection string) error {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPostgresError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	generation, err := s.lockGeneration(ctx, tx, tenantID, projection)
	if err != nil {
		return err
	}
	staging := generation + 1

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM projection_checkpoints
			WHERE tenant_id = $1 AND projection = $2 AND generation = $3
		)
	`, tenantID, projection, staging).Scan(&exists)
	if err != nil {
		return mapPostgresError(err)
	}
	if !exists {
		return fmt.Errorf("projection %s has no staging generation to promote", projection)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE projection_meta SET live_generation = $3
		WHERE tenant_id = $1 AND projection = $2
	`, tenantID, projection, staging); err != nil {
		return mapPostgresError(err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM projection_documents
		WHERE tenant_id = $1 AND projection = $2 AND generation = $3
	`, tenantID, projection, generation); err != nil {
		return mapPostgresError(err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM projection_checkpoints
		WHERE tenant_id = $1 AND projection = $2 AND generation = $3
	`, tenantID, projection, generation); err != nil {
		return mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(err)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("projection", projection).
		Int64("live_generation", staging).
		Msg("Projection rebuild promoted")
	return nil
}

// Get returns the document stored under key in the live generation.
func (s *ProjectionStore) Get(ctx context.Context, tenantID tenant.ID, projection, key string) ([]byte, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT d.value
		FROM projection_documents d
		JOIN projection_meta m
		  ON m.tenant_id = d.tenant_id AND m.projection = d.projection
		WHERE d.tenant_id = $1 AND d.projection = $2
		  AND d.generation = m.live_generation AND d.doc_key = $3
	`, tenantID, projection, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrDocumentNotFound
		}
		return nil, mapPostgresError(err)
	}
	return value, nil
}

// List returns live documents with keys starting with prefix, in key order.
func (s *ProjectionStore) List(ctx context.Context, tenantID tenant.ID, projection, prefix string, limit int) ([]store.Document, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT d.doc_key, d.value
		FROM projection_documents d
		JOIN projection_meta m
		  ON m.tenant_id = d.tenant_id AND m.projection = d.projection
		WHERE d.tenant_id = $1 AND d.projection = $2
		  AND d.generation = m.live_generation
		  AND d.doc_key LIKE $3 || '%'
		ORDER BY d.doc_key ASC
		LIMIT $4
	`, tenantID, projection, prefix, limit)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.Key, &doc.Value); err != nil {
			return nil, mapPostgresError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return docs, nil
}

// Checkpoint returns the live generation's last processed position.
func (s *ProjectionStore) Checkpoint(ctx context.Context, tenantID tenant.ID, projection string) (int64, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return 0, err
	}

	var position int64
	err := s.pool.QueryRow(ctx, `
		SELECT c.position
		FROM projection_checkpoints c
		JOIN projection_meta m
		  ON m.tenant_id = c.tenant_id AND m.projection = c.projection
		WHERE c.tenant_id = $1 AND c.projection = $2
		  AND c.generation = m.live_generation
	`, tenantID, projection).Scan(&position)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, mapPostgresError(err)
	}
	return position, nil
}

// lockGeneration upserts the projection_meta row and returns the live
// generation, holding the row lock for the rest of the transaction so
// concurrent rebuild/apply operations on the same projection serialize.
func (s *ProjectionStore) lockGeneration(ctx context.Context, tx pgx.Tx, tenantID tenant.ID, projection string) (int64, error) {
	var generation int64
	err := tx.QueryRow(ctx, `
		INSERT INTO projection_meta (tenant_id, projection, live_generation)
		VALUES ($1, $2, 0)
		ON CONFLICT (tenant_id, projection)
		DO UPDATE SET live_generation = projection_meta.live_generation
		RETURNING live_generation
	`, tenantID, projection).Scan(&generation)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return generation, nil
}
