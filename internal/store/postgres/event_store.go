package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// EventStore implements store.EventStore using PostgreSQL as the backend.
// Appends run in a single transaction: the tenant position counter row lock
// serializes commits within a tenant and the expected-version check enforces
// gap-free stream versions.
type EventStore struct {
	pool  *pgxpool.Pool
	sinks []store.EventSink
}

// NewEventStore creates a new PostgreSQL-backed event store. Any sinks
// receive committed events best-effort after the transaction commits.
func NewEventStore(pool *pgxpool.Pool, sinks ...store.EventSink) *EventStore {
	return &EventStore{pool: pool, sinks: sinks}
}

// Append commits all events to the (tenant, aggregate) stream or none of them.
func (s *EventStore) Append(ctx context.Context, tenantID tenant.ID, aggregateType, aggregateID string, expectedVersion int64, events []models.NewEvent) (int64, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return 0, err
	}
	if aggregateID == "" {
		return 0, fmt.Errorf("aggregate id is required")
	}
	if len(events) == 0 {
		return expectedVersion, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	// Bump the tenant position counter. The update locks the row for the
	// rest of the transaction, serializing appends within the tenant.
	var maxPosition int64
	err = tx.QueryRow(ctx, `
		INSERT INTO tenant_positions (tenant_id, position)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET position = tenant_positions.position + $2
		RETURNING position
	`, tenantID, len(events)).Scan(&maxPosition)
	if err != nil {
		return 0, mapPostgresError(err)
	}

	// Optimistic-concurrency check against the stored stream version.
	var current int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE tenant_id = $1 AND aggregate_id = $2
	`, tenantID, aggregateID).Scan(&current)
	if err != nil {
		return 0, mapPostgresError(err)
	}

	if current != expectedVersion {
		return 0, fmt.Errorf("%w: stream %s at version %d, expected %d",
			store.ErrConcurrencyConflict, aggregateID, current, expectedVersion)
	}

	now := time.Now()
	firstPosition := maxPosition - int64(len(events)) + 1
	committed := make([]models.Event, 0, len(events))

	batch := &pgx.Batch{}
	for i, ne := range events {
		evt := models.Event{
			EventID:       uuid.Must(uuid.NewV7()).String(),
			TenantID:      tenantID,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     ne.EventType,
			Version:       current + int64(i) + 1,
			Position:      firstPosition + int64(i),
			Payload:       ne.Payload,
			Metadata:      ne.Metadata,
		}
		if evt.Metadata.Timestamp.IsZero() {
			evt.Metadata.Timestamp = now
		}

		batch.Queue(`
			INSERT INTO events (
				event_id, tenant_id, aggregate_type, aggregate_id, event_type,
				version, position, payload, correlation_id, causation_id, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			evt.EventID,
			evt.TenantID,
			evt.AggregateType,
			evt.AggregateID,
			evt.EventType,
			evt.Version,
			evt.Position,
			evt.Payload,
			evt.Metadata.CorrelationID,
			evt.Metadata.CausationID,
			evt.Metadata.Timestamp,
		)
		committed = append(committed, evt)
	}

	results := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, mapPostgresError(err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapPostgresError(err)
	}

	newVersion := current + int64(len(events))

	log.Debug().
		Str("tenant_id", tenantID.String()).
		Str("aggregate_id", aggregateID).
		Int64("new_version", newVersion).
		Int("event_count", len(events)).
		Msg("Appended events")

	s.publish(ctx, committed)

	return newVersion, nil
}

// Read returns the stream's events with Version > fromVersion in ascending
// version order.
func (s *EventStore) Read(ctx context.Context, tenantID tenant.ID, aggregateID string, fromVersion int64) ([]models.Event, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_id, aggregate_type, aggregate_id, event_type,
		       version, position, payload, correlation_id, causation_id, recorded_at
		FROM events
		WHERE tenant_id = $1 AND aggregate_id = $2 AND version > $3
		ORDER BY version ASC
	`, tenantID, aggregateID, fromVersion)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	return scanEvents(rows, tenantID)
}

// ReadAll returns up to limit events across all of the tenant's aggregates
// with Position > fromPosition, in commit order.
func (s *EventStore) ReadAll(ctx context.Context, tenantID tenant.ID, fromPosition int64, limit int) ([]models.Event, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_id, aggregate_type, aggregate_id, event_type,
		       version, position, payload, correlation_id, causation_id, recorded_at
		FROM events
		WHERE tenant_id = $1 AND position > $2
		ORDER BY position ASC
		LIMIT $3
	`, tenantID, fromPosition, limit)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	return scanEvents(rows, tenantID)
}

func scanEvents(rows pgx.Rows, tenantID tenant.ID) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var evt models.Event
		evt.TenantID = tenantID

		err := rows.Scan(
			&evt.EventID,
			&evt.AggregateType,
			&evt.AggregateID,
			&evt.EventType,
			&evt.Version,
			&evt.Position,
			&evt.Payload,
			&evt.Metadata.CorrelationID,
			&evt.Metadata.CausationID,
			&evt.Metadata.Timestamp,
		)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		events = append(events, evt)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return events, nil
}

// publish delivers committed events to secondary sinks. Failures are logged
// and never propagate to the append path.
func (s *EventStore) publish(ctx context.Context, events []models.Event) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			log.Warn().
				Err(err).
				Str("tenant_id", events[0].TenantID.String()).
				Int("event_count", len(events)).
				Msg("Event sink publish failed")
		}
	}
}
