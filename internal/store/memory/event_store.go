package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// EventStore implements store.EventStore using in-memory storage. Intended
// for tests and single-node development - data is lost on restart.
type EventStore struct {
	mu sync.RWMutex

	// streams holds per-aggregate event slices keyed by tenant then aggregate.
	streams map[tenant.ID]map[string][]models.Event
	// logs holds the per-tenant commit order across all aggregates.
	logs map[tenant.ID][]models.Event

	sinks []store.EventSink
}

// NewEventStore creates a new in-memory event store. Any sinks receive
// committed events best-effort; sink failures are logged, never surfaced.
func NewEventStore(sinks ...store.EventSink) *EventStore {
	return &EventStore{
		streams: make(map[tenant.ID]map[string][]models.Event),
		logs:    make(map[tenant.ID][]models.Event),
		sinks:   sinks,
	}
}

// Append commits all events to the stream or none of them.
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

	s.mu.Lock()

	streams, ok := s.streams[tenantID]
	if !ok {
		streams = make(map[string][]models.Event)
		s.streams[tenantID] = streams
	}

	stream := streams[aggregateID]
	current := int64(len(stream))
	if current != expectedVersion {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: stream %s at version %d, expected %d",
			store.ErrConcurrencyConflict, aggregateID, current, expectedVersion)
	}

	now := time.Now()
	position := int64(len(s.logs[tenantID]))
	committed := make([]models.Event, 0, len(events))

	for i, ne := range events {
		evt := models.Event{
			EventID:       uuid.Must(uuid.NewV7()).String(),
			TenantID:      tenantID,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     ne.EventType,
			Version:       current + int64(i) + 1,
			Position:      position + int64(i) + 1,
			Payload:       append([]byte(nil), ne.Payload...),
			Metadata:      ne.Metadata,
		}
		if evt.Metadata.Timestamp.IsZero() {
			evt.Metadata.Timestamp = now
		}
		committed = append(committed, evt)
	}

	streams[aggregateID] = append(stream, committed...)
	s.logs[tenantID] = append(s.logs[tenantID], committed...)
	newVersion := current + int64(len(committed))

	s.mu.Unlock()

	s.publish(ctx, committed)

	return newVersion, nil
}

// Read returns the stream's events with Version > fromVersion.
func (s *EventStore) Read(ctx context.Context, tenantID tenant.ID, aggregateID string, fromVersion int64) ([]models.Event, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[tenantID][aggregateID]
	if fromVersion >= int64(len(stream)) {
		return nil, nil
	}
	if fromVersion < 0 {
		fromVersion = 0
	}

	// Versions are gap-free from 1, so the slice index is version-1.
	out := make([]models.Event, len(stream)-int(fromVersion))
	copy(out, stream[fromVersion:])
	return out, nil
}

// ReadAll returns up to limit events across all aggregates in commit order.
func (s *EventStore) ReadAll(ctx context.Context, tenantID tenant.ID, fromPosition int64, limit int) ([]models.Event, error) {
	if err := store.GuardTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logged := s.logs[tenantID]
	if fromPosition >= int64(len(logged)) {
		return nil, nil
	}
	if fromPosition < 0 {
		fromPosition = 0
	}

	tail := logged[fromPosition:]
	if len(tail) > limit {
		tail = tail[:limit]
	}
	out := make([]models.Event, len(tail))
	copy(out, tail)
	return out, nil
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
