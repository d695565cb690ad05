package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/auth"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Query is a read request against projection read models. Queries never
// touch the event log.
type Query interface {
	QueryType() string
	TenantID() tenant.ID
	// Permission is the grant required to run this query.
	Permission() models.Permission
}

// QueryResult carries the answer plus the commit position the backing read
// model had folded up to, so callers can reason about staleness.
type QueryResult struct {
	Data     any
	Position int64
}

// QueryHandler answers one query type. Handlers get a ReadModelReader and
// nothing else; write access to projections or the event log is structurally
// out of reach.
type QueryHandler interface {
	Handle(ctx context.Context, q Query, reader store.ReadModelReader) (*QueryResult, error)
}

// QueryHandlerFunc adapts a function to the QueryHandler interface.
type QueryHandlerFunc func(ctx context.Context, q Query, reader store.ReadModelReader) (*QueryResult, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, q Query, reader store.ReadModelReader) (*QueryResult, error) {
	return f(ctx, q, reader)
}

// QueryBus routes each query to exactly one handler.
type QueryBus struct {
	authz  *auth.Resolver
	reader store.ReadModelReader

	mu       sync.RWMutex
	handlers map[string]QueryHandler
}

// NewQueryBus creates a query bus over the given read model reader.
func NewQueryBus(authz *auth.Resolver, reader store.ReadModelReader) *QueryBus {
	return &QueryBus{
		authz:    authz,
		reader:   reader,
		handlers: make(map[string]QueryHandler),
	}
}

// Register binds a handler to a query type. Exactly one handler per type.
func (b *QueryBus) Register(queryType string, handler QueryHandler) error {
	if queryType == "" {
		return fmt.Errorf("query type is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[queryType]; exists {
		return fmt.Errorf("handler already registered for query type %s", queryType)
	}
	b.handlers[queryType] = handler
	return nil
}

// Dispatch authorizes and executes the query against the read models.
func (b *QueryBus) Dispatch(ctx context.Context, q Query) (*QueryResult, error) {
	if err := q.TenantID().Validate(); err != nil {
		return nil, fault.Wrap(fault.KindValidation, "query.tenant_invalid", err)
	}

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fault.New(fault.KindAccessDenied, "query.principal_missing").
			WithDetail("query_type", q.QueryType())
	}
	if principal.TenantID != q.TenantID() {
		return nil, fault.New(fault.KindAccessDenied, "query.tenant_mismatch").
			WithDetail("query_type", q.QueryType())
	}

	ctx = tenant.WithContext(ctx, q.TenantID())

	perm := q.Permission()
	if err := b.authz.Authorize(ctx, principal.PrincipalID, q.TenantID(), perm.Resource, perm.Action); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, ok := b.handlers[q.QueryType()]
	b.mu.RUnlock()
	if !ok {
		log.Error().
			Str("query_type", q.QueryType()).
			Str("tenant_id", q.TenantID().String()).
			Msg("No handler registered for query type")
		return nil, fault.New(fault.KindUnroutableQuery, "query.unroutable").
			WithDetail("query_type", q.QueryType())
	}

	result, err := handler.Handle(ctx, q, b.reader)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return nil, err
		}
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, "query.not_found", err).
				WithDetail("query_type", q.QueryType())
		}
		return nil, fault.Wrap(fault.KindStorage, "query.failed", err).
			WithDetail("query_type", q.QueryType())
	}
	return result, nil
}
