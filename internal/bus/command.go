// Package bus routes commands and queries to their registered handlers,
// gating every dispatch on a resolved, authorized tenant context. Commands
// reach the event store through their handlers; queries only ever see
// projection read models.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/audit"
	"github.com/wolfeidau/foundation/internal/auth"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Command is a request to change state. Commands are transient: only the
// events they produce are persisted.
type Command interface {
	// CommandType is the stable tag the bus routes on.
	CommandType() string
	TenantID() tenant.ID
	AggregateID() string
	// Permission is the grant required to dispatch this command.
	Permission() models.Permission
}

// CommandResult reports the events a successful dispatch committed.
type CommandResult struct {
	Events     []models.Event
	NewVersion int64
}

// CommandHandler executes one command type: load current aggregate state,
// validate invariants, append resulting events. Handlers are retried on
// concurrency conflicts and so must not perform non-idempotent external side
// effects before their append succeeds.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (*CommandResult, error)
}

// CommandHandlerFunc adapts a function to the CommandHandler interface.
type CommandHandlerFunc func(ctx context.Context, cmd Command) (*CommandResult, error)

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (*CommandResult, error) {
	return f(ctx, cmd)
}

// Notifier is told which tenant committed events so projection consumers can
// wake promptly instead of waiting out their poll interval.
type Notifier interface {
	Notify(tenantID tenant.ID)
}

// CommandBusConfig configures dispatch retry behavior.
type CommandBusConfig struct {
	// MaxAttempts bounds handler cycles per dispatch when appends hit
	// concurrency conflicts. Conflicts are the only retried failure.
	// Default: 3
	MaxAttempts uint

	// RetryInitialInterval is the first backoff delay between attempts.
	// Default: 10ms
	RetryInitialInterval time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *CommandBusConfig) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = 10 * time.Millisecond
	}
}

// CommandBus routes each command to exactly one handler.
type CommandBus struct {
	authz    *auth.Resolver
	recorder audit.Recorder
	notifier Notifier
	cfg      CommandBusConfig

	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewCommandBus creates a command bus. The notifier may be nil.
func NewCommandBus(authz *auth.Resolver, recorder audit.Recorder, notifier Notifier, cfg CommandBusConfig) *CommandBus {
	cfg.ApplyDefaults()
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &CommandBus{
		authz:    authz,
		recorder: recorder,
		notifier: notifier,
		cfg:      cfg,
		handlers: make(map[string]CommandHandler),
	}
}

// Register binds a handler to a command type. Exactly one handler per type;
// a duplicate registration is a programming error.
func (b *CommandBus) Register(commandType string, handler CommandHandler) error {
	if commandType == "" {
		return fmt.Errorf("command type is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		return fmt.Errorf("handler already registered for command type %s", commandType)
	}
	b.handlers[commandType] = handler
	return nil
}

// Dispatch authorizes and executes the command, retrying the full handler
// cycle on concurrency conflicts up to the configured attempt bound. Events
// are durable only once the handler's append succeeded; at most one
// successful append happens per dispatch.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (*CommandResult, error) {
	if err := cmd.TenantID().Validate(); err != nil {
		return nil, fault.Wrap(fault.KindValidation, "command.tenant_invalid", err)
	}

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fault.New(fault.KindAccessDenied, "command.principal_missing").
			WithDetail("command_type", cmd.CommandType())
	}
	if principal.TenantID != cmd.TenantID() {
		return nil, fault.New(fault.KindAccessDenied, "command.tenant_mismatch").
			WithDetail("command_type", cmd.CommandType())
	}

	ctx = tenant.WithContext(ctx, cmd.TenantID())

	perm := cmd.Permission()
	if err := b.authz.Authorize(ctx, principal.PrincipalID, cmd.TenantID(), perm.Resource, perm.Action); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		log.Error().
			Str("command_type", cmd.CommandType()).
			Str("tenant_id", cmd.TenantID().String()).
			Msg("No handler registered for command type")
		return nil, fault.New(fault.KindUnroutableCommand, "command.unroutable").
			WithDetail("command_type", cmd.CommandType())
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.cfg.RetryInitialInterval

	attempt := 0
	operation := func() (*CommandResult, error) {
		attempt++
		result, err := handler.Handle(ctx, cmd)
		if err != nil {
			// Concurrency conflicts restart the handler cycle (reload,
			// re-validate, re-append); everything else surfaces immediately.
			if errors.Is(err, store.ErrConcurrencyConflict) {
				log.Debug().
					Str("command_type", cmd.CommandType()).
					Str("aggregate_id", cmd.AggregateID()).
					Int("attempt", attempt).
					Msg("Concurrency conflict, retrying handler")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(b.cfg.MaxAttempts),
	)
	if err != nil {
		return nil, b.wrapDispatchError(cmd, err)
	}

	b.recorder.Record(ctx, audit.Entry{
		TenantID:  cmd.TenantID(),
		Principal: principal.PrincipalID,
		Action:    cmd.CommandType(),
		Resource:  cmd.AggregateID(),
		Outcome:   audit.OutcomeSuccess,
	})

	if b.notifier != nil && len(result.Events) > 0 {
		b.notifier.Notify(cmd.TenantID())
	}

	return result, nil
}

// wrapDispatchError maps handler and storage errors onto the boundary
// taxonomy. Faults produced by handlers pass through unchanged.
func (b *CommandBus) wrapDispatchError(cmd Command, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrConcurrencyConflict):
		return fault.Wrap(fault.KindConcurrencyConflict, "command.conflict", err).
			WithDetail("command_type", cmd.CommandType()).
			WithDetail("aggregate_id", cmd.AggregateID())
	case errors.Is(err, store.ErrAccessDenied):
		return fault.Wrap(fault.KindAccessDenied, "command.tenant_mismatch", err).
			WithDetail("command_type", cmd.CommandType())
	default:
		return fault.Wrap(fault.KindStorage, "command.failed", err).
			WithDetail("command_type", cmd.CommandType()).
			WithDetail("aggregate_id", cmd.AggregateID())
	}
}
