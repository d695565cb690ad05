// Package projection keeps read models current by folding committed events
// into documents, one runner per projection and tenant. Runners checkpoint
// atomically with their writes, so a crash never double-applies or skips an
// event.
package projection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// State is the lifecycle state of one runner.
type State string

const (
	StateIdle       State = "idle"
	StateCatchingUp State = "catching_up"
	StateLive       State = "live"
	StateRebuilding State = "rebuilding"
	StateStalled    State = "stalled"
)

// Projection folds events into read-model document writes. Implementations
// must be deterministic: replaying the same events yields the same documents,
// which is what makes rebuilds equivalent to incremental folding.
type Projection interface {
	// Name identifies the projection's read model namespace.
	Name() string

	// Apply returns the document writes for one event.
	Apply(evt models.Event) ([]store.DocumentPut, error)

	// Ignores reports whether the event type is irrelevant to this
	// projection. Ignored events advance the checkpoint without folding.
	Ignores(eventType string) bool
}

// Config configures runner behavior.
type Config struct {
	// PollInterval is how often runners check for new events when no commit
	// notification arrives.
	// Default: 500ms
	PollInterval time.Duration

	// BatchSize bounds how many events a runner folds per storage round trip.
	// Default: 256
	BatchSize int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.BatchSize == 0 {
		c.BatchSize = 256
	}
}

// RunnerStatus is a point-in-time view of one runner.
type RunnerStatus struct {
	Projection string
	TenantID   tenant.ID
	State      State
	Position   int64
	Err        error
}

type runnerKey struct {
	projection string
	tenantID   tenant.ID
}

type runner struct {
	projection Projection
	tenantID   tenant.ID
	wake       chan struct{}

	mu       sync.Mutex
	state    State
	position int64
	err      error
	running  bool
}

func (r *runner) setState(state State, err error) {
	r.mu.Lock()
	r.state = state
	r.err = err
	r.mu.Unlock()
}

func (r *runner) setPosition(position int64) {
	r.mu.Lock()
	r.position = position
	r.mu.Unlock()
}

func (r *runner) status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunnerStatus{
		Projection: r.projection.Name(),
		TenantID:   r.tenantID,
		State:      r.state,
		Position:   r.position,
		Err:        r.err,
	}
}

// Manager owns the runners. It implements the command bus Notifier so
// dispatches wake the affected tenant's runners immediately.
type Manager struct {
	events     store.EventStore
	readModels store.ProjectionStore
	cfg        Config

	mu      sync.Mutex
	runners map[runnerKey]*runner

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewManager creates a projection manager. Call Start before registering
// projections.
func NewManager(events store.EventStore, readModels store.ProjectionStore, cfg Config) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		events:     events,
		readModels: readModels,
		cfg:        cfg,
		runners:    make(map[runnerKey]*runner),
	}
}

// Start binds the manager to ctx. Runners stop when ctx is cancelled; Wait
// blocks until they have all exited.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Wait blocks until all runners have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Register starts a runner folding the projection for the tenant, resuming
// from its stored checkpoint.
func (m *Manager) Register(p Projection, tenantID tenant.ID) error {
	if err := tenantID.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseCtx == nil {
		return fmt.Errorf("manager not started")
	}

	key := runnerKey{projection: p.Name(), tenantID: tenantID}
	if _, exists := m.runners[key]; exists {
		return fmt.Errorf("runner already registered for projection %s tenant %s", p.Name(), tenantID)
	}

	r := &runner{
		projection: p,
		tenantID:   tenantID,
		wake:       make(chan struct{}, 1),
		state:      StateIdle,
		running:    true,
	}
	m.runners[key] = r

	m.wg.Add(1)
	go m.run(m.baseCtx, r)
	return nil
}

// Notify wakes every runner for the tenant. Safe to call from any goroutine;
// never blocks.
func (m *Manager) Notify(tenantID tenant.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, r := range m.runners {
		if key.tenantID != tenantID {
			continue
		}
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// Status reports the current state of every runner.
func (m *Manager) Status() []RunnerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]RunnerStatus, 0, len(m.runners))
	for _, r := range m.runners {
		statuses = append(statuses, r.status())
	}
	return statuses
}

func (m *Manager) run(ctx context.Context, r *runner) {
	defer m.wg.Done()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	r.setState(StateCatchingUp, nil)

	for {
		if err := m.drain(ctx, r); err != nil {
			if ctx.Err() != nil {
				r.setState(StateIdle, nil)
				return
			}
			r.setState(StateStalled, err)
			log.Error().
				Err(err).
				Str("projection", r.projection.Name()).
				Str("tenant_id", r.tenantID.String()).
				Msg("Projection runner stalled")
			return
		}
		r.setState(StateLive, nil)

		select {
		case <-ctx.Done():
			r.setState(StateIdle, nil)
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// drain folds committed events until the runner has caught up to the
// tenant's commit position.
func (m *Manager) drain(ctx context.Context, r *runner) error {
	name := r.projection.Name()

	for {
		position, err := m.readModels.Checkpoint(ctx, r.tenantID, name)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint: %w", err)
		}
		r.setPosition(position)

		events, err := m.events.ReadAll(ctx, r.tenantID, position, m.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		puts, applied, foldErr := m.fold(r.projection, events)
		if applied > 0 {
			last := events[applied-1]
			if err := m.readModels.ApplyBatch(ctx, r.tenantID, name, false, puts, last.Position); err != nil {
				return fmt.Errorf("failed to apply batch: %w", err)
			}
			r.setPosition(last.Position)
		}
		if foldErr != nil {
			return foldErr
		}
	}
}

// fold turns a batch of events into document writes. On a fold error it
// returns the writes for the prefix of events before the failing one, so the
// checkpoint lands exactly at the fault line.
func (m *Manager) fold(p Projection, events []models.Event) ([]store.DocumentPut, int, error) {
	var puts []store.DocumentPut

	for i, evt := range events {
		if p.Ignores(evt.EventType) {
			continue
		}
		batch, err := p.Apply(evt)
		if err != nil {
			return puts, i, fault.Wrap(fault.KindProjectionStalled, "projection.fold_failed", err).
				WithDetail("projection", p.Name()).
				WithDetail("event_type", evt.EventType).
				WithDetail("position", fmt.Sprintf("%d", evt.Position))
		}
		puts = append(puts, batch...)
	}
	return puts, len(events), nil
}

// Rebuild refolds the projection for the tenant from position zero into a
// staging generation, then promotes it atomically. The live generation keeps
// serving reads throughout. Synchronous; returns once the swap is done. A
// stalled runner is restarted on success.
func (m *Manager) Rebuild(ctx context.Context, p Projection, tenantID tenant.ID) error {
	if err := tenantID.Validate(); err != nil {
		return err
	}

	name := p.Name()
	key := runnerKey{projection: name, tenantID: tenantID}

	m.mu.Lock()
	r := m.runners[key]
	m.mu.Unlock()
	if r != nil {
		r.setState(StateRebuilding, nil)
	}

	log.Info().
		Str("projection", name).
		Str("tenant_id", tenantID.String()).
		Msg("Rebuilding projection")

	if err := m.readModels.BeginRebuild(ctx, tenantID, name); err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}

	var position int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := m.events.ReadAll(ctx, tenantID, position, m.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read events: %w", err)
		}
		if len(events) == 0 {
			break
		}

		puts, applied, foldErr := m.fold(p, events)
		if foldErr != nil {
			if r != nil {
				r.setState(StateStalled, foldErr)
			}
			return foldErr
		}

		last := events[applied-1]
		if err := m.readModels.ApplyBatch(ctx, tenantID, name, true, puts, last.Position); err != nil {
			return fmt.Errorf("failed to apply staged batch: %w", err)
		}
		position = last.Position
	}

	if err := m.readModels.CompleteRebuild(ctx, tenantID, name); err != nil {
		return fmt.Errorf("failed to complete rebuild: %w", err)
	}

	log.Info().
		Str("projection", name).
		Str("tenant_id", tenantID.String()).
		Int64("position", position).
		Msg("Rebuild complete")

	if r != nil {
		m.restartIfStalled(r)
	}
	return nil
}

// restartIfStalled relaunches a runner whose goroutine exited after a fold
// error. A rebuild that succeeded means the fault was in stale read-model
// state, not the event stream, so the runner gets another go. A runner whose
// loop is still alive is left untouched.
func (m *Manager) restartIfStalled(r *runner) {
	r.mu.Lock()
	relaunch := !r.running
	if relaunch {
		r.state = StateCatchingUp
		r.err = nil
		r.running = true
	}
	r.mu.Unlock()

	if !relaunch {
		return
	}

	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.running = false
		r.mu.Unlock()
		return
	}

	m.wg.Add(1)
	go m.run(ctx, r)
}
