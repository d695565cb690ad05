// Package audit emits compliance records for appends and authorization
// decisions. Delivery is fire-and-forget: recording never blocks the primary
// operation, and a record that cannot be buffered is written to the log
// directly rather than dropped.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// Outcome records the result of the audited action.
type Outcome string

const (
	OutcomeAllow   Outcome = "allow"
	OutcomeDeny    Outcome = "deny"
	OutcomeSuccess Outcome = "success"
)

// Entry is a single audit record.
type Entry struct {
	// ID is a short unique identifier assigned on record.
	ID        string
	TenantID  tenant.ID
	Principal string
	Action    string
	Resource  string
	Outcome   Outcome
	Timestamp time.Time
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Nop discards all entries. Useful in tests that don't assert on auditing.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry Entry) {}

// Log is an asynchronous Recorder draining entries to a zerolog logger.
type Log struct {
	logger  zerolog.Logger
	ch      chan Entry
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped atomic.Bool
}

// NewLog creates a log-backed recorder with the given buffer size and starts
// its drain goroutine.
func NewLog(logger zerolog.Logger, buffer int) *Log {
	if buffer <= 0 {
		buffer = 256
	}
	l := &Log{
		logger: logger,
		ch:     make(chan Entry, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go l.drain()
	return l
}

// Record buffers the entry for asynchronous delivery. When the buffer is
// full, or the recorder has been stopped, the entry is written synchronously
// so it is never silently lost.
func (l *Log) Record(ctx context.Context, entry Entry) {
	fill(&entry)
	if l.stopped.Load() {
		l.write(entry)
		return
	}
	select {
	case l.ch <- entry:
	default:
		l.logger.Warn().Msg("Audit buffer full, writing entry synchronously")
		l.write(entry)
	}
}

// Stop flushes buffered entries and stops the drain goroutine. Entries
// recorded after Stop are written synchronously by Record.
func (l *Log) Stop() {
	l.stopped.Store(true)
	close(l.stopCh)
	<-l.doneCh
}

func (l *Log) drain() {
	defer close(l.doneCh)
	for {
		select {
		case entry := <-l.ch:
			l.write(entry)
		case <-l.stopCh:
			for {
				select {
				case entry := <-l.ch:
					l.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Log) write(entry Entry) {
	l.logger.Info().
		Str("audit_id", entry.ID).
		Str("tenant_id", entry.TenantID.String()).
		Str("principal", entry.Principal).
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Str("outcome", string(entry.Outcome)).
		Time("timestamp", entry.Timestamp).
		Msg("audit")
}

// fill assigns the entry identity and timestamp when unset.
func fill(entry *Entry) {
	if entry.ID == "" {
		id := uuid.Must(uuid.NewV7())
		entry.ID = base58.Encode(id[:])
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
}
