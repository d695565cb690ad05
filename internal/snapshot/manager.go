// Package snapshot bounds replay cost by persisting encoded aggregate state
// at intervals. Snapshots are never authoritative: a corrupt or missing
// snapshot only costs a full replay from the event log.
package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

// ErrCorrupt is returned when a stored snapshot fails checksum or format
// validation. Callers fall back to full replay; the manager deletes the
// corrupt row so it isn't revalidated on every load.
var ErrCorrupt = errors.New("snapshot corrupt")

// Blob layout: magic, format version, crc64-nvme of the raw state,
// zstd-compressed state.
var blobMagic = []byte{'F', 'S', 'N', 'P'}

const (
	blobVersion    = 1
	blobHeaderSize = 4 + 1 + 8
)

// Config configures snapshot policy.
type Config struct {
	// Interval is how many events a stream may grow past its last snapshot
	// before Due reports true.
	// Default: 100
	Interval int64
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 100
	}
}

// Manager wraps a SnapshotStore with the blob codec and snapshot policy.
type Manager struct {
	store store.SnapshotStore
	cfg   Config
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewManager creates a snapshot manager over the given store.
func NewManager(snapshots store.SnapshotStore, cfg Config) (*Manager, error) {
	cfg.ApplyDefaults()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Manager{store: snapshots, cfg: cfg, enc: enc, dec: dec}, nil
}

// Due reports whether a stream at version needs a new snapshot given the
// version of its last one (zero when none exists).
func (m *Manager) Due(lastSnapshotVersion, version int64) bool {
	return version-lastSnapshotVersion >= m.cfg.Interval
}

// Save encodes and stores aggregate state at the given stream version,
// replacing any older snapshot for the aggregate.
func (m *Manager) Save(ctx context.Context, tenantID tenant.ID, aggregateID string, version int64, state []byte) error {
	snap := &models.Snapshot{
		TenantID:    tenantID,
		AggregateID: aggregateID,
		Version:     version,
		State:       m.encode(state),
		TakenAt:     time.Now(),
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Debug().
		Str("tenant_id", tenantID.String()).
		Str("aggregate_id", aggregateID).
		Int64("version", version).
		Msg("Saved snapshot")
	return nil
}

// Load returns the aggregate's snapshot with its state decoded and verified.
// Returns store.ErrSnapshotNotFound when none exists and ErrCorrupt when the
// stored blob fails validation; a corrupt snapshot is deleted so the next
// Save regenerates it.
func (m *Manager) Load(ctx context.Context, tenantID tenant.ID, aggregateID string) (*models.Snapshot, error) {
	snap, err := m.store.Load(ctx, tenantID, aggregateID)
	if err != nil {
		return nil, err
	}

	state, err := m.decode(snap.State)
	if err != nil {
		log.Warn().
			Err(err).
			Str("tenant_id", tenantID.String()).
			Str("aggregate_id", aggregateID).
			Msg("Discarding corrupt snapshot")
		if delErr := m.store.Delete(ctx, tenantID, aggregateID); delErr != nil {
			log.Warn().Err(delErr).Msg("Failed to delete corrupt snapshot")
		}
		return nil, err
	}

	snap.State = state
	return snap, nil
}

// Delete removes the aggregate's snapshot. Safe to call at any time; the
// aggregate rebuilds from the event log.
func (m *Manager) Delete(ctx context.Context, tenantID tenant.ID, aggregateID string) error {
	return m.store.Delete(ctx, tenantID, aggregateID)
}

func (m *Manager) encode(state []byte) []byte {
	blob := make([]byte, blobHeaderSize, blobHeaderSize+len(state)/2)
	copy(blob, blobMagic)
	blob[4] = blobVersion
	binary.BigEndian.PutUint64(blob[5:], crc64nvme.Checksum(state))
	return m.enc.EncodeAll(state, blob)
}

func (m *Manager) decode(blob []byte) ([]byte, error) {
	if len(blob) < blobHeaderSize || string(blob[:4]) != string(blobMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if blob[4] != blobVersion {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorrupt, blob[4])
	}

	sum := binary.BigEndian.Uint64(blob[5:blobHeaderSize])
	state, err := m.dec.DecodeAll(blob[blobHeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if crc64nvme.Checksum(state) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return state, nil
}
