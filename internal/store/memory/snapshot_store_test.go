package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
)

func TestMemorySnapshotStore(t *testing.T) {
	t.Run("save and load", func(t *testing.T) {
		st := NewSnapshotStore()
		ctx := context.Background()

		err := st.Save(ctx, &models.Snapshot{
			TenantID:    "acme",
			AggregateID: "order-1",
			Version:     10,
			State:       []byte(`{"total":42}`),
			TakenAt:     time.Now(),
		})
		require.NoError(t, err)

		snap, err := st.Load(ctx, "acme", "order-1")
		require.NoError(t, err)
		require.Equal(t, int64(10), snap.Version)
		require.JSONEq(t, `{"total":42}`, string(snap.State))
	})

	t.Run("save replaces previous snapshot", func(t *testing.T) {
		st := NewSnapshotStore()
		ctx := context.Background()

		require.NoError(t, st.Save(ctx, &models.Snapshot{
			TenantID: "acme", AggregateID: "order-1", Version: 10, State: []byte(`1`),
		}))
		require.NoError(t, st.Save(ctx, &models.Snapshot{
			TenantID: "acme", AggregateID: "order-1", Version: 20, State: []byte(`2`),
		}))

		snap, err := st.Load(ctx, "acme", "order-1")
		require.NoError(t, err)
		require.Equal(t, int64(20), snap.Version)
	})

	t.Run("load missing snapshot", func(t *testing.T) {
		st := NewSnapshotStore()
		_, err := st.Load(context.Background(), "acme", "missing")
		require.ErrorIs(t, err, store.ErrSnapshotNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		st := NewSnapshotStore()
		ctx := context.Background()

		require.NoError(t, st.Save(ctx, &models.Snapshot{
			TenantID: "acme", AggregateID: "order-1", Version: 10, State: []byte(`1`),
		}))
		require.NoError(t, st.Delete(ctx, "acme", "order-1"))

		_, err := st.Load(ctx, "acme", "order-1")
		require.ErrorIs(t, err, store.ErrSnapshotNotFound)
	})
}
