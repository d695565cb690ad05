package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/tenant"
)

func TestNewEventStore(t *testing.T) {
	st := NewEventStore()
	require.NotNil(t, st)
}

func TestMemoryEventStore_Append(t *testing.T) {
	t.Run("append and read round trip", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		version, err := st.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed", Payload: []byte(`{"sku":"a"}`)},
			{EventType: "order.paid", Payload: []byte(`{}`)},
		})
		require.NoError(t, err)
		require.Equal(t, int64(2), version)

		events, err := st.Read(ctx, "acme", "order-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "order.placed", events[0].EventType)
		require.Equal(t, int64(1), events[0].Version)
		require.Equal(t, int64(2), events[1].Version)
		require.Equal(t, tenant.ID("acme"), events[0].TenantID)
		require.NotEmpty(t, events[0].EventID)
	})

	t.Run("stale expected version returns conflict", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		_, err := st.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed"},
		})
		require.NoError(t, err)

		_, err = st.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.paid"},
		})
		require.ErrorIs(t, err, store.ErrConcurrencyConflict)

		events, err := st.Read(ctx, "acme", "order-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("concurrent appends keep versions gap free", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				// Retry the load-append cycle until the write lands.
				for {
					events, _ := st.Read(ctx, "acme", "counter", 0)
					_, err := st.Append(ctx, "acme", "counter", "counter", int64(len(events)), []models.NewEvent{
						{EventType: "counter.incremented"},
					})
					if err == nil {
						return
					}
				}
			}()
		}
		wg.Wait()

		events, err := st.Read(ctx, "acme", "counter", 0)
		require.NoError(t, err)
		require.Len(t, events, writers)
		for i, evt := range events {
			require.Equal(t, int64(i+1), evt.Version)
		}
	})

	t.Run("read from version returns tail only", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			_, err := st.Append(ctx, "acme", "order", "order-1", int64(i), []models.NewEvent{
				{EventType: fmt.Sprintf("event-%d", i+1)},
			})
			require.NoError(t, err)
		}

		events, err := st.Read(ctx, "acme", "order-1", 3)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, int64(4), events[0].Version)
		require.Equal(t, int64(5), events[1].Version)
	})
}

func TestMemoryEventStore_TenantIsolation(t *testing.T) {
	t.Run("streams with the same aggregate id do not collide", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		_, err := st.Append(ctx, "tenant-one", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed", Payload: []byte(`{"tenant":"one"}`)},
		})
		require.NoError(t, err)

		_, err = st.Append(ctx, "tenant-two", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed", Payload: []byte(`{"tenant":"two"}`)},
		})
		require.NoError(t, err)

		one, err := st.Read(ctx, "tenant-one", "order-1", 0)
		require.NoError(t, err)
		require.Len(t, one, 1)
		require.JSONEq(t, `{"tenant":"one"}`, string(one[0].Payload))

		two, err := st.Read(ctx, "tenant-two", "order-1", 0)
		require.NoError(t, err)
		require.Len(t, two, 1)
		require.JSONEq(t, `{"tenant":"two"}`, string(two[0].Payload))
	})

	t.Run("context bound to another tenant is denied", func(t *testing.T) {
		st := NewEventStore()
		ctx := tenant.WithContext(context.Background(), "tenant-one")

		_, err := st.Append(ctx, "tenant-two", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed"},
		})
		require.ErrorIs(t, err, store.ErrAccessDenied)

		_, err = st.Read(ctx, "tenant-two", "order-1", 0)
		require.ErrorIs(t, err, store.ErrAccessDenied)

		_, err = st.ReadAll(ctx, "tenant-two", 0, 10)
		require.ErrorIs(t, err, store.ErrAccessDenied)
	})
}

func TestMemoryEventStore_ReadAll(t *testing.T) {
	t.Run("returns commit order across aggregates", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		_, err := st.Append(ctx, "acme", "order", "order-1", 0, []models.NewEvent{
			{EventType: "order.placed"},
		})
		require.NoError(t, err)
		_, err = st.Append(ctx, "acme", "invoice", "invoice-1", 0, []models.NewEvent{
			{EventType: "invoice.raised"},
		})
		require.NoError(t, err)
		_, err = st.Append(ctx, "acme", "order", "order-1", 1, []models.NewEvent{
			{EventType: "order.paid"},
		})
		require.NoError(t, err)

		events, err := st.ReadAll(ctx, "acme", 0, 10)
		require.NoError(t, err)
		require.Len(t, events, 3)
		require.Equal(t, "order.placed", events[0].EventType)
		require.Equal(t, "invoice.raised", events[1].EventType)
		require.Equal(t, "order.paid", events[2].EventType)
		for i, evt := range events {
			require.Equal(t, int64(i+1), evt.Position)
		}
	})

	t.Run("resumes from position with limit", func(t *testing.T) {
		st := NewEventStore()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			_, err := st.Append(ctx, "acme", "order", "order-1", int64(i), []models.NewEvent{
				{EventType: fmt.Sprintf("event-%d", i+1)},
			})
			require.NoError(t, err)
		}

		events, err := st.ReadAll(ctx, "acme", 2, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, int64(3), events[0].Position)
		require.Equal(t, int64(4), events[1].Position)
	})
}
