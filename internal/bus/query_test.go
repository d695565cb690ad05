package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/foundation/internal/auth"
	"github.com/wolfeidau/foundation/internal/fault"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
	"github.com/wolfeidau/foundation/internal/store/memory"
	"github.com/wolfeidau/foundation/internal/tenant"
)

type testQuery struct {
	queryType  string
	tenantID   tenant.ID
	permission models.Permission
}

func (q testQuery) QueryType() string             { return q.queryType }
func (q testQuery) TenantID() tenant.ID           { return q.tenantID }
func (q testQuery) Permission() models.Permission { return q.permission }

func setupQueryBus(t *testing.T) (*QueryBus, *memory.ProjectionStore, context.Context) {
	t.Helper()

	roles := memory.NewRoleStore()
	ctx := context.Background()
	require.NoError(t, roles.UpsertRole(ctx, "acme", &models.Role{
		Name:        "viewer",
		Permissions: []models.Permission{{Resource: "widgets", Action: "read"}},
	}))
	require.NoError(t, roles.AssignRole(ctx, "acme", "user-1", "viewer"))

	readModels := memory.NewProjectionStore()
	resolver := auth.NewResolver(roles, nil, auth.ResolverConfig{})
	bus := NewQueryBus(resolver, readModels)

	ctx = auth.WithPrincipal(ctx, &auth.Principal{PrincipalID: "user-1", TenantID: "acme"})
	return bus, readModels, ctx
}

func TestQueryBus_Dispatch(t *testing.T) {
	query := testQuery{
		queryType:  "widget.by_id",
		tenantID:   "acme",
		permission: models.Permission{Resource: "widgets", Action: "read"},
	}

	t.Run("handler reads through the read model and reports position", func(t *testing.T) {
		bus, readModels, ctx := setupQueryBus(t)

		err := readModels.ApplyBatch(ctx, "acme", "widgets", false, []store.DocumentPut{
			{Key: "widget/widget-1", Value: []byte(`{"name":"anvil"}`)},
		}, 7)
		require.NoError(t, err)

		require.NoError(t, bus.Register("widget.by_id", QueryHandlerFunc(func(ctx context.Context, q Query, reader store.ReadModelReader) (*QueryResult, error) {
			value, err := reader.Get(ctx, q.TenantID(), "widgets", "widget/widget-1")
			if err != nil {
				return nil, err
			}
			position, err := reader.Checkpoint(ctx, q.TenantID(), "widgets")
			if err != nil {
				return nil, err
			}
			return &QueryResult{Data: string(value), Position: position}, nil
		})))

		result, err := bus.Dispatch(ctx, query)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"anvil"}`, result.Data.(string))
		require.Equal(t, int64(7), result.Position)
	})

	t.Run("unroutable query", func(t *testing.T) {
		bus, _, ctx := setupQueryBus(t)

		_, err := bus.Dispatch(ctx, query)
		require.True(t, fault.IsKind(err, fault.KindUnroutableQuery))
	})

	t.Run("missing document surfaces as a not-found fault", func(t *testing.T) {
		bus, _, ctx := setupQueryBus(t)

		require.NoError(t, bus.Register("widget.by_id", QueryHandlerFunc(func(ctx context.Context, q Query, reader store.ReadModelReader) (*QueryResult, error) {
			_, err := reader.Get(ctx, q.TenantID(), "widgets", "widget/missing")
			return nil, err
		})))

		_, err := bus.Dispatch(ctx, query)
		require.True(t, fault.IsKind(err, fault.KindNotFound))
		require.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("unauthorized principal", func(t *testing.T) {
		bus, _, ctx := setupQueryBus(t)

		denied := query
		denied.permission = models.Permission{Resource: "widgets", Action: "export"}

		_, err := bus.Dispatch(ctx, denied)
		require.True(t, fault.IsKind(err, fault.KindAccessDenied))
	})

	t.Run("principal from another tenant", func(t *testing.T) {
		bus, _, _ := setupQueryBus(t)

		ctx := auth.WithPrincipal(context.Background(), &auth.Principal{
			PrincipalID: "user-1",
			TenantID:    "rival",
		})

		_, err := bus.Dispatch(ctx, query)
		require.True(t, fault.IsKind(err, fault.KindAccessDenied))
	})
}
