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

type testCommand struct {
	commandType string
	tenantID    tenant.ID
	aggregateID string
	permission  models.Permission
}

func (c testCommand) CommandType() string           { return c.commandType }
func (c testCommand) TenantID() tenant.ID           { return c.tenantID }
func (c testCommand) AggregateID() string           { return c.aggregateID }
func (c testCommand) Permission() models.Permission { return c.permission }

type recordingNotifier struct {
	notified []tenant.ID
}

func (n *recordingNotifier) Notify(tenantID tenant.ID) {
	n.notified = append(n.notified, tenantID)
}

func newTestCommand() testCommand {
	return testCommand{
		commandType: "widget.create",
		tenantID:    "acme",
		aggregateID: "widget-1",
		permission:  models.Permission{Resource: "widgets", Action: "create"},
	}
}

// setupCommandBus grants user-1 in acme the widgets permissions and returns a
// context carrying that principal.
func setupCommandBus(t *testing.T, notifier Notifier) (*CommandBus, context.Context) {
	t.Helper()

	roles := memory.NewRoleStore()
	ctx := context.Background()
	require.NoError(t, roles.UpsertRole(ctx, "acme", &models.Role{
		Name:        "maker",
		Permissions: []models.Permission{{Resource: "widgets", Action: "create"}},
	}))
	require.NoError(t, roles.AssignRole(ctx, "acme", "user-1", "maker"))

	resolver := auth.NewResolver(roles, nil, auth.ResolverConfig{})
	bus := NewCommandBus(resolver, nil, notifier, CommandBusConfig{RetryInitialInterval: 1})

	ctx = auth.WithPrincipal(ctx, &auth.Principal{PrincipalID: "user-1", TenantID: "acme"})
	return bus, ctx
}

func TestCommandBus_Register(t *testing.T) {
	bus, _ := setupCommandBus(t, nil)

	handler := CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
		return &CommandResult{}, nil
	})

	require.NoError(t, bus.Register("widget.create", handler))

	err := bus.Register("widget.create", handler)
	require.Error(t, err)
}

func TestCommandBus_Dispatch(t *testing.T) {
	t.Run("routes to the registered handler", func(t *testing.T) {
		notifier := &recordingNotifier{}
		bus, ctx := setupCommandBus(t, notifier)

		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			return &CommandResult{
				Events:     []models.Event{{EventType: "widget.created", TenantID: "acme"}},
				NewVersion: 1,
			}, nil
		})))

		result, err := bus.Dispatch(ctx, newTestCommand())
		require.NoError(t, err)
		require.Equal(t, int64(1), result.NewVersion)
		require.Equal(t, []tenant.ID{"acme"}, notifier.notified)
	})

	t.Run("unroutable command", func(t *testing.T) {
		bus, ctx := setupCommandBus(t, nil)

		_, err := bus.Dispatch(ctx, newTestCommand())
		require.True(t, fault.IsKind(err, fault.KindUnroutableCommand))
	})

	t.Run("missing principal", func(t *testing.T) {
		bus, _ := setupCommandBus(t, nil)

		_, err := bus.Dispatch(context.Background(), newTestCommand())
		require.True(t, fault.IsKind(err, fault.KindAccessDenied))
	})

	t.Run("principal from another tenant", func(t *testing.T) {
		bus, _ := setupCommandBus(t, nil)

		ctx := auth.WithPrincipal(context.Background(), &auth.Principal{
			PrincipalID: "user-1",
			TenantID:    "rival",
		})

		called := false
		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			called = true
			return &CommandResult{}, nil
		})))

		_, err := bus.Dispatch(ctx, newTestCommand())
		require.True(t, fault.IsKind(err, fault.KindAccessDenied))
		require.False(t, called)
	})

	t.Run("unauthorized principal", func(t *testing.T) {
		bus, ctx := setupCommandBus(t, nil)

		cmd := newTestCommand()
		cmd.permission = models.Permission{Resource: "widgets", Action: "delete"}

		called := false
		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			called = true
			return &CommandResult{}, nil
		})))

		_, err := bus.Dispatch(ctx, cmd)
		require.True(t, fault.IsKind(err, fault.KindAccessDenied))
		require.False(t, called)
	})
}

func TestCommandBus_Retry(t *testing.T) {
	t.Run("conflict retried until success", func(t *testing.T) {
		bus, ctx := setupCommandBus(t, nil)

		attempts := 0
		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			attempts++
			if attempts < 3 {
				return nil, store.ErrConcurrencyConflict
			}
			return &CommandResult{NewVersion: int64(attempts)}, nil
		})))

		result, err := bus.Dispatch(ctx, newTestCommand())
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
		require.Equal(t, int64(3), result.NewVersion)
	})

	t.Run("conflict surfaces after attempts are exhausted", func(t *testing.T) {
		bus, ctx := setupCommandBus(t, nil)

		attempts := 0
		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			attempts++
			return nil, store.ErrConcurrencyConflict
		})))

		_, err := bus.Dispatch(ctx, newTestCommand())
		require.True(t, fault.IsKind(err, fault.KindConcurrencyConflict))
		require.Equal(t, 3, attempts)
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		bus, ctx := setupCommandBus(t, nil)

		attempts := 0
		require.NoError(t, bus.Register("widget.create", CommandHandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			attempts++
			return nil, fault.New(fault.KindValidation, "widget.name_required")
		})))

		_, err := bus.Dispatch(ctx, newTestCommand())
		require.True(t, fault.IsKind(err, fault.KindValidation))
		require.Equal(t, 1, attempts)
	})
}
