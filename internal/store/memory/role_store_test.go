package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/foundation/internal/models"
	"github.com/wolfeidau/foundation/internal/store"
)

func TestMemoryRoleStore(t *testing.T) {
	t.Run("upsert and get role", func(t *testing.T) {
		st := NewRoleStore()
		ctx := context.Background()

		err := st.UpsertRole(ctx, "acme", &models.Role{
			Name:        "editor",
			Permissions: []models.Permission{{Resource: "documents", Action: "update"}},
		})
		require.NoError(t, err)

		role, err := st.GetRole(ctx, "acme", "editor")
		require.NoError(t, err)
		require.Equal(t, "editor", role.Name)
		require.Len(t, role.Permissions, 1)
	})

	t.Run("get unknown role", func(t *testing.T) {
		st := NewRoleStore()
		_, err := st.GetRole(context.Background(), "acme", "missing")
		require.ErrorIs(t, err, store.ErrRoleNotFound)
	})

	t.Run("assign unknown role fails", func(t *testing.T) {
		st := NewRoleStore()
		err := st.AssignRole(context.Background(), "acme", "user-1", "missing")
		require.ErrorIs(t, err, store.ErrRoleNotFound)
	})

	t.Run("roles for principal", func(t *testing.T) {
		st := NewRoleStore()
		ctx := context.Background()

		require.NoError(t, st.UpsertRole(ctx, "acme", &models.Role{Name: "editor"}))
		require.NoError(t, st.UpsertRole(ctx, "acme", &models.Role{Name: "viewer"}))
		require.NoError(t, st.AssignRole(ctx, "acme", "user-1", "editor"))
		require.NoError(t, st.AssignRole(ctx, "acme", "user-1", "viewer"))

		// Re-assignment is a no-op.
		require.NoError(t, st.AssignRole(ctx, "acme", "user-1", "editor"))

		roles, err := st.RolesFor(ctx, "acme", "user-1")
		require.NoError(t, err)
		require.Len(t, roles, 2)

		require.NoError(t, st.UnassignRole(ctx, "acme", "user-1", "viewer"))
		roles, err = st.RolesFor(ctx, "acme", "user-1")
		require.NoError(t, err)
		require.Len(t, roles, 1)
		require.Equal(t, "editor", roles[0].Name)
	})

	t.Run("assignments are tenant scoped", func(t *testing.T) {
		st := NewRoleStore()
		ctx := context.Background()

		require.NoError(t, st.UpsertRole(ctx, "tenant-one", &models.Role{Name: "admin"}))
		require.NoError(t, st.AssignRole(ctx, "tenant-one", "user-1", "admin"))

		roles, err := st.RolesFor(ctx, "tenant-two", "user-1")
		require.NoError(t, err)
		require.Empty(t, roles)
	})

	t.Run("delete role removes assignments", func(t *testing.T) {
		st := NewRoleStore()
		ctx := context.Background()

		require.NoError(t, st.UpsertRole(ctx, "acme", &models.Role{Name: "editor"}))
		require.NoError(t, st.AssignRole(ctx, "acme", "user-1", "editor"))
		require.NoError(t, st.DeleteRole(ctx, "acme", "editor"))

		roles, err := st.RolesFor(ctx, "acme", "user-1")
		require.NoError(t, err)
		require.Empty(t, roles)
	})
}
