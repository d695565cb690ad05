package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := New(KindAccessDenied, "auth.denied")

	require.ErrorIs(t, err, New(KindAccessDenied, "auth.denied"))
	// An empty message key matches any fault of the kind.
	require.ErrorIs(t, err, New(KindAccessDenied, ""))
	require.NotErrorIs(t, err, New(KindValidation, ""))
	require.NotErrorIs(t, err, New(KindAccessDenied, "auth.other"))
}

func TestError_Wrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStorage, "store.unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "storage")
	require.Contains(t, err.Error(), "store.unavailable")
	require.Contains(t, err.Error(), "connection refused")
}

func TestError_WithDetail(t *testing.T) {
	err := New(KindConcurrencyConflict, "command.conflict").
		WithDetail("aggregate_id", "order-1").
		WithDetail("tenant_id", "acme")

	require.Equal(t, "order-1", err.Details["aggregate_id"])
	require.Equal(t, "acme", err.Details["tenant_id"])
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(New(KindValidation, "bad")))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))

	// Kind survives wrapping by callers.
	wrapped := fmt.Errorf("dispatch: %w", New(KindUnroutableCommand, "command.unroutable"))
	require.True(t, IsKind(wrapped, KindUnroutableCommand))
}
