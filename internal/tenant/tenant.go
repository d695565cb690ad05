package tenant

import (
	"context"
	"errors"
	"fmt"
)

// MaxIDLength bounds tenant identifiers so they can be used as index keys
// across all storage backends.
const MaxIDLength = 64

// ErrInvalidID is returned when a tenant identifier fails validation.
var ErrInvalidID = errors.New("invalid tenant id")

// ID identifies a tenant. It is opaque to the core: the only guarantees are
// uniqueness and the character/length constraints enforced by Parse.
type ID string

// Parse validates a raw string and returns it as a tenant ID.
func Parse(s string) (ID, error) {
	id := ID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks the identifier is non-empty, within length bounds, and uses
// only lowercase alphanumerics, '-', '_' and '.'.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidID, MaxIDLength)
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidID, c)
		}
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}

type contextKey struct{}

// WithContext returns a context carrying the acting tenant. Every operation
// that reaches a storage backend must run under a context produced here.
func WithContext(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the tenant carried by the context, if any.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(contextKey{}).(ID)
	return id, ok
}
