// Package requestid carries per-request identifiers through a context so
// that log records from any layer can be correlated.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// MaxLen bounds client-supplied request IDs.
const MaxLen = 128

type (
	requestIDKey struct{}
	userIDKey    struct{}
)

// New generates a random UUID v4 request ID.
func New() string {
	return uuid.NewString()
}

// Accept reports whether a client-supplied ID can be echoed back and logged:
// non-empty, at most MaxLen bytes, printable ASCII without spaces.
func Accept(id string) bool {
	if id == "" || len(id) > MaxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// FromContext extracts the request ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithUserID attaches the authenticated user to ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
