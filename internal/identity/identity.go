// Package identity carries the authenticated caller through request contexts.
package identity

import (
	"context"
	"strings"
	"time"
)

// Identity is the pre-authenticated caller, keyed by net id.
type Identity struct {
	NetID     string
	TokenID   string
	ExpiresAt time.Time
}

type identityKey struct{}

// WithIdentity binds id to ctx. Blank net ids are ignored.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id.NetID = strings.TrimSpace(id.NetID)
	if id.NetID == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller bound to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.NetID != ""
}

// NetID returns the caller's net id or an empty string.
func NetID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.NetID
}
