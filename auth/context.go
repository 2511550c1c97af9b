package auth

import (
	"context"
)

type contextKey int

const (
	identityKey contextKey = iota
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// PrincipalFromContext retrieves the principal from the context.
// Returns empty string if no identity is present.
func PrincipalFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.Principal
}

// GroupsFromContext retrieves the caller's groups from the context.
// Returns the guest group if no identity is present.
func GroupsFromContext(ctx context.Context) []string {
	id := IdentityFromContext(ctx)
	if id == nil || len(id.Groups) == 0 {
		return []string{GuestGroup}
	}
	return id.Groups
}
