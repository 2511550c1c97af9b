package auth

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolscope/observe"
)

// Resolver turns request headers into an Identity.
//
// Contract:
// - Concurrency: safe for concurrent use; a Resolver holds no mutable state.
// - Errors: never returns one. Undecodable credentials resolve to the guest
// group and are logged at warn level without the credential itself.
type Resolver struct {
	logger observe.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l observe.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveIdentity returns the caller's identity. Groups is never empty.
func (r *Resolver) ResolveIdentity(ctx context.Context, headers Headers) *Identity {
	header := headers.Authorization()
	if header == "" {
		r.logger.Debug(ctx, "no authorization header found")
		return GuestIdentity()
	}

	claims, err := DecodeClaims(header)
	if err != nil {
		if !errors.Is(err, ErrMissingCredentials) {
			r.logger.Warn(ctx, "failed to decode credential", observe.F("error", err.Error()))
		}
		id := GuestIdentity()
		id.DecodeErr = err
		return id
	}

	id := &Identity{
		Principal: claims.Principal(),
		Groups:    claims.Groups(),
		Method:    AuthMethodJWT,
		Claims:    claims.Raw,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
	}
	if len(id.Groups) == 0 {
		id.Groups = []string{GuestGroup}
	}

	r.logger.Debug(ctx, "resolved caller groups",
		observe.F("principal", id.Principal),
		observe.F("groups", id.Groups),
	)
	return id
}

// ResolveGroups returns the caller's groups, or ["guest"] when the
// credential is absent, undecodable or carries no group claim.
func (r *Resolver) ResolveGroups(ctx context.Context, headers Headers) []string {
	return r.ResolveIdentity(ctx, headers).Groups
}
