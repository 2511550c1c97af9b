package auth

import (
	"context"
	"fmt"
)

// Authorizer determines if an identity may invoke a tool.
type Authorizer interface {
	// Authorize checks if the request is permitted.
	// Returns nil if authorized, or an error (typically *AuthzError) if denied.
	Authorize(ctx context.Context, req *AuthzRequest) error

	// Name returns a unique identifier for this authorizer.
	Name() string
}

// AuthzRequest contains the information needed for authorization.
type AuthzRequest struct {
	// Subject is the identity making the request.
	Subject *Identity

	// Tool is the qualified tool name as sent on the wire.
	Tool string

	// Action is the requested action (e.g., "call").
	Action string
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	// Subject is the principal that was denied.
	Subject string

	// Tool is the tool that was denied.
	Tool string

	// Action is the action that was denied.
	Action string

	// Reason explains why access was denied.
	Reason string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q tool=%q action=%q reason=%q",
		e.Subject, e.Tool, e.Action, e.Reason)
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// AllowAllAuthorizer permits all requests.
type AllowAllAuthorizer struct{}

// Authorize always returns nil (permitted).
func (AllowAllAuthorizer) Authorize(context.Context, *AuthzRequest) error {
	return nil
}

// Name returns "allow_all".
func (AllowAllAuthorizer) Name() string {
	return "allow_all"
}
