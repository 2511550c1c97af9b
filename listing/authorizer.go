package listing

import (
	"context"

	"github.com/jonwraymond/toolscope/auth"
	"github.com/jonwraymond/toolscope/policy"
)

// Authorizer permits calls to exactly the tools Filter would keep for the
// caller.
type Authorizer struct {
	table *policy.Table
}

// NewAuthorizer creates an Authorizer backed by table.
func NewAuthorizer(table *policy.Table) *Authorizer {
	return &Authorizer{table: table}
}

// Name returns "listing".
func (a *Authorizer) Name() string {
	return "listing"
}

// Authorize checks req.Tool against the subject's effective permissions.
func (a *Authorizer) Authorize(_ context.Context, req *auth.AuthzRequest) error {
	groups := []string{auth.GuestGroup}
	principal := ""
	if req.Subject != nil {
		principal = req.Subject.Principal
		if len(req.Subject.Groups) > 0 {
			groups = req.Subject.Groups
		}
	}

	if Permitted(req.Tool, a.table.Resolve(groups)) {
		return nil
	}
	return &auth.AuthzError{
		Subject: principal,
		Tool:    req.Tool,
		Action:  req.Action,
		Reason:  "tool not visible to caller's groups",
	}
}

var _ auth.Authorizer = (*Authorizer)(nil)
