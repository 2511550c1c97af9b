package health

import (
	"context"

	"github.com/jonwraymond/toolscope/auth"
	"github.com/jonwraymond/toolscope/policy"
)

// PermissionsChecker reports on the loaded permission table.
type PermissionsChecker struct {
	table *policy.Table
}

// NewPermissionsChecker creates a checker for table.
func NewPermissionsChecker(table *policy.Table) *PermissionsChecker {
	return &PermissionsChecker{table: table}
}

// Name returns "permissions".
func (p *PermissionsChecker) Name() string {
	return "permissions"
}

// Check is Healthy when the table has entries including a guest entry, and
// Degraded otherwise. Malformed entries skipped at load time are listed in
// the details.
func (p *PermissionsChecker) Check(ctx context.Context) Result {
	details := map[string]any{
		"groups": p.table.Len(),
	}
	if skipped := p.table.Skipped(); len(skipped) > 0 {
		details["skipped"] = skipped
	}

	switch {
	case p.table.Len() == 0:
		return Degraded("permission table is empty; all callers get the default guest permission").WithDetails(details)
	case !p.table.Has(auth.GuestGroup):
		return Degraded("permission table has no guest entry; unmatched callers get the default guest permission").WithDetails(details)
	case len(p.table.Skipped()) > 0:
		return Degraded("permission table has malformed entries").WithDetails(details)
	default:
		return Healthy("permission table loaded").WithDetails(details)
	}
}
