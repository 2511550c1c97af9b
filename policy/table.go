package policy

import (
	"sort"

	"github.com/jonwraymond/toolscope/auth"
)

// Table maps group names to their permissions.
//
// Contract:
// - Immutability: a Table never changes after construction.
// - Concurrency: safe for concurrent use without locks.
// - Nil: a nil *Table behaves like an empty table.
type Table struct {
	entries map[string]Permissions
	skipped []string
}

// NewTable builds a Table from a group -> tokens mapping. The input is
// copied, so later changes to it are not observed.
func NewTable(entries map[string][]string) *Table {
	t := &Table{entries: make(map[string]Permissions, len(entries))}
	for group, tokens := range entries {
		t.entries[group] = NewPermissions(tokens...)
	}
	return t
}

// Lookup returns the permissions granted to group.
func (t *Table) Lookup(group string) (Permissions, bool) {
	if t == nil {
		return Permissions{}, false
	}
	p, ok := t.entries[group]
	return p, ok
}

// Has reports whether the table has an entry for group.
func (t *Table) Has(group string) bool {
	_, ok := t.Lookup(group)
	return ok
}

// Len returns the number of groups in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Groups returns the group names in sorted order.
func (t *Table) Groups() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.entries))
	for g := range t.entries {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Skipped returns the groups whose entries were malformed and left out when
// the table was parsed.
func (t *Table) Skipped() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.skipped...)
}

// Resolve computes the effective permissions for groups.
//
// Groups are walked in order. Missing entries contribute nothing. The first
// all-access entry ends the walk. If nothing was granted, the guest entry
// applies, and if that is missing or empty, {"list"}.
func (t *Table) Resolve(groups []string) Permissions {
	set := make(map[string]struct{})
	for _, g := range groups {
		p, ok := t.Lookup(g)
		if !ok {
			continue
		}
		if p.IsAllAccess() {
			return p
		}
		p.union(set)
	}
	if len(set) > 0 {
		return Permissions{tokens: set}
	}

	if guest, ok := t.Lookup(auth.GuestGroup); ok && !guest.IsEmpty() {
		return guest
	}
	return NewPermissions(DefaultGuestPermission)
}

// Resolve computes the effective permissions for groups against table.
func Resolve(groups []string, table *Table) Permissions {
	return table.Resolve(groups)
}
