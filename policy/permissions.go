package policy

import (
	"sort"
	"strings"
)

// Wildcard is the token that grants access to every tool.
const Wildcard = "*"

// DefaultGuestPermission is granted when neither the caller's groups nor the
// guest entry yield any token.
const DefaultGuestPermission = "list"

// Permissions is an immutable set of permission tokens, or the all-access
// sentinel. The zero value grants nothing.
type Permissions struct {
	all    bool
	tokens map[string]struct{}
}

// NewPermissions builds a set from tokens. Any "*" token makes the result
// all-access. Empty tokens are ignored.
func NewPermissions(tokens ...string) Permissions {
	p := Permissions{tokens: make(map[string]struct{}, len(tokens))}
	for _, tok := range tokens {
		if tok == Wildcard {
			return AllAccess()
		}
		if tok == "" {
			continue
		}
		p.tokens[tok] = struct{}{}
	}
	return p
}

// AllAccess returns the all-access sentinel.
func AllAccess() Permissions {
	return Permissions{all: true}
}

// IsAllAccess reports whether p grants access to every tool.
func (p Permissions) IsAllAccess() bool {
	return p.all
}

// Contains reports whether token is in the set. The all-access sentinel
// contains every token.
func (p Permissions) Contains(token string) bool {
	if p.all {
		return true
	}
	_, ok := p.tokens[token]
	return ok
}

// Len returns the number of tokens. All-access counts as one.
func (p Permissions) Len() int {
	if p.all {
		return 1
	}
	return len(p.tokens)
}

// IsEmpty reports whether p grants nothing.
func (p Permissions) IsEmpty() bool {
	return p.Len() == 0
}

// Tokens returns the tokens in sorted order. All-access renders as ["*"].
func (p Permissions) Tokens() []string {
	if p.all {
		return []string{Wildcard}
	}
	out := make([]string, 0, len(p.tokens))
	for tok := range p.tokens {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether p and o grant the same tokens.
func (p Permissions) Equal(o Permissions) bool {
	if p.all || o.all {
		return p.all == o.all
	}
	if len(p.tokens) != len(o.tokens) {
		return false
	}
	for tok := range p.tokens {
		if _, ok := o.tokens[tok]; !ok {
			return false
		}
	}
	return true
}

// String renders the set as {a, b}.
func (p Permissions) String() string {
	return "{" + strings.Join(p.Tokens(), ", ") + "}"
}

// union adds the tokens of p to set.
func (p Permissions) union(set map[string]struct{}) {
	for tok := range p.tokens {
		set[tok] = struct{}{}
	}
}
