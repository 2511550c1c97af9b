package auth

import (
	"context"
	"testing"
)

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if got := IdentityFromContext(ctx); got != nil {
		t.Errorf("IdentityFromContext() on empty context = %v, want nil", got)
	}

	identity := &Identity{Principal: "user123", Groups: []string{"admin"}}
	ctx = WithIdentity(ctx, identity)

	got := IdentityFromContext(ctx)
	if got == nil {
		t.Fatal("IdentityFromContext() = nil, want identity")
	}
	if got.Principal != "user123" {
		t.Errorf("Principal = %v, want user123", got.Principal)
	}
}

func TestPrincipalFromContext(t *testing.T) {
	ctx := context.Background()

	if got := PrincipalFromContext(ctx); got != "" {
		t.Errorf("PrincipalFromContext() = %v, want empty", got)
	}

	ctx = WithIdentity(ctx, &Identity{Principal: "user456"})
	if got := PrincipalFromContext(ctx); got != "user456" {
		t.Errorf("PrincipalFromContext() = %v, want user456", got)
	}
}

func TestGroupsFromContext(t *testing.T) {
	ctx := context.Background()

	if got := GroupsFromContext(ctx); len(got) != 1 || got[0] != GuestGroup {
		t.Errorf("GroupsFromContext() = %v, want [guest]", got)
	}

	ctx = WithIdentity(ctx, &Identity{Groups: []string{"a", "b"}})
	if got := GroupsFromContext(ctx); len(got) != 2 {
		t.Errorf("GroupsFromContext() = %v, want [a b]", got)
	}
}
