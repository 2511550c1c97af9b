package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAuthzError(t *testing.T) {
	err := &AuthzError{Subject: "alice", Tool: "srv___delete_doc", Action: "call", Reason: "not permitted"}

	if !errors.Is(err, ErrForbidden) {
		t.Error("AuthzError should match ErrForbidden")
	}
	msg := err.Error()
	for _, want := range []string{"alice", "srv___delete_doc", "call", "not permitted"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestAllowAllAuthorizer(t *testing.T) {
	var a Authorizer = AllowAllAuthorizer{}
	if err := a.Authorize(context.Background(), &AuthzRequest{Tool: "x"}); err != nil {
		t.Errorf("Authorize() error = %v", err)
	}
	if a.Name() != "allow_all" {
		t.Errorf("Name() = %q", a.Name())
	}
}
