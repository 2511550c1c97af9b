package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "toolscope version: dev") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	perms := filepath.Join(dir, "permissions.yaml")
	if err := os.WriteFile(perms, []byte("admin: ['*']\nguest: [list]\nops: '*'\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "toolscope.yaml")
	if err := os.WriteFile(cfgPath, []byte("listen: \":9090\"\npermissions:\n  file: "+perms+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "validate", "--config", cfgPath)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	for _, want := range []string{
		"Configuration is valid",
		"Listen: :9090",
		"Permissions: file, 2 groups [admin, guest]",
		"Skipped: [ops]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCmd_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "toolscope.yaml")
	if err := os.WriteFile(cfgPath, []byte("observe:\n  logging:\n    level: loud\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := runCmd(t, "validate", "--config", cfgPath); err == nil {
		t.Error("validate error = nil, want invalid configuration")
	}
}
