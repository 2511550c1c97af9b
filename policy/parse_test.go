package policy

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantGroups  []string
		wantSkipped []string
	}{
		{
			name:       "json",
			doc:        `{"admin": ["*"], "developers": ["list", "read"], "guest": ["list"]}`,
			wantGroups: []string{"admin", "developers", "guest"},
		},
		{
			name: "yaml",
			doc: `
admin: ["*"]
developers:
  - list
  - read
`,
			wantGroups: []string{"admin", "developers"},
		},
		{
			name:       "empty document",
			doc:        "  \n",
			wantGroups: []string{},
		},
		{
			name:       "empty mapping",
			doc:        "{}",
			wantGroups: []string{},
		},
		{
			name:        "malformed entries skipped",
			doc:         `{"ok": ["list"], "str": "read", "nums": [1, 2], "nested": [["a"]], "obj": {"a": 1}}`,
			wantGroups:  []string{"ok"},
			wantSkipped: []string{"nested", "nums", "obj", "str"},
		},
		{
			name:       "null entry is empty",
			doc:        `{"dev": null}`,
			wantGroups: []string{"dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ParseTable() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantGroups, table.Groups()); diff != "" {
				t.Errorf("Groups() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSkipped, table.Skipped()); diff != "" {
				t.Errorf("Skipped() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTable_InvalidDocument(t *testing.T) {
	for _, doc := range []string{
		`["admin"]`,
		`"just a string"`,
		`{"admin": [`,
	} {
		if _, err := ParseTable([]byte(doc)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("ParseTable(%q) error = %v, want ErrInvalidDocument", doc, err)
		}
	}
}

func TestParseTable_RepeatedGroupKeepsLast(t *testing.T) {
	table, err := ParseTable([]byte(`{"dev": ["read"], "dev": ["write"]}`))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	p, _ := table.Lookup("dev")
	if !p.Equal(NewPermissions("write")) {
		t.Errorf("dev = %v, want {write}", p)
	}
}

func TestParseTable_ResolvesAdminAndGuest(t *testing.T) {
	table, err := ParseTable([]byte(`{"admin": ["*"], "guest": ["list"]}`))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if !table.Resolve([]string{"admin"}).IsAllAccess() {
		t.Error("admin should resolve to all-access")
	}
	if !table.Resolve([]string{"someone"}).Equal(NewPermissions("list")) {
		t.Error("unknown group should fall back to guest entry")
	}
}
