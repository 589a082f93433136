// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/docbase/pkg/types"
)

func TestDocID(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"same path same id", "/corpus/a.txt", "/corpus/a.txt", true},
		{"different path different id", "/corpus/a.txt", "/corpus/b.txt", false},
		{"case sensitive", "/corpus/a.txt", "/corpus/A.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DocID(tt.a) == DocID(tt.b)
			if got != tt.same {
				t.Errorf("DocID(%q) == DocID(%q) = %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestDocIDShape(t *testing.T) {
	id := DocID("/corpus/a.txt")
	if len(id) != 64 {
		t.Errorf("DocID length = %d, want 64 hex chars", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("DocID %q is not lowercase hex", id)
	}
}

func TestIdentityDistinguishesNameAndDir(t *testing.T) {
	base := Identity("docs", "/corpus")
	if Identity("docs", "/other") == base {
		t.Error("identity should change with the directory")
	}
	if Identity("other", "/corpus") == base {
		t.Error("identity should change with the name")
	}
	if Identity("docs", "/corpus") != base {
		t.Error("identity should be deterministic")
	}
}

func TestOpenRejectsRelativePath(t *testing.T) {
	_, err := Open(types.RegistryConfig{Dir: "relative/path", Name: "docs"})
	if err == nil {
		t.Fatal("expected error for relative path")
	}
	if !strings.Contains(err.Error(), "absolute") {
		t.Errorf("error %q should mention the absolute-path requirement", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := types.RegistryConfig{
		Dir:     t.TempDir(),
		Name:    "docs",
		Backend: "no-such-backend",
	}
	_, err := Open(cfg)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "no-such-backend") {
		t.Errorf("error %q should name the unknown backend", err)
	}
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	tmp := t.TempDir()
	cfg := types.RegistryConfig{
		Dir:      filepath.Join(tmp, "corpus"),
		Name:     "docs",
		StateDir: filepath.Join(tmp, "state"),
	}
	// Dir must be absolute; t.TempDir always is.
	r, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, ok := r.(*sqliteRegistry); !ok {
		t.Errorf("default backend = %T, want *sqliteRegistry", r)
	}
}

func TestBackendsIncludesSQLite(t *testing.T) {
	names := Backends()
	for _, name := range names {
		if name == "sqlite" {
			return
		}
	}
	t.Errorf("Backends() = %v, want to include sqlite", names)
}
