package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/catalog"
	"bindery/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckNtfy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		pass   bool
	}{
		{"ok", http.StatusOK, true},
		{"forbidden", http.StatusForbidden, false},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			result := CheckNtfy(context.Background(), srv.URL+"/bindery")
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
		})
	}
}

type stubLibraries struct {
	libs []*catalog.Library
	err  error
}

func (s stubLibraries) ListLibraries(context.Context) ([]*catalog.Library, error) {
	return s.libs, s.err
}

func TestCheckLibraryRoots(t *testing.T) {
	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")
	libs := stubLibraries{libs: []*catalog.Library{
		{ID: 1, Name: "Books", Paths: []catalog.LibraryPath{{ID: 1, Path: good}, {ID: 2, Path: missing}}},
		{ID: 2, Name: "Empty"},
	}}

	results := CheckLibraryRoots(context.Background(), libs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected existing root to pass: %s", results[0].Detail)
	}
	if results[1].Passed || results[2].Passed {
		t.Fatalf("expected missing root and empty library to fail: %+v", results)
	}
	if got := len(Failed(results)); got != 2 {
		t.Fatalf("Failed returned %d results, want 2", got)
	}
}

func TestCheckLibraryRootsListError(t *testing.T) {
	results := CheckLibraryRoots(context.Background(), stubLibraries{err: errors.New("db closed")})
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected single failing result, got %+v", results)
	}
}

func TestRunAllSkipsUnconfiguredChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = ""
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg, nil)
	if len(results) != 1 {
		t.Fatalf("expected only state directory check, got %+v", results)
	}
	if !results[0].Passed {
		t.Fatalf("state directory check failed: %s", results[0].Detail)
	}
}
