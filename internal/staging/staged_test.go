package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/logging"
)

func TestTempPathRoundTrip(t *testing.T) {
	source := "/lib/George Orwell/1984.epub"
	temp := TempPath(source)
	if temp != source+".tmp_move" {
		t.Fatalf("unexpected temp path %q", temp)
	}
	original, ok := OriginalPath(temp)
	if !ok || original != source {
		t.Fatalf("expected original %q, got %q (%v)", source, original, ok)
	}
	if _, ok := OriginalPath(source); ok {
		t.Fatal("expected unstaged path to report ok=false")
	}
	if IsStaged("/lib/.tmp_move") {
		t.Fatal("bare suffix should not count as staged")
	}
}

func TestFindStagedWalksAllRoots(t *testing.T) {
	base := t.TempDir()
	rootA := filepath.Join(base, "a")
	rootB := filepath.Join(base, "b")
	files := []string{
		filepath.Join(rootA, "Author", "book.epub.tmp_move"),
		filepath.Join(rootA, "Author", "book.epub"),
		filepath.Join(rootB, "deep", "nested", "x.pdf.tmp_move"),
	}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(f, []byte("data"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	result := FindStaged(context.Background(), []string{rootA, rootB, filepath.Join(base, "missing"), ""}, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %#v", result.Errors)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 staged files, got %d", len(result.Files))
	}
	if result.Files[0].Original != filepath.Join(rootA, "Author", "book.epub") {
		t.Fatalf("unexpected original %q", result.Files[0].Original)
	}
	if result.Files[1].Root != rootB || result.Files[1].Size != 4 {
		t.Fatalf("unexpected staged file %#v", result.Files[1])
	}
}

func TestFindStagedDeduplicatesOverlappingRoots(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "sub", "a.epub.tmp_move")
	if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := FindStaged(context.Background(), []string{root, filepath.Join(root, "sub")}, nil)
	if len(result.Files) != 1 {
		t.Fatalf("expected 1 staged file, got %d", len(result.Files))
	}
}
