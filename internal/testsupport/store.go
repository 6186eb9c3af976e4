package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/catalog"
	"bindery/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewLibrary creates a library with one root directory per name in roots.
// Each root is created under the config's base directory.
func NewLibrary(t testing.TB, store *catalog.Store, cfg *config.Config, name, pattern string, roots ...string) *catalog.Library {
	t.Helper()

	ctx := context.Background()
	lib, err := store.CreateLibrary(ctx, name, pattern)
	if err != nil {
		t.Fatalf("store.CreateLibrary: %v", err)
	}
	for _, root := range roots {
		dir := filepath.Join(BaseDir(cfg), root)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		if _, err := store.AddLibraryPath(ctx, lib.ID, dir); err != nil {
			t.Fatalf("store.AddLibraryPath: %v", err)
		}
	}
	lib, err = store.GetLibrary(ctx, lib.ID)
	if err != nil || lib == nil {
		t.Fatalf("store.GetLibrary: %v", err)
	}
	return lib
}

// NewBook inserts a book and writes its file to disk.
func NewBook(t testing.TB, store *catalog.Store, nb catalog.NewBook) *catalog.Book {
	t.Helper()

	book, err := store.CreateBook(context.Background(), nb)
	if err != nil {
		t.Fatalf("store.CreateBook: %v", err)
	}
	WriteFile(t, book.FullPath(), 64)
	return book
}
