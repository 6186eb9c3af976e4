package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// CreateLibrary inserts a library with an optional naming pattern.
func (s *Store) CreateLibrary(ctx context.Context, name, pattern string) (*Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("library name is required")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO libraries (name, file_naming_pattern, created_at) VALUES (?, ?, ?)`,
		name, nullableString(strings.TrimSpace(pattern)), nowString(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert library: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetLibrary(ctx, id)
}

// AddLibraryPath attaches an absolute root directory to a library.
func (s *Store) AddLibraryPath(ctx context.Context, libraryID int64, root string) (*LibraryPath, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("library path is required")
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("resolve library path: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO library_paths (library_id, path) VALUES (?, ?)`,
		libraryID, abs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library path: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &LibraryPath{ID: id, LibraryID: libraryID, Path: abs}, nil
}

// SetLibraryPattern replaces a library's naming pattern. An empty pattern
// clears the override so the default applies.
func (s *Store) SetLibraryPattern(ctx context.Context, libraryID int64, pattern string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE libraries SET file_naming_pattern = ? WHERE id = ?`,
		nullableString(strings.TrimSpace(pattern)), libraryID,
	)
	if err != nil {
		return fmt.Errorf("update library pattern: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("library %d not found", libraryID)
	}
	return nil
}

// GetLibrary fetches a library and its paths. It returns nil when the library
// does not exist.
func (s *Store) GetLibrary(ctx context.Context, id int64) (*Library, error) {
	ctx = ensureContext(ctx)
	var (
		lib     Library
		pattern sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, file_naming_pattern FROM libraries WHERE id = ?`, id,
	).Scan(&lib.ID, &lib.Name, &pattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	lib.FileNamingPattern = pattern.String

	paths, err := s.libraryPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	lib.Paths = paths
	return &lib, nil
}

// ListLibraries returns every library with its paths, ordered by ID.
func (s *Store) ListLibraries(ctx context.Context) ([]*Library, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM libraries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan library id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}
	rows.Close()

	libraries := make([]*Library, 0, len(ids))
	for _, id := range ids {
		lib, err := s.GetLibrary(ctx, id)
		if err != nil {
			return nil, err
		}
		if lib != nil {
			libraries = append(libraries, lib)
		}
	}
	return libraries, nil
}

func (s *Store) libraryPaths(ctx context.Context, libraryID int64) ([]LibraryPath, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, library_id, path FROM library_paths WHERE library_id = ? ORDER BY id`, libraryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list library paths: %w", err)
	}
	defer rows.Close()

	var paths []LibraryPath
	for rows.Next() {
		var p LibraryPath
		if err := rows.Scan(&p.ID, &p.LibraryID, &p.Path); err != nil {
			return nil, fmt.Errorf("scan library path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
