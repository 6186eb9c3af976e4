package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateBook inserts a book record. The library path must belong to the library.
func (s *Store) CreateBook(ctx context.Context, nb NewBook) (*Book, error) {
	if strings.TrimSpace(nb.FileName) == "" {
		return nil, errors.New("book file name is required")
	}
	if err := s.checkPathOwnership(ctx, nb.LibraryID, nb.LibraryPathID); err != nil {
		return nil, err
	}
	authors, err := encodeAuthors(nb.Authors)
	if err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}
	now := nowString()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO books (
            library_id, library_path_id, sub_path, file_name, title, subtitle, authors_json,
            series_name, series_number, published_date, publisher, language, isbn,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nb.LibraryID,
		nb.LibraryPathID,
		strings.Trim(nb.SubPath, "/"),
		nb.FileName,
		nullableString(nb.Title),
		nullableString(nb.Subtitle),
		authors,
		nullableString(nb.SeriesName),
		nullableFloat(nb.SeriesNumber),
		nullableString(nb.PublishedDate),
		nullableString(nb.Publisher),
		nullableString(nb.Language),
		nullableString(nb.ISBN),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBook(ctx, id)
}

// GetBook fetches a book by identifier. It returns nil when the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+bookFrom+` WHERE b.id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns books ordered by ID, optionally restricted to one library.
func (s *Store) ListBooks(ctx context.Context, libraryID int64) ([]*Book, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + bookColumns + bookFrom
	var args []any
	if libraryID > 0 {
		query += ` WHERE b.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY b.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateLocation points a book at a new file. The library path must belong to
// the library.
func (s *Store) UpdateLocation(ctx context.Context, bookID int64, subPath, fileName string, libraryID, libraryPathID int64) error {
	if strings.TrimSpace(fileName) == "" {
		return errors.New("file name is required")
	}
	if err := s.checkPathOwnership(ctx, libraryID, libraryPathID); err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE books
         SET sub_path = ?, file_name = ?, library_id = ?, library_path_id = ?, updated_at = ?
         WHERE id = ?`,
		strings.Trim(subPath, "/"), fileName, libraryID, libraryPathID, nowString(), bookID,
	)
	if err != nil {
		return fmt.Errorf("update book location: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("book %d not found", bookID)
	}
	return nil
}

func (s *Store) checkPathOwnership(ctx context.Context, libraryID, libraryPathID int64) error {
	ctx = ensureContext(ctx)
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT library_id FROM library_paths WHERE id = ?`, libraryPathID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("library path %d not found", libraryPathID)
	}
	if err != nil {
		return fmt.Errorf("lookup library path: %w", err)
	}
	if owner != libraryID {
		return fmt.Errorf("library path %d belongs to library %d, not %d", libraryPathID, owner, libraryID)
	}
	return nil
}
