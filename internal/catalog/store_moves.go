package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPendingMoveExists is returned when a book already has an unresolved
// journal row.
var ErrPendingMoveExists = errors.New("pending move already recorded")

// RecordPendingMove journals a staged move before the file is touched.
// An existing row for the same book is left alone and ErrPendingMoveExists
// is returned.
func (s *Store) RecordPendingMove(ctx context.Context, move PendingMove) error {
	created := move.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO pending_moves (book_id, source_path, temp_path, target_path, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(book_id) DO NOTHING`,
		move.BookID, move.SourcePath, move.TempPath, move.TargetPath, created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record pending move: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("book %d: %w", move.BookID, ErrPendingMoveExists)
	}
	return nil
}

// ClearPendingMove removes the journal row for a book.
func (s *Store) ClearPendingMove(ctx context.Context, bookID int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM pending_moves WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("clear pending move: %w", err)
	}
	return nil
}

// PendingMoveForBook returns the journal row for a book, or nil.
func (s *Store) PendingMoveForBook(ctx context.Context, bookID int64) (*PendingMove, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT book_id, source_path, temp_path, target_path, created_at FROM pending_moves WHERE book_id = ?`,
		bookID,
	)
	move, err := scanPendingMove(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending move: %w", err)
	}
	return move, nil
}

// PendingMoveByTempPath returns the journal row for a staged temp file, or nil.
func (s *Store) PendingMoveByTempPath(ctx context.Context, tempPath string) (*PendingMove, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT book_id, source_path, temp_path, target_path, created_at FROM pending_moves WHERE temp_path = ?`,
		tempPath,
	)
	move, err := scanPendingMove(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending move: %w", err)
	}
	return move, nil
}

// ListPendingMoves returns every journaled move, oldest first.
func (s *Store) ListPendingMoves(ctx context.Context) ([]PendingMove, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, source_path, temp_path, target_path, created_at FROM pending_moves ORDER BY created_at, book_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending moves: %w", err)
	}
	defer rows.Close()

	var moves []PendingMove
	for rows.Next() {
		move, err := scanPendingMove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending move: %w", err)
		}
		moves = append(moves, *move)
	}
	return moves, rows.Err()
}

func scanPendingMove(scanner interface{ Scan(dest ...any) error }) (*PendingMove, error) {
	var (
		move       PendingMove
		createdRaw string
	)
	if err := scanner.Scan(&move.BookID, &move.SourcePath, &move.TempPath, &move.TargetPath, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		move.CreatedAt = created
	}
	return &move, nil
}
