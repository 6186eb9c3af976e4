package relocation

import (
	"context"
	"os"
	"path/filepath"

	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/staging"
)

// Reconcile resolves staged files left behind by interrupted or failed moves.
// A staged file whose journaled book already points at the target is
// committed; one whose book still points at the source is rolled back; one
// without a journal row is reported as orphaned and left alone. Journal rows
// whose temp file is gone are cleared.
func (c *Coordinator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	logger := c.logger

	release, err := c.locker.Lock(ctx)
	if err != nil {
		return report, err
	}
	defer release()

	libraries, err := c.libraries.ListLibraries(ctx)
	if err != nil {
		return report, services.Wrap(services.ErrPersistence, "relocation", "reconcile", "list libraries", err)
	}
	var (
		roots     []string
		ids       []int64
		rootOwner = make(map[string]int64)
	)
	for _, lib := range libraries {
		ids = append(ids, lib.ID)
		for _, root := range lib.Roots() {
			roots = append(roots, root)
			rootOwner[root] = lib.ID
		}
	}

	found := staging.FindStaged(ctx, roots, logger)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var affected []int64
	seen := make(map[int64]struct{})
	for _, f := range found.Files {
		if id, ok := rootOwner[f.Root]; ok {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				affected = append(affected, id)
			}
		}
	}
	journal, err := c.books.ListPendingMoves(ctx)
	if err != nil {
		return report, services.Wrap(services.ErrPersistence, "relocation", "reconcile", "list pending moves", err)
	}
	if len(journal) > 0 {
		affected = ids
	}

	suspension, err := c.monitor.Suspend(ctx, affected...)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "relocation", "reconcile", "suspend monitoring", err)
	}
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := suspension.Resume(ctx); err != nil {
			logging.WarnWithContext(logger, "failed to resume monitoring", "relocation_resume_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart binderyd to re-register library watches"),
				logging.String(logging.FieldImpact, "library changes are not detected until monitoring resumes"),
			)
		}
	}()

	handled := make(map[string]struct{}, len(found.Files))
	for _, f := range found.Files {
		handled[f.Path] = struct{}{}
		entry := c.reconcileStaged(ctx, f)
		report.Entries = append(report.Entries, entry)
		c.recorder.Reconciled(string(entry.Resolution))
	}

	for _, move := range journal {
		if _, ok := handled[move.TempPath]; ok {
			continue
		}
		if _, err := os.Lstat(move.TempPath); err == nil {
			// Staged outside every current library root.
			f := staging.StagedFile{Path: move.TempPath, Original: move.SourcePath}
			entry := c.reconcileStaged(ctx, f)
			report.Entries = append(report.Entries, entry)
			c.recorder.Reconciled(string(entry.Resolution))
			continue
		}
		entry := ReconcileEntry{TempPath: move.TempPath, BookID: move.BookID, Resolution: ResolutionStaleJournal}
		if err := c.books.ClearPendingMove(ctx, move.BookID); err != nil {
			entry.Resolution = ResolutionFailed
			entry.Message = err.Error()
		}
		report.Entries = append(report.Entries, entry)
		c.recorder.Reconciled(string(entry.Resolution))
	}

	logger.Info("reconciliation finished",
		logging.Int("resumed", report.Count(ResolutionResumed)),
		logging.Int("rolled_back", report.Count(ResolutionRolledBack)),
		logging.Int("orphaned", report.Count(ResolutionOrphaned)),
		logging.Int("stale_journal", report.Count(ResolutionStaleJournal)),
		logging.Int("failed", report.Count(ResolutionFailed)),
		logging.String(logging.FieldEventType, "relocation_reconcile_finished"),
	)
	return report, nil
}

func (c *Coordinator) reconcileStaged(ctx context.Context, f staging.StagedFile) ReconcileEntry {
	entry := ReconcileEntry{TempPath: f.Path}
	logger := c.logger.With(logging.String("temp", f.Path))

	move, err := c.books.PendingMoveByTempPath(ctx, f.Path)
	if err != nil {
		entry.Resolution = ResolutionFailed
		entry.Message = err.Error()
		return entry
	}
	if move == nil {
		entry.Resolution = ResolutionOrphaned
		entry.Message = "no pending move recorded"
		logging.WarnWithContext(logger, "orphaned staged file", "relocation_orphaned_temp",
			logging.String(logging.FieldErrorHint, "inspect the file and restore or delete it manually"),
			logging.String(logging.FieldImpact, "file is not visible in the catalog"),
		)
		return entry
	}
	entry.BookID = move.BookID
	logger = logger.With(logging.Int64(logging.FieldBookID, move.BookID))

	book, err := c.books.GetBook(ctx, move.BookID)
	if err != nil {
		entry.Resolution = ResolutionFailed
		entry.Message = err.Error()
		return entry
	}
	if book == nil {
		entry.Resolution = ResolutionOrphaned
		entry.Message = "journaled book no longer exists"
		return entry
	}

	recorded := filepath.Clean(book.FullPath())
	switch {
	case recorded == filepath.Clean(move.TargetPath):
		if _, err := os.Lstat(recorded); err == nil {
			entry.Resolution = ResolutionFailed
			entry.Message = "target already exists; refusing to overwrite"
			return entry
		}
		if err := c.helper.Commit(f.Path, move.TargetPath); err != nil {
			entry.Resolution = ResolutionFailed
			entry.Message = err.Error()
			return entry
		}
		entry.Resolution = ResolutionResumed
		c.clearJournal(ctx, move.BookID)
		c.helper.CleanupEmptyAncestors(filepath.Dir(move.SourcePath), c.allRoots(ctx))
		c.publishBook(ctx, move.BookID)
		logger.Info("interrupted move committed", logging.String("target", move.TargetPath),
			logging.String(logging.FieldEventType, "relocation_reconcile_resumed"))
	case recorded == filepath.Clean(move.SourcePath):
		c.helper.Rollback(f.Path, move.SourcePath)
		if _, err := os.Lstat(f.Path); err == nil {
			entry.Resolution = ResolutionFailed
			entry.Message = "rollback did not restore the file"
			return entry
		}
		entry.Resolution = ResolutionRolledBack
		c.clearJournal(ctx, move.BookID)
	default:
		entry.Resolution = ResolutionOrphaned
		entry.Message = "book record matches neither journaled source nor target"
	}
	return entry
}

func (c *Coordinator) allRoots(ctx context.Context) []string {
	libraries, err := c.libraries.ListLibraries(ctx)
	if err != nil {
		return nil
	}
	var roots []string
	for _, lib := range libraries {
		roots = append(roots, lib.Roots()...)
	}
	return roots
}
