package relocation

import (
	"context"
	"fmt"
	"path/filepath"

	"bindery/internal/logging"
	"bindery/internal/services"
)

// NormalizeBook moves one book to the location its library pattern dictates
// within its current library path. The catalog is updated only after the file
// has moved; if that update fails the file is moved back.
func (c *Coordinator) NormalizeBook(ctx context.Context, bookID int64) (MoveOutcome, error) {
	if err := ctx.Err(); err != nil {
		return MoveOutcome{}, err
	}
	ctx = services.WithBookID(ctx, bookID)
	logger := logging.WithContext(ctx, c.logger)

	release, err := c.locker.Lock(ctx)
	if err != nil {
		return MoveOutcome{}, err
	}
	defer release()

	book, err := c.books.GetBook(ctx, bookID)
	if err != nil {
		return MoveOutcome{}, services.Wrap(services.ErrPersistence, "relocation", "normalize", "load book", err)
	}
	if book == nil {
		return MoveOutcome{}, services.Wrap(services.ErrNotFound, "relocation", "normalize", fmt.Sprintf("book %d", bookID), nil)
	}
	lib, err := c.libraries.GetLibrary(ctx, book.LibraryID)
	if err != nil {
		return MoveOutcome{}, services.Wrap(services.ErrPersistence, "relocation", "normalize", "load library", err)
	}
	if lib == nil {
		return MoveOutcome{}, services.Wrap(services.ErrNotFound, "relocation", "normalize", fmt.Sprintf("library %d", book.LibraryID), nil)
	}
	libPath, ok := lib.PathByID(book.LibraryPathID)
	if !ok {
		return MoveOutcome{}, services.Wrap(services.ErrNotFound, "relocation", "normalize",
			fmt.Sprintf("library path %d in library %d", book.LibraryPathID, lib.ID), nil)
	}

	current := book.FullPath()
	target := c.helper.ComputeTargetPath(book, libPath.Path, c.effectivePattern(ctx, lib))
	outcome := MoveOutcome{NewSubPath: book.SubPath, NewFileName: book.FileName}
	open, err := c.books.PendingMoveForBook(ctx, book.ID)
	if err != nil {
		return outcome, services.Wrap(services.ErrPersistence, "relocation", "normalize", "load pending move", err)
	}
	if open != nil {
		c.recorder.ItemFinished(string(StateFailed), ReasonNeedsReconciliation)
		return outcome, services.Wrap(services.ErrValidation, "relocation", "normalize",
			fmt.Sprintf("book %d is still staged at %s; run 'bindery reconcile' first", book.ID, open.TempPath), nil)
	}
	if filepath.Clean(current) == filepath.Clean(target) {
		outcome.Reason = ReasonAlreadyInPlace
		c.recorder.ItemFinished(string(StateSkipped), outcome.Reason)
		return outcome, nil
	}

	suspension, err := c.monitor.Suspend(ctx, lib.ID)
	if err != nil {
		return outcome, services.Wrap(services.ErrTransient, "relocation", "normalize", "suspend monitoring", err)
	}
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := suspension.Resume(ctx); err != nil {
			logging.WarnWithContext(logger, "failed to resume monitoring", "relocation_resume_failed",
				logging.Int64(logging.FieldLibraryID, lib.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart binderyd to re-register library watches"),
				logging.String(logging.FieldImpact, "library changes are not detected until monitoring resumes"),
			)
		}
	}()

	if err := c.helper.Move(current, target); err != nil {
		c.recorder.ItemFinished(string(StateFailed), services.Classify(err))
		return outcome, err
	}

	subPath := c.helper.ExtractSubPath(target, libPath.Path)
	fileName := filepath.Base(target)
	if err := c.books.UpdateLocation(ctx, book.ID, subPath, fileName, lib.ID, libPath.ID); err != nil {
		if moveBackErr := c.helper.Move(target, current); moveBackErr != nil {
			logging.ErrorWithContext(logger, "failed to move file back after persist failure", "relocation_revert_failed",
				logging.String("current", target),
				logging.String("expected", current),
				logging.Error(moveBackErr),
				logging.String(logging.FieldErrorHint, fmt.Sprintf("move %q back to %q manually", target, current)),
			)
		}
		wrapped := services.Wrap(services.ErrPersistence, "relocation", "normalize", "update book location", err)
		c.recorder.ItemFinished(string(StateFailed), services.Classify(wrapped))
		return outcome, wrapped
	}

	c.helper.CleanupEmptyAncestors(filepath.Dir(current), c.cleanupRoots(ctx, book))
	c.recorder.ItemFinished(string(StateMoved), "")
	c.publishBook(ctx, book.ID)

	logger.Info("book normalized",
		logging.String("from", current),
		logging.String("to", target),
		logging.String(logging.FieldEventType, "relocation_item_moved"),
	)
	outcome.Moved = true
	outcome.NewSubPath = subPath
	outcome.NewFileName = fileName
	return outcome, nil
}
