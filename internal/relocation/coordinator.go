package relocation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bindery/internal/catalog"
	"bindery/internal/logging"
	"bindery/internal/monitoring"
	"bindery/internal/pathpattern"
	"bindery/internal/services"
	"bindery/internal/staging"
)

// TopicBookUpdate is published with the refreshed book after each move.
const TopicBookUpdate = "book_update"

// BookStore is the catalog access relocation needs for books and the
// pending-move journal.
type BookStore interface {
	GetBook(ctx context.Context, id int64) (*catalog.Book, error)
	UpdateLocation(ctx context.Context, bookID int64, subPath, fileName string, libraryID, libraryPathID int64) error
	RecordPendingMove(ctx context.Context, move catalog.PendingMove) error
	ClearPendingMove(ctx context.Context, bookID int64) error
	PendingMoveForBook(ctx context.Context, bookID int64) (*catalog.PendingMove, error)
	PendingMoveByTempPath(ctx context.Context, tempPath string) (*catalog.PendingMove, error)
	ListPendingMoves(ctx context.Context) ([]catalog.PendingMove, error)
}

// LibraryStore looks up libraries and their paths.
type LibraryStore interface {
	GetLibrary(ctx context.Context, id int64) (*catalog.Library, error)
	ListLibraries(ctx context.Context) ([]*catalog.Library, error)
}

// SettingsStore provides the process-wide default naming pattern.
type SettingsStore interface {
	DefaultPattern(ctx context.Context) (string, error)
}

// Monitor pauses directory monitoring for libraries.
type Monitor interface {
	Suspend(ctx context.Context, libraryIDs ...int64) (*monitoring.Suspension, error)
}

// Publisher broadcasts change notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Recorder observes relocation outcomes.
type Recorder interface {
	ItemFinished(state, reason string)
	BatchFinished(duration time.Duration)
	Reconciled(resolution string)
}

// Dependencies wires a Coordinator. Monitor, Publisher, Recorder, and Locker
// may be nil.
type Dependencies struct {
	Books     BookStore
	Libraries LibraryStore
	Settings  SettingsStore
	Monitor   Monitor
	Publisher Publisher
	Helper    *Helper
	Locker    Locker
	Recorder  Recorder
	Logger    *slog.Logger
}

// Coordinator runs relocation batches, single-book normalization, and
// reconciliation.
type Coordinator struct {
	books     BookStore
	libraries LibraryStore
	settings  SettingsStore
	monitor   Monitor
	publisher Publisher
	helper    *Helper
	locker    Locker
	recorder  Recorder
	logger    *slog.Logger
}

// NewCoordinator builds a Coordinator from deps.
func NewCoordinator(deps Dependencies) *Coordinator {
	logger := logging.NewComponentLogger(deps.Logger, "relocation")
	c := &Coordinator{
		books:     deps.Books,
		libraries: deps.Libraries,
		settings:  deps.Settings,
		monitor:   deps.Monitor,
		publisher: deps.Publisher,
		helper:    deps.Helper,
		locker:    deps.Locker,
		recorder:  deps.Recorder,
		logger:    logger,
	}
	if c.monitor == nil {
		c.monitor = noopMonitor{}
	}
	if c.publisher == nil {
		c.publisher = noopPublisher{}
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	if c.locker == nil {
		c.locker = noopLocker{}
	}
	if c.helper == nil {
		c.helper = NewHelper(deps.Logger)
	}
	return c
}

// MoveBooks relocates each requested book in order. Per-item problems are
// reported in the result; the error is non-nil only when the batch could not
// start.
func (c *Coordinator) MoveBooks(ctx context.Context, req Request) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	start := time.Now()
	result := BatchResult{BatchID: uuid.NewString(), Items: make([]ItemResult, 0, len(req.Moves))}
	ctx = services.WithBatchID(ctx, result.BatchID)
	logger := logging.WithContext(ctx, c.logger)

	release, err := c.locker.Lock(ctx)
	if err != nil {
		return result, err
	}
	defer release()

	logger.Info("relocation batch started",
		logging.Int("moves", len(req.Moves)),
		logging.String(logging.FieldEventType, "relocation_batch_started"),
	)

	batch := newBatchSuspensions(c.monitor)
	for i, mv := range req.Moves {
		if ctx.Err() != nil {
			for _, rest := range req.Moves[i:] {
				item := ItemResult{BookID: rest.BookID, State: StateSkipped, Reason: ReasonCancelled}
				result.add(item)
				c.recorder.ItemFinished(string(item.State), item.Reason)
			}
			break
		}
		item := c.moveOne(services.WithBookID(ctx, mv.BookID), batch, mv)
		result.add(item)
		c.recorder.ItemFinished(string(item.State), item.Reason)
	}

	// Resume and notify run even when the caller has gone away.
	tail := context.WithoutCancel(ctx)
	batch.resumeAll(tail, logger)
	c.notifyMoved(tail, result.Items)

	result.Duration = time.Since(start)
	c.recorder.BatchFinished(result.Duration)
	logger.Info("relocation batch finished",
		logging.Int("moved", result.Moved),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Duration("duration", result.Duration),
		logging.String(logging.FieldEventType, "relocation_batch_finished"),
	)
	return result, nil
}

func (c *Coordinator) moveOne(ctx context.Context, batch *batchSuspensions, mv Move) ItemResult {
	logger := logging.WithContext(ctx, c.logger)
	item := ItemResult{BookID: mv.BookID}

	book, lib, libPath, err := c.resolve(ctx, mv)
	if err != nil {
		return skipOrFail(item, err)
	}

	pattern := c.effectivePattern(ctx, lib)
	current := book.FullPath()
	target := c.helper.ComputeTargetPath(book, libPath.Path, pattern)
	item.OldPath = current
	item.NewPath = target

	// A journaled move that never committed owns the book until Reconcile
	// settles it. Its row and staged file must stay as they are.
	open, err := c.books.PendingMoveForBook(ctx, book.ID)
	if err != nil {
		return failed(item, services.Wrap(services.ErrPersistence, "relocation", "journal", "load pending move", err))
	}
	if open != nil {
		item.State = StateFailed
		item.Reason = ReasonNeedsReconciliation
		item.Message = fmt.Sprintf("book %d is still staged at %s; run 'bindery reconcile' first", book.ID, open.TempPath)
		item.NeedsReconciliation = true
		return item
	}

	if filepath.Clean(current) == filepath.Clean(target) {
		item.State = StateSkipped
		item.Reason = ReasonAlreadyInPlace
		return item
	}

	if err := batch.suspend(ctx, lib.ID, book.LibraryID); err != nil {
		return failed(item, services.Wrap(services.ErrTransient, "relocation", "suspend monitoring", "", err))
	}

	// From here on every step runs to a terminal state.
	ctx = context.WithoutCancel(ctx)

	pending := catalog.PendingMove{
		BookID:     book.ID,
		SourcePath: current,
		TempPath:   staging.TempPath(current),
		TargetPath: target,
	}
	if err := c.books.RecordPendingMove(ctx, pending); err != nil {
		return failed(item, services.Wrap(services.ErrPersistence, "relocation", "journal", "record pending move", err))
	}

	temp, err := c.helper.Stage(current)
	if err != nil {
		c.clearJournal(ctx, book.ID)
		return failed(item, err)
	}

	subPath := c.helper.ExtractSubPath(target, libPath.Path)
	fileName := filepath.Base(target)
	if err := c.books.UpdateLocation(ctx, book.ID, subPath, fileName, lib.ID, libPath.ID); err != nil {
		c.helper.Rollback(temp, current)
		c.clearJournal(ctx, book.ID)
		return failed(item, services.Wrap(services.ErrPersistence, "relocation", "persist", "update book location", err))
	}

	if err := c.helper.Commit(temp, target); err != nil {
		item = failed(item, err)
		item.NeedsReconciliation = true
		logging.ErrorWithContext(logger, "commit failed after location was persisted", "relocation_commit_failed",
			logging.String("temp", temp),
			logging.String("target", target),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'bindery reconcile' to finish the move"),
			logging.String(logging.FieldImpact, "catalog points at a file that is still staged"),
		)
		return item
	}
	c.clearJournal(ctx, book.ID)

	c.helper.CleanupEmptyAncestors(filepath.Dir(current), c.cleanupRoots(ctx, book))

	logger.Info("book relocated",
		logging.String("from", current),
		logging.String("to", target),
		logging.String(logging.FieldEventType, "relocation_item_moved"),
	)
	item.State = StateMoved
	return item
}

// resolve loads the book, the target library, and the target library path.
func (c *Coordinator) resolve(ctx context.Context, mv Move) (*catalog.Book, *catalog.Library, catalog.LibraryPath, error) {
	book, err := c.books.GetBook(ctx, mv.BookID)
	if err != nil {
		return nil, nil, catalog.LibraryPath{}, services.Wrap(services.ErrPersistence, "relocation", "resolve", "load book", err)
	}
	if book == nil {
		return nil, nil, catalog.LibraryPath{}, services.Wrap(services.ErrNotFound, "relocation", "resolve", fmt.Sprintf("book %d", mv.BookID), nil)
	}
	lib, err := c.libraries.GetLibrary(ctx, mv.TargetLibraryID)
	if err != nil {
		return nil, nil, catalog.LibraryPath{}, services.Wrap(services.ErrPersistence, "relocation", "resolve", "load library", err)
	}
	if lib == nil {
		return nil, nil, catalog.LibraryPath{}, services.Wrap(services.ErrNotFound, "relocation", "resolve", fmt.Sprintf("library %d", mv.TargetLibraryID), nil)
	}
	libPath, ok := lib.PathByID(mv.TargetLibraryPathID)
	if !ok {
		return nil, nil, catalog.LibraryPath{}, services.Wrap(services.ErrNotFound, "relocation", "resolve",
			fmt.Sprintf("library path %d in library %d", mv.TargetLibraryPathID, mv.TargetLibraryID), nil)
	}
	return book, lib, libPath, nil
}

// effectivePattern picks the library pattern, then the stored default, then
// the fallback. A failed default lookup is logged and skipped.
func (c *Coordinator) effectivePattern(ctx context.Context, lib *catalog.Library) string {
	var defaultPattern string
	if c.settings != nil && lib.FileNamingPattern == "" {
		value, err := c.settings.DefaultPattern(ctx)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "default naming pattern unavailable", "relocation_pattern_lookup_failed",
				logging.Int64(logging.FieldLibraryID, lib.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the catalog database"),
				logging.String(logging.FieldImpact, "book keeps its current file name"),
			)
		} else {
			defaultPattern = value
		}
	}
	return pathpattern.EffectivePattern(lib.FileNamingPattern, defaultPattern)
}

// cleanupRoots returns the roots empty-directory cleanup must stop at: the
// book's current library path plus every root of its current library.
func (c *Coordinator) cleanupRoots(ctx context.Context, book *catalog.Book) []string {
	roots := []string{book.LibraryRoot}
	lib, err := c.libraries.GetLibrary(ctx, book.LibraryID)
	if err == nil && lib != nil {
		roots = append(roots, lib.Roots()...)
	}
	return roots
}

func (c *Coordinator) clearJournal(ctx context.Context, bookID int64) {
	if err := c.books.ClearPendingMove(ctx, bookID); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "failed to clear pending move", "relocation_journal_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next reconcile will clear the stale row"),
			logging.String(logging.FieldImpact, "none"),
		)
	}
}

func (c *Coordinator) notifyMoved(ctx context.Context, items []ItemResult) {
	for _, item := range items {
		if item.State != StateMoved {
			continue
		}
		c.publishBook(ctx, item.BookID)
	}
}

func (c *Coordinator) publishBook(ctx context.Context, bookID int64) {
	logger := logging.WithContext(services.WithBookID(ctx, bookID), c.logger)
	book, err := c.books.GetBook(ctx, bookID)
	if err != nil || book == nil {
		logger.Debug("skipping book notification; book unavailable", logging.Error(err))
		return
	}
	if err := c.publisher.Publish(ctx, TopicBookUpdate, book); err != nil {
		logging.WarnWithContext(logger, "book update notification failed", "relocation_notify_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification settings"),
			logging.String(logging.FieldImpact, "subscribers miss this update"),
		)
	}
}

func skipOrFail(item ItemResult, err error) ItemResult {
	if services.Classify(err) == "not_found" {
		item.State = StateSkipped
		item.Reason = services.Classify(err)
		item.Message = err.Error()
		return item
	}
	return failed(item, err)
}

func failed(item ItemResult, err error) ItemResult {
	item.State = StateFailed
	item.Reason = services.Classify(err)
	item.Message = err.Error()
	return item
}

// batchSuspensions suspends each library at most once per batch.
type batchSuspensions struct {
	monitor     Monitor
	seen        map[int64]struct{}
	suspensions []*monitoring.Suspension
}

func newBatchSuspensions(monitor Monitor) *batchSuspensions {
	return &batchSuspensions{monitor: monitor, seen: make(map[int64]struct{})}
}

func (b *batchSuspensions) suspend(ctx context.Context, libraryIDs ...int64) error {
	var pending []int64
	for _, id := range libraryIDs {
		if _, ok := b.seen[id]; ok {
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return nil
	}
	s, err := b.monitor.Suspend(ctx, pending...)
	if err != nil {
		return err
	}
	for _, id := range pending {
		b.seen[id] = struct{}{}
	}
	b.suspensions = append(b.suspensions, s)
	return nil
}

func (b *batchSuspensions) resumeAll(ctx context.Context, logger *slog.Logger) {
	for _, s := range b.suspensions {
		if err := s.Resume(ctx); err != nil {
			logging.WarnWithContext(logger, "failed to resume monitoring", "relocation_resume_failed",
				logging.Any("libraries", s.Libraries()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart binderyd to re-register library watches"),
				logging.String(logging.FieldImpact, "library changes are not detected until monitoring resumes"),
			)
		}
	}
}

type noopMonitor struct{}

func (noopMonitor) Suspend(context.Context, ...int64) (*monitoring.Suspension, error) {
	return monitoring.NewSuspension(nil, nil), nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

type noopRecorder struct{}

func (noopRecorder) ItemFinished(string, string)  {}
func (noopRecorder) BatchFinished(time.Duration) {}
func (noopRecorder) Reconciled(string)           {}

type noopLocker struct{}

func (noopLocker) Lock(context.Context) (func(), error) { return func() {}, nil }
