package monitoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bindery/internal/catalog"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/staging"
)

const defaultDebounce = 500 * time.Millisecond

// Options configures a Registry.
type Options struct {
	Debounce time.Duration
	Sink     EventSink
	Logger   *slog.Logger
}

// Registry tracks which libraries are watched. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	logger    *slog.Logger
	sink      EventSink
	debounce  time.Duration
	libraries map[int64]*libraryWatch
	closed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := logging.NewComponentLogger(opts.Logger, "monitoring")
	sink := opts.Sink
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Registry{
		logger:    logger,
		sink:      sink,
		debounce:  debounce,
		libraries: make(map[int64]*libraryWatch),
	}
}

// RegisterLibrary watches every root of lib. A library without roots is still
// recorded as monitored.
func (r *Registry) RegisterLibrary(ctx context.Context, lib catalog.Library) error {
	if len(lib.Paths) == 0 {
		r.mu.Lock()
		defer r.mu.Unlock()
		_, err := r.watchLocked(lib.ID)
		return err
	}
	var errs []error
	for _, p := range lib.Paths {
		if err := r.RegisterLibraryPaths(ctx, lib.ID, p.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterLibraryPaths watches root and every directory below it on behalf of
// libraryID. Registering a root twice has no effect.
func (r *Registry) RegisterLibraryPaths(ctx context.Context, libraryID int64, root string) error {
	root = strings.TrimSpace(root)
	if root == "" {
		return services.Wrap(services.ErrValidation, "monitoring", "register", "library root is empty", nil)
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return services.Wrap(services.ErrIO, "monitoring", "register", fmt.Sprintf("stat library root %q", root), err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "monitoring", "register", fmt.Sprintf("library root %q is not a directory", root), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.watchLocked(libraryID)
	if err != nil {
		return err
	}
	if w.hasRoot(root) {
		return nil
	}
	if err := w.addTree(ctx, root); err != nil {
		return services.Wrap(services.ErrIO, "monitoring", "register", fmt.Sprintf("watch library root %q", root), err)
	}
	w.addRoot(root)

	r.logger.Debug("library root registered",
		logging.Int64(logging.FieldLibraryID, libraryID),
		logging.String("root", root),
	)
	return nil
}

// UnregisterLibrary stops watching every root of libraryID.
func (r *Registry) UnregisterLibrary(libraryID int64) {
	r.mu.Lock()
	w := r.libraries[libraryID]
	delete(r.libraries, libraryID)
	r.mu.Unlock()

	if w != nil {
		w.close()
		r.logger.Debug("library unregistered", logging.Int64(logging.FieldLibraryID, libraryID))
	}
}

// UnregisterLibraries stops watching each listed library.
func (r *Registry) UnregisterLibraries(ids []int64) {
	for _, id := range ids {
		r.UnregisterLibrary(id)
	}
}

// IsLibraryMonitored reports whether libraryID is currently registered.
func (r *Registry) IsLibraryMonitored(libraryID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.libraries[libraryID]
	return ok
}

// MonitoredLibraries returns the registered library IDs in ascending order.
func (r *Registry) MonitoredLibraries() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.libraries))
	for id := range r.libraries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Roots returns the watched roots of libraryID.
func (r *Registry) Roots(libraryID int64) []string {
	r.mu.Lock()
	w := r.libraries[libraryID]
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.rootsSnapshot()
}

// Suspend unregisters the listed libraries that are currently monitored and
// returns a Suspension that re-registers exactly those libraries with the roots
// they had. Unmonitored or repeated IDs are ignored.
func (r *Registry) Suspend(ctx context.Context, libraryIDs ...int64) (*Suspension, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type suspended struct {
		id    int64
		roots []string
		watch *libraryWatch
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "monitoring", "suspend", "registry is closed", nil)
	}
	var paused []suspended
	seen := make(map[int64]struct{}, len(libraryIDs))
	for _, id := range libraryIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		w, ok := r.libraries[id]
		if !ok {
			continue
		}
		delete(r.libraries, id)
		paused = append(paused, suspended{id: id, roots: w.rootsSnapshot(), watch: w})
	}
	r.mu.Unlock()

	ids := make([]int64, 0, len(paused))
	for _, p := range paused {
		p.watch.close()
		ids = append(ids, p.id)
	}
	if len(ids) > 0 {
		r.logger.Debug("monitoring suspended", logging.Any("libraries", ids))
	}

	return NewSuspension(ids, func(ctx context.Context) error {
		var errs []error
		for _, p := range paused {
			if len(p.roots) == 0 {
				if err := r.RegisterLibrary(ctx, catalog.Library{ID: p.id}); err != nil {
					errs = append(errs, err)
				}
				continue
			}
			for _, root := range p.roots {
				if err := r.RegisterLibraryPaths(ctx, p.id, root); err != nil {
					errs = append(errs, err)
				}
			}
		}
		if len(ids) > 0 {
			r.logger.Debug("monitoring resumed", logging.Any("libraries", ids))
		}
		return errors.Join(errs...)
	}), nil
}

// Close stops every watcher. Later registrations fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	watches := make([]*libraryWatch, 0, len(r.libraries))
	for id, w := range r.libraries {
		watches = append(watches, w)
		delete(r.libraries, id)
	}
	r.mu.Unlock()

	for _, w := range watches {
		w.close()
	}
	return nil
}

func (r *Registry) watchLocked(libraryID int64) (*libraryWatch, error) {
	if r.closed {
		return nil, services.Wrap(services.ErrValidation, "monitoring", "register", "registry is closed", nil)
	}
	if w, ok := r.libraries[libraryID]; ok {
		return w, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "monitoring", "register", "create watcher", err)
	}
	w := &libraryWatch{
		id:       libraryID,
		watcher:  fsw,
		registry: r,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
		ops:      make(map[string]fsnotify.Op),
	}
	r.libraries[libraryID] = w
	go w.loop()
	return w, nil
}

type libraryWatch struct {
	id       int64
	watcher  *fsnotify.Watcher
	registry *Registry
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	roots  []string
	timers map[string]*time.Timer
	ops    map[string]fsnotify.Op
}

func (w *libraryWatch) hasRoot(root string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.roots {
		if existing == root {
			return true
		}
	}
	return false
}

func (w *libraryWatch) addRoot(root string) {
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()
}

func (w *libraryWatch) rootsSnapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.roots))
	copy(out, w.roots)
	return out
}

func (w *libraryWatch) rootFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

// addTree adds dir and every directory below it to the watcher.
func (w *libraryWatch) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *libraryWatch) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.registry.logger, "library watcher error", "monitoring_watch_error",
				logging.Int64(logging.FieldLibraryID, w.id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inotify limits (fs.inotify.max_user_watches)"),
				logging.String(logging.FieldImpact, "some library changes may be missed"),
			)
		case <-w.stop:
			return
		}
	}
}

func (w *libraryWatch) handle(event fsnotify.Event) {
	if staging.IsStaged(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(context.Background(), event.Name); err != nil {
				w.registry.logger.Debug("failed to watch new directory",
					logging.String("path", event.Name),
					logging.Error(err),
				)
			}
		}
	}
	w.schedule(event.Name, event.Op)
}

func (w *libraryWatch) schedule(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stop:
		return
	default:
	}
	w.ops[path] |= op
	if t, ok := w.timers[path]; ok {
		t.Reset(w.registry.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.registry.debounce, func() { w.fire(path) })
}

func (w *libraryWatch) fire(path string) {
	w.mu.Lock()
	op := w.ops[path]
	delete(w.ops, path)
	delete(w.timers, path)
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}
	w.registry.sink.HandleEvent(context.Background(), Event{
		LibraryID: w.id,
		Root:      w.rootFor(path),
		Path:      path,
		Op:        op,
		At:        time.Now(),
	})
}

func (w *libraryWatch) close() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
		<-w.done

		w.mu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.ops = make(map[string]fsnotify.Op)
		w.mu.Unlock()
	})
}
