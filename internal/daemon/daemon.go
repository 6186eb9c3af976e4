package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/monitoring"
	"bindery/internal/notifications"
	"bindery/internal/preflight"
	"bindery/internal/relocation"
)

// Daemon owns the catalog, the monitoring registry, and the relocation
// coordinator for the lifetime of binderyd, and enforces single-instance
// execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *catalog.Store
	monitor     *monitoring.Registry
	coordinator *relocation.Coordinator
	relocations relocation.Locker
	notifier    notifications.Service
	recorder    *metrics.Recorder

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time

	mu            sync.Mutex
	lastReconcile *relocation.ReconcileReport
	lastBatch     *relocation.BatchResult
}

// Status represents daemon runtime information.
type Status struct {
	Running            bool
	PID                int
	StartedAt          time.Time
	DatabasePath       string
	LockPath           string
	MonitoredLibraries []int64
	PendingMoves       []catalog.PendingMove
	LastReconcile      *relocation.ReconcileReport
	LastBatch          *relocation.BatchResult
	Preflight          []preflight.Result
}

// New constructs a daemon with initialized dependencies. notifier and
// recorder may be nil.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, notifier notifications.Service, recorder *metrics.Recorder) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and catalog store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}

	monitor := monitoring.NewRegistry(monitoring.Options{
		Debounce: time.Duration(cfg.Monitoring.DebounceMillis) * time.Millisecond,
		Sink:     recorder.CountingSink(monitoring.LogSink{Logger: logging.NewComponentLogger(logger, "monitoring")}),
		Logger:   logger,
	})

	var rec relocation.Recorder
	if recorder != nil {
		rec = recorder
	}

	locker := relocation.NewFileLocker(cfg.RelocationLockPath(), time.Duration(cfg.Relocation.LockTimeoutSeconds)*time.Second)
	coordinator := relocation.NewCoordinator(relocation.Dependencies{
		Books:     store,
		Libraries: store,
		Settings:  store,
		Monitor:   monitor,
		Publisher: notifier,
		Helper:    relocation.NewHelper(logger, cfg.Library.IgnoredArtifacts...),
		Locker:    locker,
		Recorder:  rec,
		Logger:    logger,
	})

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		monitor:     monitor,
		coordinator: coordinator,
		relocations: locker,
		notifier:    notifier,
		recorder:    recorder,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}
	if recorder != nil {
		if err := recorder.MonitoredLibraries(func() int { return len(monitor.MonitoredLibraries()) }); err != nil {
			return nil, fmt.Errorf("register monitoring gauge: %w", err)
		}
	}
	return d, nil
}

// Start acquires the daemon lock, seeds settings, reconciles staged files when
// configured, and starts monitoring every library.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bindery daemon instance is already running")
	}

	if err := d.store.EnsureSetting(ctx, catalog.SettingDefaultPattern, d.cfg.Library.DefaultPattern); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("seed default pattern: %w", err)
	}

	if d.cfg.Relocation.ReconcileOnStartup {
		if _, err := d.Reconcile(ctx); err != nil {
			logging.WarnWithContext(d.logger, "startup reconciliation failed", "reconcile_startup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run bindery reconcile once the catalog is reachable"),
				logging.String(logging.FieldImpact, "staged files from an interrupted batch remain on disk"),
			)
		}
	}

	if d.cfg.Monitoring.Enabled {
		d.watchAll(ctx)
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg, d.store)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix permissions or configuration and restart"),
		)
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("bindery daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("monitored_libraries", len(d.monitor.MonitoredLibraries())),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

func (d *Daemon) watchAll(ctx context.Context) {
	libraries, err := d.store.ListLibraries(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "list libraries for monitoring failed", "monitoring_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "library changes are not observed"),
		)
		return
	}
	for _, lib := range libraries {
		if err := d.monitor.RegisterLibrary(ctx, *lib); err != nil {
			logging.WarnWithContext(d.logger, "library monitoring failed", "monitoring_register_failed",
				logging.Int64(logging.FieldLibraryID, lib.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that every library root exists and is readable"),
			)
		}
	}
}

// WatchLibrary starts (or extends) monitoring for one library, picking up
// roots added since startup. It waits for any running relocation so a
// suspended library is not re-registered mid-move.
func (d *Daemon) WatchLibrary(ctx context.Context, libraryID int64) error {
	if !d.cfg.Monitoring.Enabled {
		return nil
	}
	release, err := d.relocations.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	lib, err := d.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return err
	}
	if lib == nil {
		return fmt.Errorf("library %d not found", libraryID)
	}
	return d.monitor.RegisterLibrary(ctx, *lib)
}

// Stop stops monitoring and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.monitor.UnregisterLibraries(d.monitor.MonitoredLibraries())
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start is refused"),
		)
	}
	d.running.Store(false)
	d.logger.Info("bindery daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	_ = d.monitor.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// MoveBooks runs a relocation batch and publishes a summary.
func (d *Daemon) MoveBooks(ctx context.Context, req relocation.Request) (relocation.BatchResult, error) {
	result, err := d.coordinator.MoveBooks(ctx, req)
	if err != nil {
		return result, err
	}
	d.mu.Lock()
	d.lastBatch = &result
	d.mu.Unlock()

	if result.Moved+result.Failed > 0 {
		summary := notifications.BatchSummary{
			Moved:    result.Moved,
			Skipped:  result.Skipped,
			Failed:   result.Failed,
			Duration: result.Duration,
		}
		if perr := d.notifier.Publish(ctx, notifications.TopicBatchCompleted, summary); perr != nil {
			d.logger.Debug("batch notification failed", logging.Error(perr))
		}
	}
	return result, nil
}

// NormalizeBook renames one book in place to match its library pattern.
func (d *Daemon) NormalizeBook(ctx context.Context, bookID int64) (relocation.MoveOutcome, error) {
	return d.coordinator.NormalizeBook(ctx, bookID)
}

// Reconcile resolves staged files left by interrupted batches.
func (d *Daemon) Reconcile(ctx context.Context) (relocation.ReconcileReport, error) {
	report, err := d.coordinator.Reconcile(ctx)
	if err != nil {
		return report, err
	}
	d.mu.Lock()
	d.lastReconcile = &report
	d.mu.Unlock()

	if failed := report.Count(relocation.ResolutionFailed); failed > 0 {
		msg := fmt.Sprintf("%d staged file(s) could not be reconciled", failed)
		if perr := d.notifier.Publish(ctx, notifications.TopicReconcile, errors.New(msg)); perr != nil {
			d.logger.Debug("reconcile notification failed", logging.Error(perr))
		}
	}
	return report, nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:            d.running.Load(),
		PID:                os.Getpid(),
		StartedAt:          d.startedAt,
		DatabasePath:       d.store.Path(),
		LockPath:           d.lockPath,
		MonitoredLibraries: d.monitor.MonitoredLibraries(),
		Preflight:          preflight.RunAll(ctx, d.cfg, d.store),
	}
	if pending, err := d.store.ListPendingMoves(ctx); err == nil {
		status.PendingMoves = pending
	} else {
		d.logger.Debug("list pending moves failed", logging.Error(err))
	}
	d.mu.Lock()
	status.LastReconcile = d.lastReconcile
	status.LastBatch = d.lastBatch
	d.mu.Unlock()
	return status
}
