package daemon_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/relocation"
	"bindery/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	d, err := daemon.New(cfg, store, logging.NewNop(), nil, metrics.NewRecorder())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonSeedsDefaultPattern(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDefaultPattern("{title}"))
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := store.DefaultPattern(ctx)
	if err != nil {
		t.Fatalf("DefaultPattern: %v", err)
	}
	if got != "{title}" {
		t.Fatalf("default pattern = %q, want {title}", got)
	}
}

func TestDaemonMovesAndMonitors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	lib := testsupport.NewLibrary(t, store, cfg, "Books", "", "books")
	book := testsupport.NewBook(t, store, catalog.NewBook{
		LibraryID:     lib.ID,
		LibraryPathID: lib.Paths[0].ID,
		SubPath:       "Unsorted",
		FileName:      "nineteen.epub",
		Title:         "1984",
		Authors:       []string{"George Orwell"},
	})
	oldPath := book.FullPath()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if len(status.MonitoredLibraries) != 1 || status.MonitoredLibraries[0] != lib.ID {
		t.Fatalf("monitored libraries = %v, want [%d]", status.MonitoredLibraries, lib.ID)
	}

	result, err := d.MoveBooks(ctx, relocation.Request{Moves: []relocation.Move{{
		BookID:              book.ID,
		TargetLibraryID:     lib.ID,
		TargetLibraryPathID: lib.Paths[0].ID,
	}}})
	if err != nil {
		t.Fatalf("MoveBooks: %v", err)
	}
	if result.Moved != 1 {
		t.Fatalf("expected one moved item, got %+v", result.Items)
	}

	want := filepath.Join(lib.Paths[0].Path, "George Orwell", "1984.epub")
	testsupport.AssertExists(t, want)
	testsupport.AssertMissing(t, oldPath)
	testsupport.AssertMissing(t, filepath.Dir(oldPath))

	status = d.Status(ctx)
	if len(status.MonitoredLibraries) != 1 {
		t.Fatalf("library not resumed after batch: %v", status.MonitoredLibraries)
	}
	if status.LastBatch == nil || status.LastBatch.Moved != 1 {
		t.Fatalf("last batch not recorded: %+v", status.LastBatch)
	}
	if len(status.PendingMoves) != 0 {
		t.Fatalf("journal not cleared: %+v", status.PendingMoves)
	}
}

func TestDaemonWatchLibraryAfterStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	lib := testsupport.NewLibrary(t, store, cfg, "Later", "", "later")
	if err := d.WatchLibrary(ctx, lib.ID); err != nil {
		t.Fatalf("WatchLibrary: %v", err)
	}
	if got := d.Status(ctx).MonitoredLibraries; len(got) != 1 || got[0] != lib.ID {
		t.Fatalf("monitored libraries = %v", got)
	}
	if err := d.WatchLibrary(ctx, 999); err == nil {
		t.Fatal("expected unknown library to fail")
	}
}

func TestDaemonWatchLibraryWaitsForRelocationLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	lib := testsupport.NewLibrary(t, store, cfg, "Later", "", "later")

	held := flock.New(cfg.RelocationLockPath())
	if err := held.Lock(); err != nil {
		t.Fatalf("hold relocation lock: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	err := d.WatchLibrary(waitCtx, lib.ID)
	cancel()
	if err == nil {
		t.Fatal("expected WatchLibrary to wait while a relocation holds the lock")
	}
	if got := d.Status(ctx).MonitoredLibraries; len(got) != 0 {
		t.Fatalf("library registered during relocation: %v", got)
	}

	if err := held.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := d.WatchLibrary(ctx, lib.ID); err != nil {
		t.Fatalf("WatchLibrary after release: %v", err)
	}
	if got := d.Status(ctx).MonitoredLibraries; len(got) != 1 || got[0] != lib.ID {
		t.Fatalf("monitored libraries = %v", got)
	}
}
