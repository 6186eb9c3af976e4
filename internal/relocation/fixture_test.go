package relocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/monitoring"
	"bindery/internal/testsupport"
)

type recordingMonitor struct {
	mu         sync.Mutex
	monitored  map[int64]bool
	suspended  []int64
	resumed    []int64
	calls      int
	fail       error
	failResume error
}

func newRecordingMonitor(ids ...int64) *recordingMonitor {
	m := &recordingMonitor{monitored: make(map[int64]bool)}
	for _, id := range ids {
		m.monitored[id] = true
	}
	return m
}

func (m *recordingMonitor) Suspend(_ context.Context, ids ...int64) (*monitoring.Suspension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return nil, m.fail
	}
	var paused []int64
	for _, id := range ids {
		if m.monitored[id] {
			m.monitored[id] = false
			m.suspended = append(m.suspended, id)
			paused = append(paused, id)
		}
	}
	return monitoring.NewSuspension(paused, func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range paused {
			m.monitored[id] = true
			m.resumed = append(m.resumed, id)
		}
		return m.failResume
	}), nil
}

func (m *recordingMonitor) isMonitored(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitored[id]
}

type published struct {
	topic string
	book  *catalog.Book
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	book, _ := payload.(*catalog.Book)
	p.events = append(p.events, published{topic: topic, book: book})
	return p.fail
}

type recordingRecorder struct {
	mu      sync.Mutex
	items   []string
	batches int
	recons  []string
}

func (r *recordingRecorder) ItemFinished(state, _ string) {
	r.mu.Lock()
	r.items = append(r.items, state)
	r.mu.Unlock()
}

func (r *recordingRecorder) BatchFinished(time.Duration) {
	r.mu.Lock()
	r.batches++
	r.mu.Unlock()
}

func (r *recordingRecorder) Reconciled(resolution string) {
	r.mu.Lock()
	r.recons = append(r.recons, resolution)
	r.mu.Unlock()
}

// flakyBooks wraps the real store and can fail location updates.
type flakyBooks struct {
	*catalog.Store
	failUpdate error
}

func (f *flakyBooks) UpdateLocation(ctx context.Context, bookID int64, subPath, fileName string, libraryID, libraryPathID int64) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	return f.Store.UpdateLocation(ctx, bookID, subPath, fileName, libraryID, libraryPathID)
}

type failingSettings struct{}

func (failingSettings) DefaultPattern(context.Context) (string, error) {
	return "", errors.New("settings unavailable")
}

type fixture struct {
	cfg       *config.Config
	store     *catalog.Store
	books     *flakyBooks
	monitor   *recordingMonitor
	publisher *recordingPublisher
	recorder  *recordingRecorder
	helper    *Helper
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := &fixture{
		cfg:       cfg,
		store:     store,
		books:     &flakyBooks{Store: store},
		monitor:   newRecordingMonitor(),
		publisher: &recordingPublisher{},
		recorder:  &recordingRecorder{},
		helper:    NewHelper(logging.NewNop()),
	}
	f.coord = NewCoordinator(Dependencies{
		Books:     f.books,
		Libraries: store,
		Settings:  store,
		Monitor:   f.monitor,
		Publisher: f.publisher,
		Helper:    f.helper,
		Locker:    NewFileLocker(cfg.RelocationLockPath(), time.Second),
		Recorder:  f.recorder,
		Logger:    logging.NewNop(),
	})
	return f
}

func (f *fixture) library(t *testing.T, name, pattern string, roots ...string) *catalog.Library {
	t.Helper()
	lib := testsupport.NewLibrary(t, f.store, f.cfg, name, pattern, roots...)
	f.monitor.mu.Lock()
	f.monitor.monitored[lib.ID] = true
	f.monitor.mu.Unlock()
	return lib
}

func (f *fixture) book(t *testing.T, lib *catalog.Library, nb catalog.NewBook) *catalog.Book {
	t.Helper()
	nb.LibraryID = lib.ID
	if nb.LibraryPathID == 0 {
		nb.LibraryPathID = lib.Paths[0].ID
	}
	return testsupport.NewBook(t, f.store, nb)
}

func (f *fixture) reload(t *testing.T, id int64) *catalog.Book {
	t.Helper()
	book, err := f.store.GetBook(context.Background(), id)
	if err != nil || book == nil {
		t.Fatalf("GetBook(%d): %v", id, err)
	}
	return book
}

func orwellBook() catalog.NewBook {
	return catalog.NewBook{
		SubPath:  "Unsorted",
		FileName: "nineteen.epub",
		Title:    "1984",
		Authors:  []string{"George Orwell"},
	}
}
