package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bindery/internal/catalog"
	"bindery/internal/daemon"
	"bindery/internal/ipc"
	"bindery/internal/logging"
	"bindery/internal/relocation"
	"bindery/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lib := testsupport.NewLibrary(t, store, cfg, "Books", "{authors}/{title}", "books")
	book := testsupport.NewBook(t, store, catalog.NewBook{
		LibraryID:     lib.ID,
		LibraryPathID: lib.Paths[0].ID,
		SubPath:       "Unsorted",
		FileName:      "nineteen.epub",
		Title:         "1984",
		Authors:       []string{"George Orwell"},
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || len(status.MonitoredLibraries) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	moveResp, err := client.MoveBooks(ipc.MoveBooksRequest{Moves: []relocation.Move{{
		BookID:              book.ID,
		TargetLibraryID:     lib.ID,
		TargetLibraryPathID: lib.Paths[0].ID,
	}}})
	if err != nil {
		t.Fatalf("MoveBooks RPC failed: %v", err)
	}
	if moveResp.Result.Moved != 1 {
		t.Fatalf("expected one move, got %+v", moveResp.Result.Items)
	}
	testsupport.AssertExists(t, filepath.Join(lib.Paths[0].Path, "George Orwell", "1984.epub"))

	normResp, err := client.NormalizeBook(book.ID)
	if err != nil {
		t.Fatalf("NormalizeBook RPC failed: %v", err)
	}
	if normResp.Outcome.Moved {
		t.Fatalf("expected book already in place, got %+v", normResp.Outcome)
	}

	recResp, err := client.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile RPC failed: %v", err)
	}
	if len(recResp.Report.Entries) != 0 {
		t.Fatalf("expected clean reconcile, got %+v", recResp.Report.Entries)
	}

	if _, err := client.MoveBooks(ipc.MoveBooksRequest{}); err == nil {
		t.Fatal("expected empty batch to be rejected")
	}
	if _, err := client.NormalizeBook(0); err == nil {
		t.Fatal("expected invalid book id to be rejected")
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}
}
