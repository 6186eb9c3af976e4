package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/ipc"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *catalog.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

// setupOfflineCLITestEnv writes a config and opens the catalog without
// starting binderyd.
func setupOfflineCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "bindery", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		baseDir:    base,
		cancel:     func() {},
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := setupOfflineCLITestEnv(t)
	cfg := env.cfg
	logger := logging.NewNop()
	d, err := daemon.New(cfg, env.store, logger, nil, metrics.NewRecorder())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env.daemon = d
	env.server = srv
	env.cancel = cancel

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return env
}

// newShelvedBook registers a library with one root and a book sitting in an
// unsorted folder under it.
func (env *cliTestEnv) newShelvedBook(t *testing.T, pattern string) (*catalog.Library, *catalog.Book) {
	t.Helper()
	lib := testsupport.NewLibrary(t, env.store, env.cfg, "Books", pattern, "books")
	book := testsupport.NewBook(t, env.store, catalog.NewBook{
		LibraryID:     lib.ID,
		LibraryPathID: lib.Paths[0].ID,
		SubPath:       "Unsorted",
		FileName:      "dune.epub",
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
	})
	return lib, book
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nmetrics_bind = \"\"\n\n[library]\ndefault_pattern = %q\n\n[monitoring]\nenabled = true\ndebounce_millis = %d\n\n[relocation]\nlock_timeout_seconds = %d\nreconcile_on_startup = false\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Library.DefaultPattern,
		cfg.Monitoring.DebounceMillis,
		cfg.Relocation.LockTimeoutSeconds,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
