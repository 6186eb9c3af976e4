package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"bindery/internal/catalog"
	"bindery/internal/relocation"
	"bindery/internal/testsupport"
)

func TestLibraryAndBookCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "shelf")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, _, err := runCLI(t, []string{"library", "add", "Fiction", "--path", root}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library add: %v", err)
	}
	requireContains(t, out, "Library 1 created: Fiction")
	requireContains(t, out, root)

	out, _, err = runCLI(t, []string{"library", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	requireContains(t, out, "Fiction")
	requireContains(t, out, "(default)")

	file := filepath.Join(root, "incoming", "dune.epub")
	testsupport.WriteFile(t, file, 32)
	out, _, err = runCLI(t, []string{
		"book", "add", file,
		"--library", "1",
		"--title", "Dune",
		"--author", "Frank Herbert",
		"--series", "Dune",
		"--series-index", "1",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("book add: %v", err)
	}
	requireContains(t, out, "Book 1 registered")

	out, _, err = runCLI(t, []string{"book", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	var books []catalog.Book
	if err := json.Unmarshal([]byte(out), &books); err != nil {
		t.Fatalf("decode book list: %v\n%s", err, out)
	}
	if len(books) != 1 || books[0].Title != "Dune" || books[0].SubPath != "incoming" {
		t.Fatalf("unexpected books: %+v", books)
	}
}

func TestBookAddRejectsFileOutsideRoots(t *testing.T) {
	env := setupCLITestEnv(t)
	lib := testsupport.NewLibrary(t, env.store, env.cfg, "Books", "", "books")
	stray := filepath.Join(env.baseDir, "elsewhere", "stray.epub")
	testsupport.WriteFile(t, stray, 8)

	_, _, err := runCLI(t, []string{"book", "add", stray, "--library", strconv.FormatInt(lib.ID, 10)}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for file outside library roots")
	}
	requireContains(t, err.Error(), "not under any root")
}

func TestMoveThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	lib, book := env.newShelvedBook(t, "{authors}/{title}")
	oldPath := book.FullPath()

	out, _, err := runCLI(t, []string{
		"move",
		"--book", strconv.FormatInt(book.ID, 10),
		"--library", strconv.FormatInt(lib.ID, 10),
		"--path", strconv.FormatInt(lib.Paths[0].ID, 10),
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	requireContains(t, out, "Moved: 1  Skipped: 0  Failed: 0")

	testsupport.AssertExists(t, filepath.Join(lib.Paths[0].Path, "Frank Herbert", "Dune.epub"))
	testsupport.AssertMissing(t, oldPath)
}

func TestMoveLocal(t *testing.T) {
	env := setupOfflineCLITestEnv(t)
	lib, book := env.newShelvedBook(t, "{title}")

	out, _, err := runCLI(t, []string{
		"--local", "move", "--json",
		"--book", strconv.FormatInt(book.ID, 10),
		"--library", strconv.FormatInt(lib.ID, 10),
		"--path", strconv.FormatInt(lib.Paths[0].ID, 10),
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("move --local: %v", err)
	}
	var result relocation.BatchResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if result.Moved != 1 {
		t.Fatalf("expected one move, got %+v", result)
	}
	testsupport.AssertExists(t, filepath.Join(lib.Paths[0].Path, "Dune.epub"))
}

func TestMoveLocalRefusedWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	lib, book := env.newShelvedBook(t, "{title}")
	oldPath := book.FullPath()

	_, _, err := runCLI(t, []string{
		"--local", "move",
		"--book", strconv.FormatInt(book.ID, 10),
		"--library", strconv.FormatInt(lib.ID, 10),
		"--path", strconv.FormatInt(lib.Paths[0].ID, 10),
	}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected --local move to be refused while binderyd runs")
	}
	requireContains(t, err.Error(), "binderyd is running")
	testsupport.AssertExists(t, oldPath)
	testsupport.AssertMissing(t, filepath.Join(lib.Paths[0].Path, "Dune.epub"))
}

func TestMoveWithoutDaemonSuggestsLocal(t *testing.T) {
	env := setupOfflineCLITestEnv(t)
	_, _, err := runCLI(t, []string{"move", "--book", "1", "--library", "1", "--path", "1"},
		env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected move without a daemon to fail")
	}
	requireContains(t, err.Error(), "--local")
}

func TestMoveSkipsUnknownBook(t *testing.T) {
	env := setupCLITestEnv(t)
	lib, _ := env.newShelvedBook(t, "")

	out, _, err := runCLI(t, []string{
		"move", "--book", "999",
		"--library", strconv.FormatInt(lib.ID, 10),
		"--path", strconv.FormatInt(lib.Paths[0].ID, 10),
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	requireContains(t, out, "Skipped: 1")
	requireContains(t, out, "not_found")
}

func TestNormalizeCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	lib, book := env.newShelvedBook(t, "{authors}/{title}")
	id := strconv.FormatInt(book.ID, 10)

	out, _, err := runCLI(t, []string{"normalize", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	requireContains(t, out, "moved to Frank Herbert/Dune.epub")
	testsupport.AssertExists(t, filepath.Join(lib.Paths[0].Path, "Frank Herbert", "Dune.epub"))

	out, _, err = runCLI(t, []string{"normalize", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	requireContains(t, out, "already in place")
}

func TestReconcileCommandNothingPending(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"reconcile"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "Nothing to reconcile")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.newShelvedBook(t, "")

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] pid")
	requireContains(t, out, "No pending moves")
}

func TestStatusCommandOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, filepath.Join(env.baseDir, "missing.sock"), env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN] not running")
	requireContains(t, out, "== Checks ==")
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	target := filepath.Join(dir, "bindery.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "validate", target}, "", "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "e.g. Frank Herbert/Dune/2 - Dune Messiah.epub")

	out, _, err = runCLI(t, []string{"config", "init", "--stdout"}, "", "")
	if err != nil {
		t.Fatalf("config init --stdout: %v", err)
	}
	requireContains(t, out, "default_pattern =")
}

func TestBuildMoves(t *testing.T) {
	moves, err := buildMoves([]int64{1, 2}, []int64{7}, []int64{3, 4})
	if err != nil {
		t.Fatalf("buildMoves: %v", err)
	}
	want := []relocation.Move{
		{BookID: 1, TargetLibraryID: 7, TargetLibraryPathID: 3},
		{BookID: 2, TargetLibraryID: 7, TargetLibraryPathID: 4},
	}
	if len(moves) != len(want) {
		t.Fatalf("got %d moves", len(moves))
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Fatalf("move %d = %+v, want %+v", i, moves[i], want[i])
		}
	}

	cases := []struct {
		name      string
		books     []int64
		libraries []int64
		paths     []int64
	}{
		{"no books", nil, []int64{1}, []int64{1}},
		{"missing library", []int64{1}, nil, []int64{1}},
		{"mismatched paths", []int64{1, 2, 3}, []int64{1}, []int64{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := buildMoves(tc.books, tc.libraries, tc.paths); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.toml")
	content := "[[moves]]\nbook_id = 5\nlibrary_id = 2\npath_id = 9\n\n[[moves]]\nbook_id = 6\nlibrary_id = 2\npath_id = 9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	req, err := loadMoveFile(path)
	if err != nil {
		t.Fatalf("loadMoveFile: %v", err)
	}
	if len(req.Moves) != 2 || req.Moves[1].BookID != 6 || req.Moves[0].TargetLibraryPathID != 9 {
		t.Fatalf("unexpected moves: %+v", req.Moves)
	}

	empty := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadMoveFile(empty); err == nil {
		t.Fatal("expected empty move file to fail")
	}
}

func TestLogsCommandFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "level=INFO msg=\"book relocated\" batch_id=abc\nlevel=INFO msg=\"daemon started\"\n"
	if err := os.WriteFile(env.cfg.LogFilePath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--grep", "batch_id=abc"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "book relocated")
	if strings.Contains(out, "daemon started") {
		t.Fatalf("filter leaked unrelated line: %q", out)
	}
}
