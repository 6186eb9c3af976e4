package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatStatusLine(t *testing.T) {
	got := formatStatusLine("Daemon", statusOK, "pid 42")
	if !strings.HasPrefix(got, "  Daemon:") || !strings.HasSuffix(got, "[OK] pid 42") {
		t.Fatalf("unexpected line %q", got)
	}
	if got := formatStatusLine("Catalog", statusError, ""); !strings.HasSuffix(got, "[ERROR]") {
		t.Fatalf("unexpected bare line %q", got)
	}
}

func TestStatusPrinterPlainForBuffers(t *testing.T) {
	var buf bytes.Buffer
	p := newStatusPrinter(&buf)
	p.section("Checks")
	p.line("state_dir", statusWarn, "missing")

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no colour codes for a buffer, got %q", out)
	}
	requireContains(t, out, "== Checks ==\n------------\n")
	requireContains(t, out, "[WARN] missing")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]column{idColumn("ID"), textColumn("Name"), textColumn("Pattern")}, [][]string{{"1", "Fiction"}})
	requireContains(t, out, "Fiction")
	requireContains(t, out, "Pattern")
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output without columns")
	}
}
