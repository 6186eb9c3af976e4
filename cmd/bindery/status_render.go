package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset   = "\x1b[0m"
	headerColor = "\x1b[1;34m"
	labelWidth  = 24
)

// statusPrinter writes sectioned status output, coloured only on terminals.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *statusPrinter) paint(color, s string) string {
	if !p.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func (p *statusPrinter) section(title string) {
	title = strings.TrimSpace(title)
	fmt.Fprintln(p.out, p.paint(headerColor, "== "+title+" =="))
	fmt.Fprintln(p.out, p.paint(headerColor, strings.Repeat("-", len(title)+6)))
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, p.paint(statusKinds[kind].color, formatStatusLine(label, kind, message)))
}

func (p *statusPrinter) text(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *statusPrinter) gap() {
	fmt.Fprintln(p.out)
}

func formatStatusLine(label string, kind statusKind, message string) string {
	status := "[" + statusKinds[kind].label + "]"
	if message != "" {
		status += " " + message
	}
	return fmt.Sprintf("  %-*s %s", labelWidth, label+":", status)
}

func checkKind(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
