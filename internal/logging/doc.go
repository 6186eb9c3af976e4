// Package logging assembles structured slog loggers and formatting helpers used
// across Bindery services.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so relocation code can automatically tag
// log lines with batch, book, and library IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
