// Package daemon coordinates the long-running binderyd process.
//
// It wires the catalog store, the monitoring registry, the relocation
// coordinator, notifications, and metrics into a single lifecycle with
// flock-based locking to prevent multiple instances. Start seeds the default
// naming pattern, reconciles staged files left by an interrupted batch, and
// then begins watching every library.
//
// Keep orchestration here; relocation rules live in the relocation package.
package daemon
