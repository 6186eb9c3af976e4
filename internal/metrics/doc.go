// Package metrics exposes bindery's Prometheus instrumentation.
//
// Recorder counts relocation outcomes and reconciliation resolutions,
// CountingSink wraps a monitoring sink to count watcher events, and Server
// serves the registry over HTTP. Each daemon owns its own registry so tests
// can build isolated instances.
package metrics
