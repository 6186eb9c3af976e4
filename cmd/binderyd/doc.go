// Command binderyd runs the bindery relocation daemon in the foreground. It
// serves the JSON-RPC socket used by the bindery CLI, watches library roots,
// and exports Prometheus metrics when paths.metrics_bind is set.
package main
