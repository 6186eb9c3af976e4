// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// Methods are registered under the "Bindery" service name. Every mutating
// call runs with a correlation id, taken from the request or minted by the
// server, so daemon log lines for one CLI invocation can be grouped.
package ipc
