// Package services defines shared utilities consumed by the relocation
// components and the daemon surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, book IDs, library IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, so callers can tell a
//     missing reference from an IO failure without string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon and CLI.
package services
