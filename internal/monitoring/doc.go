// Package monitoring watches library root directories for file changes and
// lets relocation suspend that watching while it moves files.
//
// A Registry holds one fsnotify watcher per monitored library. Every directory
// below a root is watched, and directories created later are added as they
// appear. Events are debounced per path and handed to an EventSink; staged
// relocation temp files never produce events.
//
// Suspend is the scoped way to pause monitoring. It records which libraries
// were actually monitored and the returned Suspension restores exactly that
// set. Resume is idempotent, so callers can defer it unconditionally.
package monitoring
