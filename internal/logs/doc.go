// Package logs reads the daemon log file for `bindery logs`.
//
// Last returns the trailing lines of the file with an optional substring
// filter, typically a batch or request id. Follow then streams appended lines
// using fsnotify until the caller's context ends.
package logs
