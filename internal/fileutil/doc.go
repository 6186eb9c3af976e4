// Package fileutil moves and copies book files, falling back to a verified
// copy when a rename crosses filesystems.
package fileutil
