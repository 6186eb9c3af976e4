package ipc

import (
	"time"

	"bindery/internal/relocation"
)

// MoveBooksRequest carries a relocation batch.
type MoveBooksRequest struct {
	Moves     []relocation.Move `json:"moves"`
	RequestID string            `json:"request_id,omitempty"`
}

// MoveBooksResponse returns the per-item outcome of the batch.
type MoveBooksResponse struct {
	Result relocation.BatchResult `json:"result"`
}

// NormalizeBookRequest renames one book to match its library pattern.
type NormalizeBookRequest struct {
	BookID    int64  `json:"book_id"`
	RequestID string `json:"request_id,omitempty"`
}

// NormalizeBookResponse reports the normalization outcome.
type NormalizeBookResponse struct {
	Outcome relocation.MoveOutcome `json:"outcome"`
}

// ReconcileRequest triggers a reconciliation pass.
type ReconcileRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// ReconcileResponse lists what reconciliation did.
type ReconcileResponse struct {
	Report relocation.ReconcileReport `json:"report"`
}

// WatchLibraryRequest asks the daemon to (re)register monitoring for a library.
type WatchLibraryRequest struct {
	LibraryID int64 `json:"library_id"`
}

// WatchLibraryResponse reports whether the library is now monitored.
type WatchLibraryResponse struct {
	Monitored bool `json:"monitored"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// PendingMove is a journal row awaiting reconciliation.
type PendingMove struct {
	BookID     int64     `json:"book_id"`
	SourcePath string    `json:"source_path"`
	TempPath   string    `json:"temp_path"`
	TargetPath string    `json:"target_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// CheckResult mirrors a preflight result.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// StatusResponse represents daemon status information.
type StatusResponse struct {
	Running            bool                        `json:"running"`
	PID                int                         `json:"pid"`
	StartedAt          time.Time                   `json:"started_at"`
	DatabasePath       string                      `json:"database_path"`
	LockPath           string                      `json:"lock_path"`
	MonitoredLibraries []int64                     `json:"monitored_libraries"`
	PendingMoves       []PendingMove               `json:"pending_moves"`
	LastReconcile      *relocation.ReconcileReport `json:"last_reconcile,omitempty"`
	LastBatch          *relocation.BatchResult     `json:"last_batch,omitempty"`
	Checks             []CheckResult               `json:"checks"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
