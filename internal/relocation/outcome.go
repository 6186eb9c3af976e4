package relocation

import "time"

// Move asks for one book to be relocated into a library path.
type Move struct {
	BookID              int64 `json:"book_id" toml:"book_id"`
	TargetLibraryID     int64 `json:"target_library_id" toml:"library_id"`
	TargetLibraryPathID int64 `json:"target_library_path_id" toml:"path_id"`
}

// Request is a batch of moves processed in order.
type Request struct {
	Moves []Move `json:"moves" toml:"moves"`
}

// ItemState is the terminal state of one move.
type ItemState string

const (
	StateMoved   ItemState = "moved"
	StateSkipped ItemState = "skipped"
	StateFailed  ItemState = "failed"
)

// Reasons reported for skipped items that carry no error.
const (
	ReasonAlreadyInPlace = "already_in_place"
	ReasonCancelled      = "cancelled"
)

// ReasonNeedsReconciliation marks a book whose earlier move is still
// journaled and staged.
const ReasonNeedsReconciliation = "needs_reconciliation"

// ItemResult reports what happened to one move.
type ItemResult struct {
	BookID  int64     `json:"book_id"`
	State   ItemState `json:"state"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
	OldPath string    `json:"old_path,omitempty"`
	NewPath string    `json:"new_path,omitempty"`
	// NeedsReconciliation is set when the catalog points at NewPath but the
	// file is still at its staged temp path.
	NeedsReconciliation bool `json:"needs_reconciliation,omitempty"`
}

// BatchResult aggregates the item results of one MoveBooks call.
type BatchResult struct {
	BatchID  string        `json:"batch_id"`
	Items    []ItemResult  `json:"items"`
	Moved    int           `json:"moved"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func (r *BatchResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.State {
	case StateMoved:
		r.Moved++
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
	}
}

// NeedsReconciliation reports whether any item left a staged file behind.
func (r BatchResult) NeedsReconciliation() bool {
	for _, item := range r.Items {
		if item.NeedsReconciliation {
			return true
		}
	}
	return false
}

// MoveOutcome reports the result of normalizing a single book.
type MoveOutcome struct {
	Moved       bool   `json:"moved"`
	NewSubPath  string `json:"new_sub_path"`
	NewFileName string `json:"new_file_name"`
	Reason      string `json:"reason,omitempty"`
}

// Resolution describes how Reconcile handled one staged file or journal row.
type Resolution string

const (
	ResolutionResumed      Resolution = "resumed"
	ResolutionRolledBack   Resolution = "rolled_back"
	ResolutionOrphaned     Resolution = "orphaned"
	ResolutionStaleJournal Resolution = "stale_journal"
	ResolutionFailed       Resolution = "failed"
)

// ReconcileEntry is one line of a ReconcileReport.
type ReconcileEntry struct {
	TempPath   string     `json:"temp_path"`
	BookID     int64      `json:"book_id,omitempty"`
	Resolution Resolution `json:"resolution"`
	Message    string     `json:"message,omitempty"`
}

// ReconcileReport lists every staged file and journal row Reconcile examined.
type ReconcileReport struct {
	Entries []ReconcileEntry `json:"entries"`
}

// Count returns the number of entries with the given resolution.
func (r ReconcileReport) Count(resolution Resolution) int {
	n := 0
	for _, entry := range r.Entries {
		if entry.Resolution == resolution {
			n++
		}
	}
	return n
}
