// Package relocation moves book files to the location their library's naming
// pattern dictates while keeping the catalog, the filesystem, and directory
// monitoring consistent.
//
// Batch moves follow a staged protocol per book: journal the move, rename the
// file to a sibling temp path, persist the new location, then rename the temp
// file into place. A failed persist rolls the file back; a failed commit is
// reported with NeedsReconciliation and left for Reconcile, which resumes or
// reverses interrupted moves using the pending-move journal.
//
// Monitoring for every library a batch touches is suspended once and resumed
// after the batch, whatever the per-item outcomes. Batches and single-book
// normalizations are serialized across processes by a file lock.
package relocation
