// Package staging names and discovers the temporary files a relocation leaves
// next to a book while it is between Stage and Commit.
//
// A staged file sits in its original directory with the ".tmp_move" suffix.
// FindStaged walks library roots for such files so startup reconciliation can
// resume or reverse interrupted moves.
package staging
