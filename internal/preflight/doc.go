// Package preflight provides readiness checks for the directories and
// services bindery depends on.
//
// The daemon logs failed checks at startup and the CLI status command
// renders all of them. Library roots need read, write, and search access
// since relocation renames files inside them.
package preflight
