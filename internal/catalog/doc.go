// Package catalog persists books, libraries, library paths, application
// settings, and the pending-move journal in SQLite.
//
// The Store manages the database connection, schema initialization, and the
// narrow lookups the relocation coordinator needs: find a book or library by
// ID, update a book's on-disk location, and record staged moves so a crash
// between persist and commit can be reconciled on the next start.
//
// Lookups return (nil, nil) when the row does not exist; callers decide
// whether a missing reference is an error. Schema changes bump the version in
// schema.go.
package catalog
