// Package storage provides the SQLite-backed ticket store, its versioned
// schema, and the append-only activity log table.
package storage
