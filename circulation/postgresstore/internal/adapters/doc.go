// Package adapters provides database adapter implementations for the
// PostgreSQL circulation store.
//
// This package implements the adapter pattern to support multiple
// PostgreSQL database libraries: pgxpool.Pool, sql.DB, and sqlx.DB. All
// adapters provide equivalent functionality through a common DBHandle
// interface: serializable transactions for atomic units plus direct query
// execution for the read-only views.
//
// The adapters handle the specifics of each database library while
// presenting a unified interface for transaction control, query execution
// and result handling.
package adapters
