// Package postgresstore provides a PostgreSQL-backed circulation.Store.
//
// Atomic units map to SERIALIZABLE transactions, so the serializability the
// Store contract promises comes straight from the database. A transaction
// that loses a serialization race (SQLSTATE 40001) surfaces as
// circulation.ErrUnitConflict, which the engine retries with fresh reads;
// unique-constraint violations surface as the matching conflict error.
//
// The store works with pgxpool.Pool, sql.DB, or sqlx.DB through internal
// adapters; pick the constructor for the database library you already use:
//
//	store, err := postgresstore.NewFromPGXPool(pool)
//	store, err := postgresstore.NewFromSQLDB(db)
//	store, err := postgresstore.NewFromSQLX(dbx)
//
// SQL is built with goqu and executed as fully rendered statements.
package postgresstore
