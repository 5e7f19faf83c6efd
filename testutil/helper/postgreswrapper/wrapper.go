package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation/postgresstore"
	"github.com/openshelf/circulation-go/testutil/postgresstore/config"
)

// Adapter type constants
const (
	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"
)

var circulationTables = []string{
	"audit_log",
	"fines",
	"reservations",
	"loans",
	"book_copies",
	"book_authors",
	"books",
	"publishers",
	"authors",
	"members",
	"staff",
	"branches",
}

// Wrapper interface to abstract over different adapter types
type Wrapper interface {
	GetStore() *postgresstore.Store
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store *postgresstore.Store
}

func (w *PGXPoolWrapper) GetStore() *postgresstore.Store {
	return w.store
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db    *sql.DB
	store *postgresstore.Store
}

func (w *SQLDBWrapper) GetStore() *postgresstore.Store {
	return w.store
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db    *sqlx.DB
	store *postgresstore.Store
}

func (w *SQLXWrapper) GetStore() *postgresstore.Store {
	return w.store
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the environment variable
func CreateWrapperWithTestConfig(t testing.TB) Wrapper {
	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch adapterTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		store, err := postgresstore.NewFromPGXPool(connPool)
		assert.NoError(t, err, "error creating store in test setup")

		return &PGXPoolWrapper{pool: connPool, store: store}

	case typeSQLDB:
		db := config.PostgresSQLDBConfig()
		store, err := postgresstore.NewFromSQLDB(db)
		assert.NoError(t, err, "error creating store in test setup")

		return &SQLDBWrapper{db: db, store: store}

	case typeSQLX:
		db := config.PostgresSQLXConfig()
		store, err := postgresstore.NewFromSQLX(db)
		assert.NoError(t, err, "error creating store in test setup")

		return &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}
}

// EnsureSchema creates the circulation tables for the given wrapper if they
// do not exist yet.
func EnsureSchema(t testing.TB, wrapper Wrapper) {
	err := wrapper.GetStore().CreateSchema(context.Background())
	assert.NoError(t, err, "error creating the schema in test setup")
}

// CleanUp truncates all circulation tables for the given wrapper
func CleanUp(t testing.TB, wrapper Wrapper) {
	query := "TRUNCATE TABLE " + strings.Join(circulationTables, ", ") + " RESTART IDENTITY CASCADE"

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := w.pool.Exec(context.Background(), query)
		assert.NoError(t, err, "error cleaning up the circulation tables")

	case *SQLDBWrapper:
		_, err := w.db.Exec(query)
		assert.NoError(t, err, "error cleaning up the circulation tables")

	case *SQLXWrapper:
		_, err := w.db.Exec(query)
		assert.NoError(t, err, "error cleaning up the circulation tables")

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}
}

// CountAuditEntries counts the rows in the audit log for the given wrapper
func CountAuditEntries(t testing.TB, wrapper Wrapper) int {
	var cnt int
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		row := w.pool.QueryRow(context.Background(), `SELECT count(*) FROM audit_log`)
		err = row.Scan(&cnt)

	case *SQLDBWrapper:
		row := w.db.QueryRow(`SELECT count(*) FROM audit_log`)
		err = row.Scan(&cnt)

	case *SQLXWrapper:
		row := w.db.QueryRow(`SELECT count(*) FROM audit_log`)
		err = row.Scan(&cnt)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error counting audit entries")
	return cnt
}
