package postgresstore

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/postgresstore/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	logMsgSQLExecuted     = "executed sql for: "
	logMsgCloseRowsFailed = "failed to close database rows"
	logMsgBuildSQLFailed  = "failed to build sql statement"
	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrDurationMS     = "duration_ms"

	tableBranches     = "branches"
	tableStaff        = "staff"
	tableMembers      = "members"
	tableAuthors      = "authors"
	tablePublishers   = "publishers"
	tableBooks        = "books"
	tableBookAuthors  = "book_authors"
	tableCopies       = "book_copies"
	tableLoans        = "loans"
	tableReservations = "reservations"
	tableFines        = "fines"
	tableAuditLog     = "audit_log"

	colID              = "id"
	colName            = "name"
	colAddress         = "address"
	colPhone           = "phone"
	colEmail           = "email"
	colBranchID        = "branch_id"
	colRole            = "role"
	colHiredAt         = "hired_at"
	colMembership      = "membership"
	colJoinedAt        = "joined_at"
	colExpiresAt       = "expires_at"
	colMaxBooksAllowed = "max_books_allowed"
	colBirthYear       = "birth_year"
	colISBN            = "isbn"
	colTitle           = "title"
	colPublisherID     = "publisher_id"
	colPublicationYear = "publication_year"
	colEdition         = "edition"
	colBookID          = "book_id"
	colAuthorID        = "author_id"
	colPosition        = "position"
	colShelfLocation   = "shelf_location"
	colStatus          = "status"
	colCondition       = "condition"
	colAcquiredAt      = "acquired_at"
	colCopyID          = "copy_id"
	colMemberID        = "member_id"
	colStaffID         = "staff_id"
	colLoanDate        = "loan_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
	colLateFee         = "late_fee"
	colPriority        = "priority"
	colReservationDate = "reservation_date"
	colLoanID          = "loan_id"
	colAmount          = "amount"
	colPaidAmount      = "paid_amount"
	colReason          = "reason"
	colIssuedAt        = "issued_at"
	colPaymentDate     = "payment_date"
	colEntryID         = "entry_id"
	colTableName       = "table_name"
	colRecordID        = "record_id"
	colAction          = "action"
	colBefore          = "before"
	colAfter           = "after"
	colActorStaff      = "actor_staff"
	colOccurredAt      = "occurred_at"
)

// Store is the PostgreSQL circulation.Store implementation.
type Store struct {
	db     adapters.DBHandle
	logger circulation.Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store. SQL statements with execution
// timing are logged at debug level; row-handling problems at warn or error.
func WithLogger(logger circulation.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewFromPGXPool creates a Store using a pgx pool with optional configuration.
func NewFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseHandle
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewFromPGXPoolWithReplica creates a Store that runs the read-only views
// on a replica pool while atomic units stay on the primary.
func NewFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil || replica == nil {
		return nil, circulation.ErrNilDatabaseHandle
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewFromSQLDB creates a Store using a sql.DB with optional configuration.
func NewFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseHandle
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewFromSQLX creates a Store using a sqlx.DB with optional configuration.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseHandle
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBHandle, options ...Option) (*Store, error) {
	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// BeginUnit implements circulation.Store by opening a serializable
// transaction.
func (s *Store) BeginUnit(ctx context.Context) (circulation.Unit, error) {
	tx, err := s.db.BeginSerializable(ctx)
	if err != nil {
		return nil, mapDatabaseError(err)
	}

	return &unitTx{store: s, ctx: ctx, tx: tx}, nil
}

// ActiveLoans implements circulation.Store.
func (s *Store) ActiveLoans(
	ctx context.Context,
	now time.Time,
	filter circulation.ActiveLoanFilter,
) ([]circulation.ActiveLoanRow, error) {

	loansT := goqu.T(tableLoans).As("l")
	copiesT := goqu.T(tableCopies).As("c")
	booksT := goqu.T(tableBooks).As("b")
	membersT := goqu.T(tableMembers).As("m")
	branchesT := goqu.T(tableBranches).As("br")

	stmt := goqu.Dialect(dialectPostgres).
		From(loansT).
		Join(copiesT, goqu.On(loansT.Col(colCopyID).Eq(copiesT.Col(colID)))).
		Join(booksT, goqu.On(copiesT.Col(colBookID).Eq(booksT.Col(colID)))).
		Join(membersT, goqu.On(loansT.Col(colMemberID).Eq(membersT.Col(colID)))).
		Join(branchesT, goqu.On(copiesT.Col(colBranchID).Eq(branchesT.Col(colID)))).
		Select(
			loansT.Col(colID),
			loansT.Col(colCopyID),
			loansT.Col(colMemberID),
			membersT.Col(colName),
			booksT.Col(colID),
			booksT.Col(colTitle),
			booksT.Col(colISBN),
			branchesT.Col(colID),
			branchesT.Col(colName),
			loansT.Col(colLoanDate),
			loansT.Col(colDueDate),
			loansT.Col(colStatus),
		).
		Where(loansT.Col(colStatus).In(string(circulation.LoanActive), string(circulation.LoanOverdue))).
		Order(loansT.Col(colDueDate).Asc(), loansT.Col(colID).Asc())

	if filter.BranchID != 0 {
		stmt = stmt.Where(copiesT.Col(colBranchID).Eq(filter.BranchID))
	}

	if filter.MemberID != 0 {
		stmt = stmt.Where(loansT.Col(colMemberID).Eq(filter.MemberID))
	}

	if filter.BookID != 0 {
		stmt = stmt.Where(copiesT.Col(colBookID).Eq(filter.BookID))
	}

	if filter.OverdueOnly {
		stmt = stmt.Where(loansT.Col(colDueDate).Lt(now))
	}

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(logMsgBuildSQLFailed, toSQLErr)
		return nil, toSQLErr
	}

	rows, err := s.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(rows)

	out := make([]circulation.ActiveLoanRow, 0)

	for rows.Next() {
		var row circulation.ActiveLoanRow
		var status string

		scanErr := rows.Scan(
			&row.LoanID, &row.CopyID,
			&row.MemberID, &row.MemberName,
			&row.BookID, &row.BookTitle, &row.ISBN,
			&row.BranchID, &row.BranchName,
			&row.LoanDate, &row.DueDate, &status,
		)
		if scanErr != nil {
			return nil, scanErr
		}

		loan := circulation.Loan{DueDate: row.DueDate, Status: circulation.LoanStatus(status)}
		row.Status = loan.DeriveStatus(now)
		row.DaysOverdue = loan.DaysLate(now)

		out = append(out, row)
	}

	return out, nil
}

// AvailableCopies implements circulation.Store.
func (s *Store) AvailableCopies(
	ctx context.Context,
	filter circulation.AvailableCopyFilter,
) ([]circulation.AvailableCopyRow, error) {

	copiesT := goqu.T(tableCopies).As("c")
	booksT := goqu.T(tableBooks).As("b")
	branchesT := goqu.T(tableBranches).As("br")

	stmt := goqu.Dialect(dialectPostgres).
		From(copiesT).
		Join(booksT, goqu.On(copiesT.Col(colBookID).Eq(booksT.Col(colID)))).
		Join(branchesT, goqu.On(copiesT.Col(colBranchID).Eq(branchesT.Col(colID)))).
		Select(
			copiesT.Col(colID),
			booksT.Col(colID),
			booksT.Col(colTitle),
			booksT.Col(colISBN),
			branchesT.Col(colID),
			branchesT.Col(colName),
			copiesT.Col(colShelfLocation),
			copiesT.Col(colCondition),
		).
		Where(copiesT.Col(colStatus).Eq(string(circulation.CopyAvailable))).
		Order(copiesT.Col(colID).Asc())

	if filter.BranchID != 0 {
		stmt = stmt.Where(copiesT.Col(colBranchID).Eq(filter.BranchID))
	}

	if filter.BookID != 0 {
		stmt = stmt.Where(copiesT.Col(colBookID).Eq(filter.BookID))
	}

	if filter.AuthorID != 0 {
		authorMatch := goqu.Dialect(dialectPostgres).
			From(tableBookAuthors).
			Select(colBookID).
			Where(goqu.C(colAuthorID).Eq(filter.AuthorID))
		stmt = stmt.Where(copiesT.Col(colBookID).In(authorMatch))
	}

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(logMsgBuildSQLFailed, toSQLErr)
		return nil, toSQLErr
	}

	rows, err := s.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(rows)

	out := make([]circulation.AvailableCopyRow, 0)
	bookIDs := make([]circulation.BookID, 0)
	seenBooks := make(map[circulation.BookID]struct{})

	for rows.Next() {
		var row circulation.AvailableCopyRow
		var condition string

		scanErr := rows.Scan(
			&row.CopyID,
			&row.BookID, &row.BookTitle, &row.ISBN,
			&row.BranchID, &row.BranchName,
			&row.ShelfLocation, &condition,
		)
		if scanErr != nil {
			return nil, scanErr
		}

		row.Condition = circulation.CopyCondition(condition)
		out = append(out, row)

		if _, seen := seenBooks[row.BookID]; !seen {
			seenBooks[row.BookID] = struct{}{}
			bookIDs = append(bookIDs, row.BookID)
		}
	}

	if len(out) == 0 {
		return out, nil
	}

	authorNames, authorsErr := s.authorNamesByBook(ctx, bookIDs)
	if authorsErr != nil {
		return nil, authorsErr
	}

	for i := range out {
		out[i].Authors = authorNames[out[i].BookID]
	}

	return out, nil
}

// authorNamesByBook resolves author names in book-author order for a set of
// books.
func (s *Store) authorNamesByBook(
	ctx context.Context,
	bookIDs []circulation.BookID,
) (map[circulation.BookID][]string, error) {

	bookAuthorsT := goqu.T(tableBookAuthors).As("ba")
	authorsT := goqu.T(tableAuthors).As("a")

	stmt := goqu.Dialect(dialectPostgres).
		From(bookAuthorsT).
		Join(authorsT, goqu.On(bookAuthorsT.Col(colAuthorID).Eq(authorsT.Col(colID)))).
		Select(bookAuthorsT.Col(colBookID), authorsT.Col(colName)).
		Where(bookAuthorsT.Col(colBookID).In(bookIDs)).
		Order(bookAuthorsT.Col(colBookID).Asc(), bookAuthorsT.Col(colPosition).Asc())

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(logMsgBuildSQLFailed, toSQLErr)
		return nil, toSQLErr
	}

	rows, err := s.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(rows)

	names := make(map[circulation.BookID][]string)

	for rows.Next() {
		var bookID circulation.BookID
		var name string

		if scanErr := rows.Scan(&bookID, &name); scanErr != nil {
			return nil, scanErr
		}

		names[bookID] = append(names[bookID], name)
	}

	return names, nil
}

func (s *Store) runQuery(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, time.Since(start))

	if err != nil {
		return nil, mapDatabaseError(err)
	}

	return rows, nil
}

func (s *Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug
// level if the logger is configured.
func (s *Store) logQueryWithDuration(sqlQuery string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+"query", logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

func (s *Store) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, logAttrError, err.Error())
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
