package postgresstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/postgresstore/internal/adapters"
)

// unitTx is one atomic unit backed by a serializable transaction. All reads
// and writes run inside the transaction, so read-your-writes and commit
// atomicity come for free; serialization conflicts surface on Commit as
// circulation.ErrUnitConflict.
type unitTx struct {
	store    *Store
	ctx      context.Context
	tx       adapters.DBTx
	finished bool
}

func (u *unitTx) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// queryRow runs a statement expected to return at most one row and reports
// whether one was found.
func (u *unitTx) queryRow(stmt *goqu.SelectDataset, scan func(adapters.DBRows) error) (bool, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return false, toSQLErr
	}

	rows, err := u.runQuery(sqlQuery)
	if err != nil {
		return false, err
	}
	defer u.store.closeRows(rows)

	if !rows.Next() {
		return false, nil
	}

	return true, scan(rows)
}

// queryRows runs a statement and feeds every row to scan.
func (u *unitTx) queryRows(stmt *goqu.SelectDataset, scan func(adapters.DBRows) error) error {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return toSQLErr
	}

	rows, err := u.runQuery(sqlQuery)
	if err != nil {
		return err
	}
	defer u.store.closeRows(rows)

	for rows.Next() {
		if scanErr := scan(rows); scanErr != nil {
			return scanErr
		}
	}

	return nil
}

func (u *unitTx) runQuery(sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := u.tx.Query(u.ctx, sqlQuery)
	u.store.logQueryWithDuration(sqlQuery, time.Since(start))

	if err != nil {
		return nil, mapDatabaseError(err)
	}

	return rows, nil
}

func (u *unitTx) exec(sqlQuery string) (int64, error) {
	start := time.Now()
	result, err := u.tx.Exec(u.ctx, sqlQuery)
	u.store.logQueryWithDuration(sqlQuery, time.Since(start))

	if err != nil {
		return 0, mapDatabaseError(err)
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return 0, rowsErr
	}

	return rowsAffected, nil
}

// insertReturningID runs an insert with RETURNING id and scans the
// allocated surrogate identifier.
func (u *unitTx) insertReturningID(table string, record goqu.Record) (int64, error) {
	stmt := u.builder().
		Insert(table).
		Rows(record).
		Returning(colID)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return 0, toSQLErr
	}

	rows, err := u.runQuery(sqlQuery)
	if err != nil {
		return 0, err
	}
	defer u.store.closeRows(rows)

	if !rows.Next() {
		return 0, circulation.ErrUnitConflict
	}

	var id int64
	if scanErr := rows.Scan(&id); scanErr != nil {
		return 0, scanErr
	}

	return id, nil
}

// update runs an update and maps zero affected rows to notFoundErr.
func (u *unitTx) update(table string, id int64, record goqu.Record, notFoundErr error) error {
	stmt := u.builder().
		Update(table).
		Set(record).
		Where(goqu.C(colID).Eq(id))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return toSQLErr
	}

	rowsAffected, err := u.exec(sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return notFoundErr
	}

	return nil
}

// Catalog and membership lookups.

func (u *unitTx) Branch(id circulation.BranchID) (circulation.Branch, error) {
	branch := circulation.Branch{ID: id}

	stmt := u.builder().
		From(tableBranches).
		Select(colName, colAddress, colPhone).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&branch.Name, &branch.Address, &branch.Phone)
	})
	if err != nil {
		return circulation.Branch{}, err
	}

	if !found {
		return circulation.Branch{}, circulation.ErrBranchNotFound
	}

	return branch, nil
}

func (u *unitTx) Staff(id circulation.StaffID) (circulation.Staff, error) {
	staff := circulation.Staff{ID: id}
	var role string

	stmt := u.builder().
		From(tableStaff).
		Select(colBranchID, colName, colEmail, colRole, colHiredAt).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&staff.BranchID, &staff.Name, &staff.Email, &role, &staff.HiredAt)
	})
	if err != nil {
		return circulation.Staff{}, err
	}

	if !found {
		return circulation.Staff{}, circulation.ErrStaffNotFound
	}

	staff.Role = circulation.StaffRole(role)

	return staff, nil
}

func (u *unitTx) Member(id circulation.MemberID) (circulation.Member, error) {
	member := circulation.Member{ID: id}
	var membership string

	stmt := u.builder().
		From(tableMembers).
		Select(colName, colEmail, colMembership, colJoinedAt, colExpiresAt, colMaxBooksAllowed).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&member.Name, &member.Email, &membership,
			&member.JoinedAt, &member.ExpiresAt, &member.MaxBooksAllowed)
	})
	if err != nil {
		return circulation.Member{}, err
	}

	if !found {
		return circulation.Member{}, circulation.ErrMemberNotFound
	}

	member.Membership = circulation.MembershipType(membership)

	return member, nil
}

func (u *unitTx) MemberEmailTaken(email string) (bool, error) {
	stmt := u.builder().
		From(tableMembers).
		Select(colID).
		Where(goqu.Func("lower", goqu.C(colEmail)).Eq(strings.ToLower(email))).
		Limit(1)

	var id int64

	return u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&id)
	})
}

func (u *unitTx) Author(id circulation.AuthorID) (circulation.Author, error) {
	author := circulation.Author{ID: id}

	stmt := u.builder().
		From(tableAuthors).
		Select(colName, colBirthYear).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&author.Name, &author.BirthYear)
	})
	if err != nil {
		return circulation.Author{}, err
	}

	if !found {
		return circulation.Author{}, circulation.ErrAuthorNotFound
	}

	return author, nil
}

func (u *unitTx) Publisher(id circulation.PublisherID) (circulation.Publisher, error) {
	publisher := circulation.Publisher{ID: id}

	stmt := u.builder().
		From(tablePublishers).
		Select(colName, colEmail, colPhone).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&publisher.Name, &publisher.Email, &publisher.Phone)
	})
	if err != nil {
		return circulation.Publisher{}, err
	}

	if !found {
		return circulation.Publisher{}, circulation.ErrPublisherNotFound
	}

	return publisher, nil
}

func (u *unitTx) PublisherTaken(name, email string) (bool, error) {
	stmt := u.builder().
		From(tablePublishers).
		Select(colID).
		Where(goqu.Or(
			goqu.Func("lower", goqu.C(colName)).Eq(strings.ToLower(name)),
			goqu.Func("lower", goqu.C(colEmail)).Eq(strings.ToLower(email)),
		)).
		Limit(1)

	var id int64

	return u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&id)
	})
}

func (u *unitTx) Book(id circulation.BookID) (circulation.Book, error) {
	book := circulation.Book{ID: id}

	stmt := u.builder().
		From(tableBooks).
		Select(colISBN, colTitle, colPublisherID, colPublicationYear, colEdition).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&book.ISBN, &book.Title, &book.PublisherID, &book.PublicationYear, &book.Edition)
	})
	if err != nil {
		return circulation.Book{}, err
	}

	if !found {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	authorsStmt := u.builder().
		From(tableBookAuthors).
		Select(colAuthorID).
		Where(goqu.C(colBookID).Eq(id)).
		Order(goqu.C(colPosition).Asc())

	scanErr := u.queryRows(authorsStmt, func(rows adapters.DBRows) error {
		var authorID circulation.AuthorID
		if err := rows.Scan(&authorID); err != nil {
			return err
		}
		book.AuthorIDs = append(book.AuthorIDs, authorID)
		return nil
	})
	if scanErr != nil {
		return circulation.Book{}, scanErr
	}

	return book, nil
}

func (u *unitTx) ISBNTaken(isbn string) (bool, error) {
	stmt := u.builder().
		From(tableBooks).
		Select(colID).
		Where(goqu.C(colISBN).Eq(isbn)).
		Limit(1)

	var id int64

	return u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&id)
	})
}

func (u *unitTx) Copy(id circulation.CopyID) (circulation.BookCopy, error) {
	bookCopy := circulation.BookCopy{ID: id}
	var status, condition string

	stmt := u.builder().
		From(tableCopies).
		Select(colBookID, colBranchID, colShelfLocation, colStatus, colCondition, colAcquiredAt).
		Where(goqu.C(colID).Eq(id))

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&bookCopy.BookID, &bookCopy.BranchID, &bookCopy.ShelfLocation,
			&status, &condition, &bookCopy.AcquiredAt)
	})
	if err != nil {
		return circulation.BookCopy{}, err
	}

	if !found {
		return circulation.BookCopy{}, circulation.ErrCopyNotFound
	}

	bookCopy.Status = circulation.CopyStatus(status)
	bookCopy.Condition = circulation.CopyCondition(condition)

	return bookCopy, nil
}

// Loan ledger lookups.

func loanColumns() []any {
	return []any{colID, colCopyID, colMemberID, colStaffID,
		colLoanDate, colDueDate, colReturnDate, colLateFee, colStatus}
}

func scanLoan(rows adapters.DBRows) (circulation.Loan, error) {
	var loan circulation.Loan
	var returnDate sql.NullTime
	var status string

	scanErr := rows.Scan(&loan.ID, &loan.CopyID, &loan.MemberID, &loan.StaffID,
		&loan.LoanDate, &loan.DueDate, &returnDate, &loan.LateFee, &status)
	if scanErr != nil {
		return circulation.Loan{}, scanErr
	}

	if returnDate.Valid {
		loan.ReturnDate = &returnDate.Time
	}

	loan.Status = circulation.LoanStatus(status)

	return loan, nil
}

func (u *unitTx) Loan(id circulation.LoanID) (circulation.Loan, error) {
	stmt := u.builder().
		From(tableLoans).
		Select(loanColumns()...).
		Where(goqu.C(colID).Eq(id))

	var loan circulation.Loan

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		var scanErr error
		loan, scanErr = scanLoan(rows)
		return scanErr
	})
	if err != nil {
		return circulation.Loan{}, err
	}

	if !found {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return loan, nil
}

func openLoanStatuses() []string {
	return []string{string(circulation.LoanActive), string(circulation.LoanOverdue)}
}

func (u *unitTx) ActiveLoanByCopy(id circulation.CopyID) (circulation.Loan, bool, error) {
	stmt := u.builder().
		From(tableLoans).
		Select(loanColumns()...).
		Where(goqu.C(colCopyID).Eq(id), goqu.C(colStatus).In(openLoanStatuses())).
		Limit(1)

	var loan circulation.Loan

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		var scanErr error
		loan, scanErr = scanLoan(rows)
		return scanErr
	})
	if err != nil {
		return circulation.Loan{}, false, err
	}

	return loan, found, nil
}

func (u *unitTx) ActiveLoanCount(id circulation.MemberID) (int, error) {
	stmt := u.builder().
		From(tableLoans).
		Select(goqu.COUNT(colID)).
		Where(goqu.C(colMemberID).Eq(id), goqu.C(colStatus).In(openLoanStatuses()))

	var count int

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&count)
	})
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, nil
	}

	return count, nil
}

func (u *unitTx) OpenLoansDueBefore(cutoff time.Time) ([]circulation.Loan, error) {
	stmt := u.builder().
		From(tableLoans).
		Select(loanColumns()...).
		Where(goqu.C(colStatus).In(openLoanStatuses()), goqu.C(colDueDate).Lt(cutoff)).
		Order(goqu.C(colDueDate).Asc(), goqu.C(colID).Asc())

	loans := make([]circulation.Loan, 0)

	err := u.queryRows(stmt, func(rows adapters.DBRows) error {
		loan, scanErr := scanLoan(rows)
		if scanErr != nil {
			return scanErr
		}
		loans = append(loans, loan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loans, nil
}

// Reservation queue lookups.

func reservationColumns() []any {
	return []any{colID, colBookID, colMemberID, colPriority, colReservationDate, colStatus}
}

func scanReservation(rows adapters.DBRows) (circulation.Reservation, error) {
	var reservation circulation.Reservation
	var status string

	scanErr := rows.Scan(&reservation.ID, &reservation.BookID, &reservation.MemberID,
		&reservation.Priority, &reservation.ReservationDate, &status)
	if scanErr != nil {
		return circulation.Reservation{}, scanErr
	}

	reservation.Status = circulation.ReservationStatus(status)

	return reservation, nil
}

func (u *unitTx) Reservation(id circulation.ReservationID) (circulation.Reservation, error) {
	stmt := u.builder().
		From(tableReservations).
		Select(reservationColumns()...).
		Where(goqu.C(colID).Eq(id))

	var reservation circulation.Reservation

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		var scanErr error
		reservation, scanErr = scanReservation(rows)
		return scanErr
	})
	if err != nil {
		return circulation.Reservation{}, err
	}

	if !found {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return reservation, nil
}

func (u *unitTx) PendingReservation(
	bookID circulation.BookID,
	memberID circulation.MemberID,
) (circulation.Reservation, bool, error) {

	stmt := u.builder().
		From(tableReservations).
		Select(reservationColumns()...).
		Where(
			goqu.C(colBookID).Eq(bookID),
			goqu.C(colMemberID).Eq(memberID),
			goqu.C(colStatus).Eq(string(circulation.ReservationPending)),
		).
		Limit(1)

	var reservation circulation.Reservation

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		var scanErr error
		reservation, scanErr = scanReservation(rows)
		return scanErr
	})
	if err != nil {
		return circulation.Reservation{}, false, err
	}

	return reservation, found, nil
}

func (u *unitTx) PendingReservationsByBook(bookID circulation.BookID) ([]circulation.Reservation, error) {
	stmt := u.builder().
		From(tableReservations).
		Select(reservationColumns()...).
		Where(
			goqu.C(colBookID).Eq(bookID),
			goqu.C(colStatus).Eq(string(circulation.ReservationPending)),
		).
		Order(goqu.C(colPriority).Asc(), goqu.C(colReservationDate).Asc(), goqu.C(colID).Asc())

	reservations := make([]circulation.Reservation, 0)

	err := u.queryRows(stmt, func(rows adapters.DBRows) error {
		reservation, scanErr := scanReservation(rows)
		if scanErr != nil {
			return scanErr
		}
		reservations = append(reservations, reservation)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservations, nil
}

// Fine ledger lookups.

func fineColumns() []any {
	return []any{colID, colMemberID, colLoanID, colAmount, colPaidAmount,
		colReason, colStatus, colIssuedAt, colPaymentDate}
}

func scanFine(rows adapters.DBRows) (circulation.Fine, error) {
	var fine circulation.Fine
	var loanID sql.NullInt64
	var paymentDate sql.NullTime
	var status string

	scanErr := rows.Scan(&fine.ID, &fine.MemberID, &loanID, &fine.Amount, &fine.PaidAmount,
		&fine.Reason, &status, &fine.IssuedAt, &paymentDate)
	if scanErr != nil {
		return circulation.Fine{}, scanErr
	}

	if loanID.Valid {
		linked := loanID.Int64
		fine.LoanID = &linked
	}

	if paymentDate.Valid {
		fine.PaymentDate = &paymentDate.Time
	}

	fine.Status = circulation.FineStatus(status)

	return fine, nil
}

func (u *unitTx) Fine(id circulation.FineID) (circulation.Fine, error) {
	stmt := u.builder().
		From(tableFines).
		Select(fineColumns()...).
		Where(goqu.C(colID).Eq(id))

	var fine circulation.Fine

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		var scanErr error
		fine, scanErr = scanFine(rows)
		return scanErr
	})
	if err != nil {
		return circulation.Fine{}, err
	}

	if !found {
		return circulation.Fine{}, circulation.ErrFineNotFound
	}

	return fine, nil
}

func (u *unitTx) FinesByLoan(id circulation.LoanID) ([]circulation.Fine, error) {
	stmt := u.builder().
		From(tableFines).
		Select(fineColumns()...).
		Where(goqu.C(colLoanID).Eq(id)).
		Order(goqu.C(colID).Asc())

	fines := make([]circulation.Fine, 0)

	err := u.queryRows(stmt, func(rows adapters.DBRows) error {
		fine, scanErr := scanFine(rows)
		if scanErr != nil {
			return scanErr
		}
		fines = append(fines, fine)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fines, nil
}

func (u *unitTx) OutstandingBalance(id circulation.MemberID) (decimal.Decimal, error) {
	stmt := u.builder().
		From(tableFines).
		Select(goqu.COALESCE(goqu.SUM(goqu.L("? - ?", goqu.C(colAmount), goqu.C(colPaidAmount))), 0)).
		Where(goqu.C(colMemberID).Eq(id))

	balance := decimal.Zero

	found, err := u.queryRow(stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&balance)
	})
	if err != nil {
		return decimal.Zero, err
	}

	if !found {
		return decimal.Zero, nil
	}

	return balance, nil
}

// Staged writes.

func (u *unitTx) InsertBranch(branch circulation.Branch) (circulation.BranchID, error) {
	return u.insertReturningID(tableBranches, goqu.Record{
		colName:    branch.Name,
		colAddress: branch.Address,
		colPhone:   branch.Phone,
	})
}

func (u *unitTx) InsertStaff(staff circulation.Staff) (circulation.StaffID, error) {
	return u.insertReturningID(tableStaff, goqu.Record{
		colBranchID: staff.BranchID,
		colName:     staff.Name,
		colEmail:    staff.Email,
		colRole:     string(staff.Role),
		colHiredAt:  staff.HiredAt,
	})
}

func (u *unitTx) InsertMember(member circulation.Member) (circulation.MemberID, error) {
	return u.insertReturningID(tableMembers, goqu.Record{
		colName:            member.Name,
		colEmail:           member.Email,
		colMembership:      string(member.Membership),
		colJoinedAt:        member.JoinedAt,
		colExpiresAt:       member.ExpiresAt,
		colMaxBooksAllowed: member.MaxBooksAllowed,
	})
}

func (u *unitTx) InsertAuthor(author circulation.Author) (circulation.AuthorID, error) {
	return u.insertReturningID(tableAuthors, goqu.Record{
		colName:      author.Name,
		colBirthYear: author.BirthYear,
	})
}

func (u *unitTx) InsertPublisher(publisher circulation.Publisher) (circulation.PublisherID, error) {
	return u.insertReturningID(tablePublishers, goqu.Record{
		colName:  publisher.Name,
		colEmail: publisher.Email,
		colPhone: publisher.Phone,
	})
}

func (u *unitTx) InsertBook(book circulation.Book) (circulation.BookID, error) {
	bookID, err := u.insertReturningID(tableBooks, goqu.Record{
		colISBN:            book.ISBN,
		colTitle:           book.Title,
		colPublisherID:     book.PublisherID,
		colPublicationYear: book.PublicationYear,
		colEdition:         book.Edition,
	})
	if err != nil {
		return 0, err
	}

	authorRows := make([]any, 0, len(book.AuthorIDs))
	for position, authorID := range book.AuthorIDs {
		authorRows = append(authorRows, goqu.Record{
			colBookID:   bookID,
			colAuthorID: authorID,
			colPosition: position,
		})
	}

	stmt := u.builder().
		Insert(tableBookAuthors).
		Rows(authorRows...)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return 0, toSQLErr
	}

	if _, execErr := u.exec(sqlQuery); execErr != nil {
		return 0, execErr
	}

	return bookID, nil
}

func (u *unitTx) InsertCopy(bookCopy circulation.BookCopy) (circulation.CopyID, error) {
	return u.insertReturningID(tableCopies, goqu.Record{
		colBookID:        bookCopy.BookID,
		colBranchID:      bookCopy.BranchID,
		colShelfLocation: bookCopy.ShelfLocation,
		colStatus:        string(bookCopy.Status),
		colCondition:     string(bookCopy.Condition),
		colAcquiredAt:    bookCopy.AcquiredAt,
	})
}

func (u *unitTx) InsertLoan(loan circulation.Loan) (circulation.LoanID, error) {
	return u.insertReturningID(tableLoans, goqu.Record{
		colCopyID:     loan.CopyID,
		colMemberID:   loan.MemberID,
		colStaffID:    loan.StaffID,
		colLoanDate:   loan.LoanDate,
		colDueDate:    loan.DueDate,
		colReturnDate: nullableTime(loan.ReturnDate),
		colLateFee:    loan.LateFee,
		colStatus:     string(loan.Status),
	})
}

func (u *unitTx) InsertReservation(reservation circulation.Reservation) (circulation.ReservationID, error) {
	return u.insertReturningID(tableReservations, goqu.Record{
		colBookID:          reservation.BookID,
		colMemberID:        reservation.MemberID,
		colPriority:        reservation.Priority,
		colReservationDate: reservation.ReservationDate,
		colStatus:          string(reservation.Status),
	})
}

func (u *unitTx) InsertFine(fine circulation.Fine) (circulation.FineID, error) {
	return u.insertReturningID(tableFines, goqu.Record{
		colMemberID:    fine.MemberID,
		colLoanID:      nullableID(fine.LoanID),
		colAmount:      fine.Amount,
		colPaidAmount:  fine.PaidAmount,
		colReason:      fine.Reason,
		colStatus:      string(fine.Status),
		colIssuedAt:    fine.IssuedAt,
		colPaymentDate: nullableTime(fine.PaymentDate),
	})
}

func (u *unitTx) UpdateCopy(bookCopy circulation.BookCopy) error {
	return u.update(tableCopies, bookCopy.ID, goqu.Record{
		colShelfLocation: bookCopy.ShelfLocation,
		colStatus:        string(bookCopy.Status),
		colCondition:     string(bookCopy.Condition),
	}, circulation.ErrCopyNotFound)
}

func (u *unitTx) UpdateLoan(loan circulation.Loan) error {
	return u.update(tableLoans, loan.ID, goqu.Record{
		colReturnDate: nullableTime(loan.ReturnDate),
		colLateFee:    loan.LateFee,
		colStatus:     string(loan.Status),
	}, circulation.ErrLoanNotFound)
}

func (u *unitTx) UpdateReservation(reservation circulation.Reservation) error {
	return u.update(tableReservations, reservation.ID, goqu.Record{
		colPriority: reservation.Priority,
		colStatus:   string(reservation.Status),
	}, circulation.ErrReservationNotFound)
}

func (u *unitTx) UpdateFine(fine circulation.Fine) error {
	return u.update(tableFines, fine.ID, goqu.Record{
		colLoanID:      nullableID(fine.LoanID),
		colPaidAmount:  fine.PaidAmount,
		colStatus:      string(fine.Status),
		colPaymentDate: nullableTime(fine.PaymentDate),
	}, circulation.ErrFineNotFound)
}

func (u *unitTx) DeleteLoan(id circulation.LoanID) error {
	stmt := u.builder().
		Delete(tableLoans).
		Where(goqu.C(colID).Eq(id))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return toSQLErr
	}

	rowsAffected, err := u.exec(sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return circulation.ErrLoanNotFound
	}

	return nil
}

func (u *unitTx) AppendAudit(entry circulation.AuditEntry) error {
	stmt := u.builder().
		Insert(tableAuditLog).
		Rows(goqu.Record{
			colEntryID:    entry.EntryID.String(),
			colTableName:  string(entry.Table),
			colRecordID:   entry.RecordID,
			colAction:     string(entry.Action),
			colBefore:     nullableJSON(entry.Before),
			colAfter:      nullableJSON(entry.After),
			colActorStaff: entry.ActorStaff,
			colOccurredAt: entry.OccurredAt,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		u.store.logError(logMsgBuildSQLFailed, toSQLErr)
		return toSQLErr
	}

	if _, err := u.exec(sqlQuery); err != nil {
		return err
	}

	return nil
}

// Commit implements circulation.Unit. A serialization failure at commit is
// mapped to circulation.ErrUnitConflict like any other conflict.
func (u *unitTx) Commit(ctx context.Context) error {
	if u.finished {
		return circulation.ErrUnitAlreadyFinished
	}

	u.finished = true

	if err := u.tx.Commit(ctx); err != nil {
		return mapDatabaseError(err)
	}

	return nil
}

// Rollback implements circulation.Unit.
func (u *unitTx) Rollback() error {
	if u.finished {
		return circulation.ErrUnitAlreadyFinished
	}

	u.finished = true

	if err := u.tx.Rollback(u.ctx); err != nil {
		return mapDatabaseError(err)
	}

	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}

	return *id
}

func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}

	return goqu.L("?::jsonb", string(raw))
}
