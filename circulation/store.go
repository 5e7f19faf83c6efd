package circulation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract the engine runs on. Implementations
// must provide serializable atomic units: everything read through a Unit is
// validated against concurrent modification at commit time, and everything
// written (including audit entries) becomes visible atomically or not at
// all. A commit that loses a race fails with ErrUnitConflict, which is safe
// to retry with fresh reads.
type Store interface {
	// BeginUnit opens a new atomic unit. Every unit must be finished with
	// exactly one Commit or Rollback.
	BeginUnit(ctx context.Context) (Unit, error)

	// ActiveLoans is the read-only active-loans view; days-overdue is
	// derived against the supplied instant.
	ActiveLoans(ctx context.Context, now time.Time, filter ActiveLoanFilter) ([]ActiveLoanRow, error)

	// AvailableCopies is the read-only available-copies view.
	AvailableCopies(ctx context.Context, filter AvailableCopyFilter) ([]AvailableCopyRow, error)
}

// Unit is one atomic unit of reads and writes. Reads see the unit's own
// staged writes. Writes are invisible to other units until Commit. Lookups
// by missing identifier fail with the matching NotFound error.
//
// Uniqueness constraints (member email, publisher name/email, book ISBN,
// one pending reservation per book and member) are re-verified by the
// implementation at commit time, so an in-flight race surfaces as the
// matching Conflict error rather than as torn state.
type Unit interface {
	// Catalog and membership lookups.
	Branch(id BranchID) (Branch, error)
	Staff(id StaffID) (Staff, error)
	Member(id MemberID) (Member, error)
	MemberEmailTaken(email string) (bool, error)
	Author(id AuthorID) (Author, error)
	Publisher(id PublisherID) (Publisher, error)
	PublisherTaken(name, email string) (bool, error)
	Book(id BookID) (Book, error)
	ISBNTaken(isbn string) (bool, error)
	Copy(id CopyID) (BookCopy, error)

	// Loan ledger lookups.
	Loan(id LoanID) (Loan, error)
	ActiveLoanByCopy(id CopyID) (Loan, bool, error)
	ActiveLoanCount(id MemberID) (int, error)
	OpenLoansDueBefore(cutoff time.Time) ([]Loan, error)

	// Reservation queue lookups. PendingReservationsByBook returns the
	// queue in serving order: priority tier ascending, then reservation
	// date ascending.
	Reservation(id ReservationID) (Reservation, error)
	PendingReservation(bookID BookID, memberID MemberID) (Reservation, bool, error)
	PendingReservationsByBook(bookID BookID) ([]Reservation, error)

	// Fine ledger lookups.
	Fine(id FineID) (Fine, error)
	FinesByLoan(id LoanID) ([]Fine, error)
	OutstandingBalance(id MemberID) (decimal.Decimal, error)

	// Staged writes. Inserts allocate and return the surrogate identifier
	// immediately; the write itself commits with the unit.
	InsertBranch(branch Branch) (BranchID, error)
	InsertStaff(staff Staff) (StaffID, error)
	InsertMember(member Member) (MemberID, error)
	InsertAuthor(author Author) (AuthorID, error)
	InsertPublisher(publisher Publisher) (PublisherID, error)
	InsertBook(book Book) (BookID, error)
	InsertCopy(copy BookCopy) (CopyID, error)
	InsertLoan(loan Loan) (LoanID, error)
	InsertReservation(reservation Reservation) (ReservationID, error)
	InsertFine(fine Fine) (FineID, error)

	UpdateCopy(copy BookCopy) error
	UpdateLoan(loan Loan) error
	UpdateReservation(reservation Reservation) error
	UpdateFine(fine Fine) error

	// DeleteLoan removes a purged loan row. Severing fine links is the
	// engine's responsibility, not the store's.
	DeleteLoan(id LoanID) error

	// AppendAudit stages an audit entry; it commits (or fails) with the
	// unit, never independently of it.
	AppendAudit(entry AuditEntry) error

	Commit(ctx context.Context) error
	Rollback() error
}
