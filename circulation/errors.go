package circulation

import (
	"errors"
)

// Error kinds. Every specific error below unwraps to exactly one kind, so
// callers can classify with errors.Is(err, circulation.ErrConflict) etc.
// without matching individual errors.
var (
	ErrNotFound     = errors.New("referenced entity not found")
	ErrInvalidState = errors.New("operation not allowed in the current lifecycle state")
	ErrIneligible   = errors.New("business rule rejected the member")
	ErrConflict     = errors.New("lost a concurrency race")
	ErrValidation   = errors.New("malformed input")
)

// kindedError couples a specific error message with its kind sentinel.
// Unwrap exposes the kind so that errors.Is matches both the specific
// error value and its kind.
type kindedError struct {
	kind error
	msg  string
}

func (e *kindedError) Error() string { return e.msg }

func (e *kindedError) Unwrap() error { return e.kind }

func newKindedError(kind error, msg string) error {
	return &kindedError{kind: kind, msg: msg}
}

// NotFound errors.
var (
	ErrBranchNotFound      = newKindedError(ErrNotFound, "branch not found")
	ErrStaffNotFound       = newKindedError(ErrNotFound, "staff member not found")
	ErrMemberNotFound      = newKindedError(ErrNotFound, "member not found")
	ErrAuthorNotFound      = newKindedError(ErrNotFound, "author not found")
	ErrPublisherNotFound   = newKindedError(ErrNotFound, "publisher not found")
	ErrBookNotFound        = newKindedError(ErrNotFound, "book not found")
	ErrCopyNotFound        = newKindedError(ErrNotFound, "book copy not found")
	ErrLoanNotFound        = newKindedError(ErrNotFound, "loan not found")
	ErrReservationNotFound = newKindedError(ErrNotFound, "reservation not found")
	ErrFineNotFound        = newKindedError(ErrNotFound, "fine not found")
)

// InvalidState errors.
var (
	ErrAlreadyReturned       = newKindedError(ErrInvalidState, "loan has already been returned")
	ErrReservationNotPending = newKindedError(ErrInvalidState, "reservation is not pending")
	ErrLoanNotReturned       = newKindedError(ErrInvalidState, "only returned loans can be purged")
	ErrCopyNotOnShelf        = newKindedError(ErrInvalidState, "copy is not on the shelf")
	ErrCopyNotInMaintenance  = newKindedError(ErrInvalidState, "copy is not under maintenance")
	ErrCopyAlreadyLost       = newKindedError(ErrInvalidState, "copy is already reported lost")
	ErrFineAlreadyPaid       = newKindedError(ErrInvalidState, "fine is already fully paid")
)

// Ineligible errors.
var (
	ErrMembershipInactive = newKindedError(ErrIneligible, "membership is inactive or expired")
	ErrLoanLimitReached   = newKindedError(ErrIneligible, "member has reached the maximum number of loans")
	ErrBalanceTooHigh     = newKindedError(ErrIneligible, "outstanding fine balance exceeds the allowed threshold")
)

// Conflict errors. ErrUnitConflict signals that an atomic unit lost an
// optimistic commit race; it is safe to retry with fresh reads and the
// engine does so internally.
var (
	ErrCopyUnavailable     = newKindedError(ErrConflict, "copy is not available for checkout")
	ErrDuplicatePending    = newKindedError(ErrConflict, "a pending reservation already exists for this book and member")
	ErrDuplicateEmail      = newKindedError(ErrConflict, "email address is already registered")
	ErrDuplicateISBN       = newKindedError(ErrConflict, "a book with this ISBN is already cataloged")
	ErrDuplicatePublisher  = newKindedError(ErrConflict, "a publisher with this name or email already exists")
	ErrUnitConflict        = newKindedError(ErrConflict, "atomic unit commit conflict")
	ErrAuditAppendFailed   = newKindedError(ErrConflict, "audit append failed, the whole unit was rolled back")
	ErrUnitAlreadyFinished = newKindedError(ErrConflict, "atomic unit is already committed or rolled back")
)

// Validation errors.
var (
	ErrOverPayment         = newKindedError(ErrValidation, "payment exceeds the remaining fine amount")
	ErrNonPositiveAmount   = newKindedError(ErrValidation, "amount must be positive")
	ErrNegativeAmount      = newKindedError(ErrValidation, "amount must not be negative")
	ErrInvalidEntity       = newKindedError(ErrValidation, "entity failed validation")
	ErrInvalidCommand      = newKindedError(ErrValidation, "command failed validation")
	ErrInvalidPolicy       = newKindedError(ErrValidation, "policy failed validation")
	ErrInvalidAuditImages  = newKindedError(ErrValidation, "audit images are missing or of mixed entity kinds")
	ErrNilStore            = newKindedError(ErrValidation, "store must not be nil")
	ErrNilDatabaseHandle   = newKindedError(ErrValidation, "database handle must not be nil")
	ErrDueDateNotAfterLoan = newKindedError(ErrValidation, "due date must be after the loan date")
)
