package postgresstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/openshelf/circulation-go/circulation"
)

const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeUniqueViolation      = "23505"

	constraintMembersEmail       = "members_email_key"
	constraintPublishersName     = "publishers_name_key"
	constraintPublishersEmail    = "publishers_email_key"
	constraintBooksISBN          = "books_isbn_key"
	constraintPendingReservation = "reservations_pending_key"
	constraintOpenLoanPerCopy    = "loans_open_copy_key"
)

// mapDatabaseError translates driver errors into the store's error
// vocabulary. Serialization failures and deadlocks become ErrUnitConflict,
// which the engine retries with fresh reads; unique violations become the
// specific conflict for the constraint that fired. Both the pgx and the
// lib/pq driver error shapes are handled, matching the supported adapters.
func mapDatabaseError(err error) error {
	if err == nil {
		return nil
	}

	code, constraint, ok := pgErrorDetails(err)
	if !ok {
		return err
	}

	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected:
		return errors.Join(circulation.ErrUnitConflict, err)

	case pgCodeUniqueViolation:
		return errors.Join(uniqueViolationError(constraint), err)

	default:
		return err
	}
}

func pgErrorDetails(err error) (code string, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}

	return "", "", false
}

func uniqueViolationError(constraint string) error {
	switch constraint {
	case constraintMembersEmail:
		return circulation.ErrDuplicateEmail
	case constraintPublishersName, constraintPublishersEmail:
		return circulation.ErrDuplicatePublisher
	case constraintBooksISBN:
		return circulation.ErrDuplicateISBN
	case constraintPendingReservation:
		return circulation.ErrDuplicatePending
	case constraintOpenLoanPerCopy:
		return circulation.ErrCopyUnavailable
	default:
		return circulation.ErrUnitConflict
	}
}
