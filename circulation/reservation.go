package circulation

import (
	"errors"
	"time"
)

// Reservation is a member's pending hold on a book (not on a specific
// copy). Lower priority tiers are served first; within a tier the earliest
// reservation wins (FIFO).
type Reservation struct {
	ID              ReservationID
	BookID          BookID
	MemberID        MemberID
	Priority        int
	ReservationDate time.Time
	Status          ReservationStatus
}

// Validate checks the invariants that the engine enforces on insert.
func (r Reservation) Validate() error {
	if r.BookID == 0 || r.MemberID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("reservation must reference a book and a member"))
	}

	if r.Priority < 0 {
		return errors.Join(ErrInvalidEntity, errors.New("priority tier must not be negative"))
	}

	if !r.Status.IsValid() {
		return errors.Join(ErrInvalidEntity, errors.New("unknown reservation status"))
	}

	return nil
}

// ServedBefore reports whether r should be matched to a released copy
// before other. This is the queue ordering: priority tier ascending, ties
// broken by reservation date ascending, then by identifier for stability.
func (r Reservation) ServedBefore(other Reservation) bool {
	if r.Priority != other.Priority {
		return r.Priority < other.Priority
	}

	if !r.ReservationDate.Equal(other.ReservationDate) {
		return r.ReservationDate.Before(other.ReservationDate)
	}

	return r.ID < other.ID
}

// AuditTable implements AuditImage.
func (r Reservation) AuditTable() AuditTable { return AuditTableReservations }
