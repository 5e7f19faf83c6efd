package engine

import (
	"context"

	"github.com/openshelf/circulation-go/circulation"
)

// Reserve places a pending hold on a book for a member. It fails with
// ErrDuplicatePending when the member already holds a pending reservation
// for the book, and with an Ineligible error when the membership is
// inactive or the outstanding balance is too high. The loan limit does not
// apply to reservations; it is enforced when the hold converts to a loan.
func (e *Engine) Reserve(ctx context.Context, cmd ReserveCommand) (circulation.Reservation, error) {
	if err := cmd.validate(); err != nil {
		return circulation.Reservation{}, err
	}

	var reservation circulation.Reservation

	err := e.execute(ctx, opReserve, func(unit circulation.Unit) error {
		if _, bookErr := unit.Book(cmd.BookID); bookErr != nil {
			return bookErr
		}

		member, memberErr := unit.Member(cmd.MemberID)
		if memberErr != nil {
			return memberErr
		}

		if eligErr := e.checkEligibility(unit, member, cmd.Now, false); eligErr != nil {
			return eligErr
		}

		if _, exists, pendingErr := unit.PendingReservation(cmd.BookID, cmd.MemberID); pendingErr != nil {
			return pendingErr
		} else if exists {
			return circulation.ErrDuplicatePending
		}

		tier := e.policy.DefaultPriorityTier
		if cmd.Priority != nil {
			tier = *cmd.Priority
		}

		reservation = circulation.Reservation{
			BookID:          cmd.BookID,
			MemberID:        cmd.MemberID,
			Priority:        tier,
			ReservationDate: cmd.Now,
			Status:          circulation.ReservationPending,
		}

		if validateErr := reservation.Validate(); validateErr != nil {
			return validateErr
		}

		reservationID, insertErr := unit.InsertReservation(reservation)
		if insertErr != nil {
			return insertErr
		}
		reservation.ID = reservationID

		return stageAudit(unit, circulation.AuditInsert, reservationID, nil, reservation, 0, cmd.Now)
	})
	if err != nil {
		return circulation.Reservation{}, err
	}

	return reservation, nil
}

// CancelReservation cancels a pending reservation; Fulfilled and Cancelled
// reservations are terminal and rejected with ErrReservationNotPending.
func (e *Engine) CancelReservation(
	ctx context.Context,
	cmd CancelReservationCommand,
) (circulation.Reservation, error) {

	if err := cmd.validate(); err != nil {
		return circulation.Reservation{}, err
	}

	var reservation circulation.Reservation

	err := e.execute(ctx, opCancelReservation, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		var lookupErr error
		reservation, lookupErr = unit.Reservation(cmd.ReservationID)
		if lookupErr != nil {
			return lookupErr
		}

		if reservation.Status != circulation.ReservationPending {
			return circulation.ErrReservationNotPending
		}

		beforeReservation := reservation
		reservation.Status = circulation.ReservationCancelled

		if updateErr := unit.UpdateReservation(reservation); updateErr != nil {
			return updateErr
		}

		return stageAudit(
			unit, circulation.AuditUpdate, reservation.ID, beforeReservation, reservation, cmd.StaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Reservation{}, err
	}

	return reservation, nil
}
