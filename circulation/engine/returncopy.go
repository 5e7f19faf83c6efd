package engine

import (
	"context"
	"errors"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// ReturnResult reports everything one return settled: the closed loan, the
// late fine (nil when returned on time), and - when the freed copy was
// matched against the reservation queue - the fulfilled reservation and the
// loan issued for it.
type ReturnResult struct {
	Loan                 circulation.Loan
	Fine                 *circulation.Fine
	FulfilledReservation *circulation.Reservation
	FulfillmentLoan      *circulation.Loan
}

// ReturnCopy closes an open loan. It records the return date, computes the
// late fee (emitting a Pending fine when positive), frees the copy, and
// re-runs reservation matching for the copy's book. Returning the loan of a
// copy reported lost records the fine but leaves the copy Lost.
func (e *Engine) ReturnCopy(ctx context.Context, cmd ReturnCommand) (ReturnResult, error) {
	if err := cmd.validate(); err != nil {
		return ReturnResult{}, err
	}

	var result ReturnResult

	err := e.execute(ctx, opReturnCopy, func(unit circulation.Unit) error {
		var execErr error
		result, execErr = e.returnInUnit(unit, cmd.LoanID, cmd.StaffID, cmd.Now)

		return execErr
	})
	if err != nil {
		return ReturnResult{}, err
	}

	return result, nil
}

func (e *Engine) returnInUnit(
	unit circulation.Unit,
	loanID circulation.LoanID,
	staffID circulation.StaffID,
	now time.Time,
) (ReturnResult, error) {

	if _, staffErr := unit.Staff(staffID); staffErr != nil {
		return ReturnResult{}, staffErr
	}

	loan, loanErr := unit.Loan(loanID)
	if loanErr != nil {
		return ReturnResult{}, loanErr
	}

	if loan.Status == circulation.LoanReturned {
		return ReturnResult{}, circulation.ErrAlreadyReturned
	}

	beforeLoan := loan
	returnDate := now
	loan.ReturnDate = &returnDate
	loan.LateFee = e.policy.LateFee(loan, now)
	loan.Status = circulation.LoanReturned

	if returnDate.Before(loan.LoanDate) {
		return ReturnResult{}, errors.Join(circulation.ErrInvalidCommand,
			errors.New("return date must not precede the loan date"))
	}

	if updateErr := unit.UpdateLoan(loan); updateErr != nil {
		return ReturnResult{}, updateErr
	}

	if auditErr := stageAudit(unit, circulation.AuditUpdate, loan.ID, beforeLoan, loan, staffID, now); auditErr != nil {
		return ReturnResult{}, auditErr
	}

	result := ReturnResult{Loan: loan}

	if loan.LateFee.IsPositive() {
		fine, fineErr := e.accrueInUnit(unit, loan.MemberID, &loan.ID, loan.LateFee, "late return", staffID, now)
		if fineErr != nil {
			return ReturnResult{}, fineErr
		}

		result.Fine = &fine
	}

	bookCopy, copyErr := unit.Copy(loan.CopyID)
	if copyErr != nil {
		return ReturnResult{}, copyErr
	}

	// A lost copy stays Lost; the return only settles the ledger.
	if bookCopy.Status == circulation.CopyLost {
		return result, nil
	}

	beforeCopy := bookCopy
	bookCopy.Status = circulation.CopyAvailable

	if updateErr := unit.UpdateCopy(bookCopy); updateErr != nil {
		return ReturnResult{}, updateErr
	}

	if auditErr := stageAudit(unit, circulation.AuditUpdate, bookCopy.ID, beforeCopy, bookCopy, staffID, now); auditErr != nil {
		return ReturnResult{}, auditErr
	}

	fulfilled, fulfillmentLoan, matchErr := e.matchOnRelease(unit, bookCopy, staffID, now)
	if matchErr != nil {
		return ReturnResult{}, matchErr
	}

	result.FulfilledReservation = fulfilled
	result.FulfillmentLoan = fulfillmentLoan

	return result, nil
}

// matchOnRelease walks the pending queue for the released copy's book in
// serving order (priority tier, then reservation date). The head whose
// member is still eligible gets the copy: the reservation flips to
// Fulfilled and a loan is issued in the same unit, so the reservation's
// first claim can never lose the copy to a concurrent checkout.
// Reservations of expired members are cancelled in passing; members who are
// merely over a limit are skipped and stay Pending.
func (e *Engine) matchOnRelease(
	unit circulation.Unit,
	bookCopy circulation.BookCopy,
	staffID circulation.StaffID,
	now time.Time,
) (*circulation.Reservation, *circulation.Loan, error) {

	queue, queueErr := unit.PendingReservationsByBook(bookCopy.BookID)
	if queueErr != nil {
		return nil, nil, queueErr
	}

	for _, reservation := range queue {
		member, memberErr := unit.Member(reservation.MemberID)
		if memberErr != nil {
			return nil, nil, memberErr
		}

		if !member.IsActiveAt(now) {
			beforeReservation := reservation
			reservation.Status = circulation.ReservationCancelled

			if updateErr := unit.UpdateReservation(reservation); updateErr != nil {
				return nil, nil, updateErr
			}

			auditErr := stageAudit(
				unit, circulation.AuditUpdate, reservation.ID, beforeReservation, reservation, staffID, now)
			if auditErr != nil {
				return nil, nil, auditErr
			}

			continue
		}

		fulfillmentLoan, checkoutErr := e.checkoutInUnit(unit, bookCopy.ID, reservation.MemberID, staffID, now)
		if errors.Is(checkoutErr, circulation.ErrIneligible) {
			continue // stays pending, next in line gets a chance
		}

		if checkoutErr != nil {
			return nil, nil, checkoutErr
		}

		beforeReservation := reservation
		reservation.Status = circulation.ReservationFulfilled

		if updateErr := unit.UpdateReservation(reservation); updateErr != nil {
			return nil, nil, updateErr
		}

		auditErr := stageAudit(
			unit, circulation.AuditUpdate, reservation.ID, beforeReservation, reservation, staffID, now)
		if auditErr != nil {
			return nil, nil, auditErr
		}

		return &reservation, &fulfillmentLoan, nil
	}

	return nil, nil, nil
}
