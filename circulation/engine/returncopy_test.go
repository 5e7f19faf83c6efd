package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/engine"
	"github.com/openshelf/circulation-go/testutil/helper"
)

func Test_ReturnCopy_OnTime_ClosesTheLoanWithoutAFine(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	returnedAt := loan.DueDate

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, returnedAt))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.LoanReturned, result.Loan.Status)
	if assert.NotNil(t, result.Loan.ReturnDate) {
		assert.True(t, result.Loan.ReturnDate.Equal(returnedAt))
	}
	assert.True(t, result.Loan.LateFee.IsZero())
	assert.Nil(t, result.Fine, "an on-time return owes nothing")

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Len(t, available, 1, "the copy went back on the shelf")
}

func Test_ReturnCopy_Late_ChargesThePerDiemFine(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	threeDaysLate := loan.DueDate.AddDate(0, 0, 3)

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, threeDaysLate))

	// assert: 3 days at 0.50 per day
	assert.NoError(t, err)
	assert.True(t, result.Loan.LateFee.Equal(decimal.RequireFromString("1.50")))

	if assert.NotNil(t, result.Fine) {
		assert.True(t, result.Fine.Amount.Equal(decimal.RequireFromString("1.50")))
		assert.Equal(t, circulation.FinePending, result.Fine.Status)
		assert.Equal(t, member.ID, result.Fine.MemberID)
		if assert.NotNil(t, result.Fine.LoanID) {
			assert.Equal(t, loan.ID, *result.Fine.LoanID)
		}
	}
}

func Test_ReturnCopy_APartialDayCountsAsAFullLateDay(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	// act: one hour past the due date
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, loan.DueDate.Add(time.Hour)))

	// assert
	assert.NoError(t, err)
	assert.True(t, result.Loan.LateFee.Equal(decimal.RequireFromString("0.50")))
}

func Test_ReturnCopy_FailsWhenTheLoanIsAlreadyClosed(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	_, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrAlreadyReturned)
	assert.ErrorIs(t, err, circulation.ErrInvalidState)
}

func Test_ReturnCopy_OfALostCopy_SettlesTheLedgerButKeepsTheCopyLost(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	// the holder loses the copy, a second member queues for the book
	// the holder loses the copy while the loan is still open
	lostAt := now.AddDate(0, 0, 1)
	lost, err := eng.ReportLost(ctx, engine.BuildReportLostCommand(library.Copy.ID, library.Staff.ID, lostAt))
	assert.NoError(t, err, "error in arranging test data")
	assert.NotNil(t, lost.ClosedLoan)

	// act: a later return of the already-closed loan is rejected
	_, err = eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, lostAt.AddDate(0, 0, 1)))

	// assert
	assert.ErrorIs(t, err, circulation.ErrAlreadyReturned)

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available, "a lost copy never returns to the shelf")
}

func Test_ReturnCopy_HandsTheFreedCopyToTheWaitingReservation(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	waiting := helper.GivenMember(t, ctx, eng, circulation.MembershipFaculty, now)
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, waiting.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now.AddDate(0, 0, 1)))

	// assert: fulfillment happens in the same atomic unit as the return
	assert.NoError(t, err)
	if assert.NotNil(t, result.FulfilledReservation) {
		assert.Equal(t, reservation.ID, result.FulfilledReservation.ID)
		assert.Equal(t, circulation.ReservationFulfilled, result.FulfilledReservation.Status)
	}
	if assert.NotNil(t, result.FulfillmentLoan) {
		assert.Equal(t, waiting.ID, result.FulfillmentLoan.MemberID)
		assert.Equal(t, library.Copy.ID, result.FulfillmentLoan.CopyID)
	}

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available, "the copy went straight to the reservation holder")
}

func Test_ReturnCopy_ServesLowerPriorityTiersFirst(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	// tier 1 reserves first, tier 0 reserves a day later
	slower := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	_, err := eng.Reserve(ctx, engine.BuildReserveCommandWithPriority(library.Book.ID, slower.ID, 1, now))
	assert.NoError(t, err, "error in arranging test data")

	urgent := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	urgentReservation, err := eng.Reserve(ctx,
		engine.BuildReserveCommandWithPriority(library.Book.ID, urgent.ID, 0, now.AddDate(0, 0, 1)))
	assert.NoError(t, err, "error in arranging test data")

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now.AddDate(0, 0, 2)))

	// assert: a lower tier beats an earlier reservation date
	assert.NoError(t, err)
	if assert.NotNil(t, result.FulfilledReservation) {
		assert.Equal(t, urgentReservation.ID, result.FulfilledReservation.ID)
	}
}

func Test_ReturnCopy_ServesEqualTiersInReservationOrder(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	first := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	firstReservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, first.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	second := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	_, err = eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, second.ID, now.Add(time.Hour)))
	assert.NoError(t, err, "error in arranging test data")

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now.AddDate(0, 0, 1)))

	// assert
	assert.NoError(t, err)
	if assert.NotNil(t, result.FulfilledReservation) {
		assert.Equal(t, firstReservation.ID, result.FulfilledReservation.ID)
	}
}

func Test_ReturnCopy_SkipsIneligibleMembersWhoStayPending(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	// head of the queue carries too high a balance
	indebted := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	blockedReservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, indebted.ID, now))
	assert.NoError(t, err, "error in arranging test data")
	_, err = eng.AccrueFine(ctx, engine.BuildAccrueFineCommand(
		indebted.ID, nil, decimal.RequireFromString("15.00"), "water damage", library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	solvent := helper.GivenMember(t, ctx, eng, circulation.MembershipPublic, now)
	servedReservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, solvent.ID, now.Add(time.Hour)))
	assert.NoError(t, err, "error in arranging test data")

	// act
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now.AddDate(0, 0, 1)))

	// assert: the blocked member keeps their place in the queue
	assert.NoError(t, err)
	if assert.NotNil(t, result.FulfilledReservation) {
		assert.Equal(t, servedReservation.ID, result.FulfilledReservation.ID)
	}

	unit, err := store.BeginUnit(ctx)
	assert.NoError(t, err)
	skipped, err := unit.Reservation(blockedReservation.ID)
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationPending, skipped.Status, "the skipped reservation stays pending")
	assert.NoError(t, unit.Rollback())
}

func Test_ReturnCopy_CancelsReservationsOfExpiredMembersInPassing(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	doomed := helper.GivenExpiringMember(t, ctx, eng, now.AddDate(0, 0, 3), now)
	doomedReservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, doomed.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act: the membership has lapsed by the time the copy comes back
	returnedAt := now.AddDate(0, 0, 10)
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, returnedAt))

	// assert
	assert.NoError(t, err)
	assert.Nil(t, result.FulfilledReservation)

	cancelled := false
	for _, entry := range store.AuditLog() {
		if entry.Table == circulation.AuditTableReservations &&
			entry.RecordID == doomedReservation.ID &&
			entry.Action == circulation.AuditUpdate {
			cancelled = true
		}
	}
	assert.True(t, cancelled, "the lapsed reservation was cancelled in passing")

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Len(t, available, 1, "nobody eligible was waiting, the copy goes back on the shelf")
}

func Test_ReturnCopy_FailsForUnknownLoans(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	_, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(9999, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
}
