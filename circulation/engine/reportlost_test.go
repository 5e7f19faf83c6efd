package engine_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/engine"
	"github.com/openshelf/circulation-go/testutil/helper"
)

func Test_ReportLost_ClosesTheLoanAndChargesReplacement(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	lostAt := now.AddDate(0, 0, 2)

	// act
	result, err := eng.ReportLost(ctx, engine.BuildReportLostCommand(library.Copy.ID, library.Staff.ID, lostAt))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyLost, result.Copy.Status)

	if assert.NotNil(t, result.ClosedLoan) {
		assert.Equal(t, loan.ID, result.ClosedLoan.ID)
		assert.Equal(t, circulation.LoanReturned, result.ClosedLoan.Status)
		if assert.NotNil(t, result.ClosedLoan.ReturnDate) {
			assert.True(t, result.ClosedLoan.ReturnDate.Equal(lostAt))
		}
	}

	if assert.NotNil(t, result.ReplacementFine) {
		assert.True(t, result.ReplacementFine.Amount.Equal(decimal.RequireFromString("25.00")))
		assert.Equal(t, member.ID, result.ReplacementFine.MemberID)
		assert.Equal(t, circulation.FinePending, result.ReplacementFine.Status)
	}
}

func Test_ReportLost_OfAShelvedCopy_JustMarksItLost(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	result, err := eng.ReportLost(ctx, engine.BuildReportLostCommand(library.Copy.ID, library.Staff.ID, now))

	// assert: no loan to close, nobody to charge
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyLost, result.Copy.Status)
	assert.Nil(t, result.ClosedLoan)
	assert.Nil(t, result.ReplacementFine)

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available)
}

func Test_ReportLost_FailsWhenTheCopyIsAlreadyLost(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	_, err := eng.ReportLost(ctx, engine.BuildReportLostCommand(library.Copy.ID, library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.ReportLost(ctx, engine.BuildReportLostCommand(library.Copy.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyAlreadyLost)
	assert.ErrorIs(t, err, circulation.ErrInvalidState)
}

func Test_ReportLost_FailsForUnknownCopies(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	_, err := eng.ReportLost(ctx, engine.BuildReportLostCommand(9999, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotFound)
}
