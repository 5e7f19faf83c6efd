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

func Test_Checkout_IssuesALoanAndFlipsTheCopy(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	auditedBefore := len(store.AuditLog())

	// act
	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, member.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotZero(t, loan.ID)
	assert.Equal(t, circulation.LoanActive, loan.Status)
	assert.True(t, loan.DueDate.Equal(now.AddDate(0, 0, 14)), "students get a 14 day loan period")

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available, "the checked-out copy left the shelf")

	trail := store.AuditLog()[auditedBefore:]
	assert.Len(t, trail, 2, "the loan insert and the copy flip are audited together")
	assert.Equal(t, circulation.AuditTableLoans, trail[0].Table)
	assert.Equal(t, circulation.AuditInsert, trail[0].Action)
	assert.Equal(t, circulation.AuditTableCopies, trail[1].Table)
	assert.Equal(t, circulation.AuditUpdate, trail[1].Action)
}

func Test_Checkout_UsesTheMembershipLoanPeriod(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	faculty := helper.GivenMember(t, ctx, eng, circulation.MembershipFaculty, now)

	// act
	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, faculty.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.True(t, loan.DueDate.Equal(now.AddDate(0, 0, 30)), "faculty get a 30 day loan period")
}

func Test_Checkout_FailsWhenTheCopyIsNotOnTheShelf(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	latecomer := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	// act
	_, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, latecomer.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyUnavailable)
	assert.ErrorIs(t, err, circulation.ErrConflict)
}

func Test_Checkout_FailsForInactiveMembers(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	expired := helper.GivenExpiringMember(t, ctx, eng, now.AddDate(0, 0, -1), now)

	// act
	_, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, expired.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrMembershipInactive)
	assert.ErrorIs(t, err, circulation.ErrIneligible)
}

func Test_Checkout_AllowsALoanOnTheLastDayOfMembership(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	expiring := helper.GivenExpiringMember(t, ctx, eng, now, now)

	// act: the expiry instant itself is still inside the window
	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, expiring.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotZero(t, loan.ID)
}

func Test_Checkout_EnforcesTheLoanLimit(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMemberWithLimit(t, ctx, eng, circulation.MembershipStudent, 1, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	secondCopy := helper.GivenCopy(t, ctx, eng, library.Book.ID, library.Branch.ID, library.Staff.ID, now)

	// act
	_, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(secondCopy.ID, member.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanLimitReached)
}

func Test_Checkout_CountsOnlyOpenLoansAgainstTheLimit(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMemberWithLimit(t, ctx, eng, circulation.MembershipStudent, 1, now)
	loan := helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	_, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(loan.ID, library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act: the returned loan freed the slot (and the copy)
	reissued, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, member.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotZero(t, reissued.ID)
}

func Test_Checkout_FailsWhenTheBalanceIsTooHigh(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	_, err := eng.AccrueFine(ctx, engine.BuildAccrueFineCommand(
		member.ID, nil, decimal.RequireFromString("10.01"), "damaged atlas", library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, member.ID, library.Staff.ID, now))

	// assert: the ceiling is 10.00, strictly above it blocks
	assert.ErrorIs(t, err, circulation.ErrBalanceTooHigh)
}

func Test_Checkout_AllowsABalanceExactlyAtTheCeiling(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	_, err := eng.AccrueFine(ctx, engine.BuildAccrueFineCommand(
		member.ID, nil, decimal.RequireFromString("10.00"), "damaged atlas", library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, member.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotZero(t, loan.ID)
}

func Test_Checkout_RejectsMalformedCommands(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)

	// act + assert
	_, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(0, 1, 1, now))
	assert.ErrorIs(t, err, circulation.ErrInvalidCommand)

	_, err = eng.Checkout(ctx, engine.BuildCheckoutCommand(1, 1, 1, time.Time{}))
	assert.ErrorIs(t, err, circulation.ErrInvalidCommand)
}

func Test_Checkout_FailsForUnknownStaff(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	// act
	_, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(library.Copy.ID, member.ID, 9999, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrStaffNotFound)
}
