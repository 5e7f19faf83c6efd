package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/engine"
	"github.com/openshelf/circulation-go/testutil/helper"
)

func Test_Reserve_PlacesAPendingHold(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	// act
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotZero(t, reservation.ID)
	assert.Equal(t, circulation.ReservationPending, reservation.Status)
	assert.Equal(t, 0, reservation.Priority, "the default tier applies when none is given")
	assert.True(t, reservation.ReservationDate.Equal(now))
}

func Test_Reserve_AcceptsAnExplicitPriorityTier(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	// act
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommandWithPriority(library.Book.ID, member.ID, 2, now))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 2, reservation.Priority)
}

func Test_Reserve_RejectsASecondPendingHoldForTheSamePair(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	_, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicatePending)
	assert.ErrorIs(t, err, circulation.ErrConflict)
}

func Test_Reserve_AllowsANewHoldAfterCancellation(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	first, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	_, err = eng.CancelReservation(ctx, engine.BuildCancelReservationCommand(first.ID, library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act: only pending holds count towards the one-per-pair rule
	second, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))

	// assert
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func Test_Reserve_FailsForIneligibleMembers(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	expired := helper.GivenExpiringMember(t, ctx, eng, now.AddDate(0, 0, -1), now)

	// act
	_, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, expired.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrMembershipInactive)
}

func Test_Reserve_IgnoresTheLoanLimit(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMemberWithLimit(t, ctx, eng, circulation.MembershipStudent, 1, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	otherPublisher := helper.GivenPublisher(t, ctx, eng, now)
	otherBook := helper.GivenBook(t, ctx, eng, otherPublisher.ID, []circulation.AuthorID{library.Author.ID}, now)

	// act: at the limit, but holds are still allowed
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(otherBook.ID, member.ID, now))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationPending, reservation.Status)
}

func Test_Reserve_FailsForUnknownBooks(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	// act
	_, err := eng.Reserve(ctx, engine.BuildReserveCommand(9999, member.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_CancelReservation_CancelsAPendingHold(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))
	assert.NoError(t, err, "error in arranging test data")
	auditedBefore := len(store.AuditLog())

	// act
	cancelled, err := eng.CancelReservation(ctx,
		engine.BuildCancelReservationCommand(reservation.ID, library.Staff.ID, now))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationCancelled, cancelled.Status)

	trail := store.AuditLog()[auditedBefore:]
	if assert.Len(t, trail, 1) {
		assert.Equal(t, circulation.AuditTableReservations, trail[0].Table)
		assert.Equal(t, circulation.AuditUpdate, trail[0].Action)
		assert.Equal(t, library.Staff.ID, trail[0].ActorStaff)
	}
}

func Test_CancelReservation_RejectsTerminalReservations(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, member.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	_, err = eng.CancelReservation(ctx, engine.BuildCancelReservationCommand(reservation.ID, library.Staff.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act: cancelling twice fails, the state is terminal
	_, err = eng.CancelReservation(ctx, engine.BuildCancelReservationCommand(reservation.ID, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrReservationNotPending)
	assert.ErrorIs(t, err, circulation.ErrInvalidState)
}

func Test_CancelReservation_FailsForUnknownReservations(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	_, err := eng.CancelReservation(ctx, engine.BuildCancelReservationCommand(9999, library.Staff.ID, now))

	// assert
	assert.ErrorIs(t, err, circulation.ErrReservationNotFound)
}
