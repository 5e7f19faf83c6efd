package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/engine"
	"github.com/openshelf/circulation-go/testutil/helper"
)

func Test_RegisterMember_RejectsDuplicateEmails(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)

	duplicate := member
	duplicate.ID = 0
	duplicate.Name = "Someone Else"

	// act
	_, err := eng.RegisterMember(ctx, engine.RegisterMemberCommand{Member: duplicate, Now: now})

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicateEmail)
}

func Test_RegisterMember_RejectsInvalidEntities(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)

	// act: missing name and email
	_, err := eng.RegisterMember(ctx, engine.RegisterMemberCommand{
		Member: circulation.Member{Membership: circulation.MembershipPublic},
		Now:    now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrInvalidEntity)
	assert.ErrorIs(t, err, circulation.ErrValidation)
}

func Test_RegisterStaff_RequiresAnExistingBranch(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)

	// act
	_, err := eng.RegisterStaff(ctx, engine.RegisterStaffCommand{
		Staff: circulation.Staff{
			BranchID: 9999,
			Name:     "Nowhere Norma",
			Email:    helper.GivenUniqueEmail(t, "staff"),
			Role:     circulation.RoleLibrarian,
			HiredAt:  now,
		},
		Now: now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrBranchNotFound)
}

func Test_RegisterPublisher_RejectsDuplicateNames(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	publisher := helper.GivenPublisher(t, ctx, eng, now)

	// act: same name in a different case, different email
	_, err := eng.RegisterPublisher(ctx, engine.RegisterPublisherCommand{
		Publisher: circulation.Publisher{
			Name:  strings.ToUpper(publisher.Name),
			Email: helper.GivenUniqueEmail(t, "publisher"),
		},
		Now: now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicatePublisher)
}

func Test_AddBook_RejectsDuplicateISBNs(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	duplicate := library.Book
	duplicate.ID = 0
	duplicate.Title = "Same Book, New Cover"

	// act
	_, err := eng.AddBook(ctx, engine.AddBookCommand{Book: duplicate, ActorStaffID: library.Staff.ID, Now: now})

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicateISBN)
}

func Test_AddBook_RequiresExistingPublisherAndAuthors(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	orphan := circulation.Book{
		ISBN:            "isbn-orphan-1",
		Title:           "Ghost Writer",
		PublisherID:     library.Publisher.ID,
		AuthorIDs:       []circulation.AuthorID{9999},
		PublicationYear: 2021,
	}

	// act
	_, err := eng.AddBook(ctx, engine.AddBookCommand{Book: orphan, ActorStaffID: library.Staff.ID, Now: now})

	// assert
	assert.ErrorIs(t, err, circulation.ErrAuthorNotFound)
}

func Test_AddCopy_StartsAvailableOnTheShelf(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	bookCopy, err := eng.AddCopy(ctx, engine.AddCopyCommand{
		BookID:        library.Book.ID,
		BranchID:      library.Branch.ID,
		ShelfLocation: "B-7",
		Condition:     circulation.ConditionNew,
		ActorStaffID:  library.Staff.ID,
		Now:           now,
	})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyAvailable, bookCopy.Status)

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Len(t, available, 2)
}

func Test_AddCopy_GoesStraightToAWaitingReservation(t *testing.T) {
	// setup: the only copy is checked out and a member is waiting
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	waiting := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, waiting.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.AddCopy(ctx, engine.AddCopyCommand{
		BookID:        library.Book.ID,
		BranchID:      library.Branch.ID,
		ShelfLocation: "B-2",
		Condition:     circulation.ConditionGood,
		ActorStaffID:  library.Staff.ID,
		Now:           now,
	})

	// assert: the new copy never hits the shelf
	assert.NoError(t, err)

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available)

	unit, err := store.BeginUnit(ctx)
	assert.NoError(t, err)
	fulfilled, err := unit.Reservation(reservation.ID)
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationFulfilled, fulfilled.Status)
	assert.NoError(t, unit.Rollback())
}

func Test_AddCopy_DuringBootstrap_LeavesAWaitingReservationPending(t *testing.T) {
	// setup: the only copy is checked out and a member is waiting
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	holder := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, holder.ID, library.Staff.ID, now)

	waiting := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, waiting.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act: seeded without an acting staff member
	bookCopy, err := eng.AddCopy(ctx, engine.AddCopyCommand{
		BookID:        library.Book.ID,
		BranchID:      library.Branch.ID,
		ShelfLocation: "B-2",
		Condition:     circulation.ConditionGood,
		Now:           now,
	})

	// assert: a fulfillment loan needs an issuing staff member, so the copy
	// goes on the shelf and the hold waits for the next release event
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyAvailable, bookCopy.Status)

	unit, err := store.BeginUnit(ctx)
	assert.NoError(t, err)
	pending, err := unit.Reservation(reservation.ID)
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationPending, pending.Status)
	assert.NoError(t, unit.Rollback())

	// the next staffed release hands it over
	result, err := eng.ReturnCopy(ctx, engine.BuildReturnCommand(
		helper.GivenCheckout(t, ctx, eng, bookCopy.ID, holder.ID, library.Staff.ID, now).ID,
		library.Staff.ID, now))
	assert.NoError(t, err)
	assert.NotNil(t, result.FulfilledReservation)
}

func Test_MarkUnderMaintenance_TakesAnAvailableCopyOffTheShelf(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	bookCopy, err := eng.MarkUnderMaintenance(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now,
	})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyUnderMaintenance, bookCopy.Status)

	available, err := eng.AvailableCopies(ctx, circulation.AvailableCopyFilter{BookID: library.Book.ID})
	assert.NoError(t, err)
	assert.Empty(t, available)
}

func Test_MarkUnderMaintenance_RejectsCheckedOutCopies(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)
	member := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	helper.GivenCheckout(t, ctx, eng, library.Copy.ID, member.ID, library.Staff.ID, now)

	// act
	_, err := eng.MarkUnderMaintenance(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotOnShelf)
}

func Test_ReturnToShelf_PutsARepairedCopyBackInCirculation(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	_, err := eng.MarkUnderMaintenance(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now,
	})
	assert.NoError(t, err, "error in arranging test data")

	// act
	bookCopy, err := eng.ReturnToShelf(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now.AddDate(0, 0, 1),
	})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.CopyAvailable, bookCopy.Status)
}

func Test_ReturnToShelf_RejectsCopiesNotUnderMaintenance(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	_, err := eng.ReturnToShelf(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrCopyNotInMaintenance)
}

func Test_ReturnToShelf_HandsTheCopyToAWaitingReservation(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, store := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	_, err := eng.MarkUnderMaintenance(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now,
	})
	assert.NoError(t, err, "error in arranging test data")

	waiting := helper.GivenMember(t, ctx, eng, circulation.MembershipStudent, now)
	reservation, err := eng.Reserve(ctx, engine.BuildReserveCommand(library.Book.ID, waiting.ID, now))
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = eng.ReturnToShelf(ctx, engine.MaintenanceCommand{
		CopyID:  library.Copy.ID,
		StaffID: library.Staff.ID,
		Now:     now.AddDate(0, 0, 1),
	})

	// assert
	assert.NoError(t, err)

	unit, err := store.BeginUnit(ctx)
	assert.NoError(t, err)
	fulfilled, err := unit.Reservation(reservation.ID)
	assert.NoError(t, err)
	assert.Equal(t, circulation.ReservationFulfilled, fulfilled.Status)
	assert.NoError(t, unit.Rollback())
}

func Test_SetCopyCondition_RegradesTheCopy(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	bookCopy, err := eng.SetCopyCondition(ctx, engine.SetCopyConditionCommand{
		CopyID:    library.Copy.ID,
		Condition: circulation.ConditionPoor,
		StaffID:   library.Staff.ID,
		Now:       now,
	})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, circulation.ConditionPoor, bookCopy.Condition)
	assert.Equal(t, circulation.CopyAvailable, bookCopy.Status, "a regrade does not change availability")
}

func Test_SetCopyCondition_RejectsUnknownConditions(t *testing.T) {
	// setup
	ctx := context.Background()
	now := helper.GivenTime()
	eng, _ := newEngine(t)
	library := helper.GivenLibrary(t, ctx, eng, now)

	// act
	_, err := eng.SetCopyCondition(ctx, engine.SetCopyConditionCommand{
		CopyID:    library.Copy.ID,
		Condition: circulation.CopyCondition("Shredded"),
		StaffID:   library.Staff.ID,
		Now:       now,
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrInvalidCommand)
}
