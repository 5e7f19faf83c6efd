package helper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/circulation-go/circulation"
	"github.com/openshelf/circulation-go/circulation/engine"
)

const arrangeErrMsg = "error in arranging test data"

// GivenTime returns a fixed, timezone-stable instant for deterministic
// tests.
func GivenTime() time.Time {
	return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

// GivenUniqueEmail generates a unique email address for testing.
func GivenUniqueEmail(t testing.TB, prefix string) string {
	id, err := uuid.NewV7()
	assert.NoError(t, err, arrangeErrMsg)

	return prefix + "-" + id.String() + "@example.com"
}

// GivenBranch registers a branch.
func GivenBranch(t testing.TB, ctx context.Context, eng *engine.Engine, now time.Time) circulation.Branch {
	branch, err := eng.RegisterBranch(ctx, engine.RegisterBranchCommand{
		Branch: circulation.Branch{
			Name:    "Central Library",
			Address: "1 Main Street",
			Phone:   "555-0100",
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return branch
}

// GivenStaff registers a librarian at the given branch.
func GivenStaff(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	branchID circulation.BranchID,
	now time.Time,
) circulation.Staff {

	staff, err := eng.RegisterStaff(ctx, engine.RegisterStaffCommand{
		Staff: circulation.Staff{
			BranchID: branchID,
			Name:     "Sam Librarian",
			Email:    GivenUniqueEmail(t, "staff"),
			Role:     circulation.RoleLibrarian,
			HiredAt:  now.AddDate(-1, 0, 0),
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return staff
}

// GivenMember registers an active member with a one-year membership window
// around `now` and room for five concurrent loans.
func GivenMember(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	membership circulation.MembershipType,
	now time.Time,
) circulation.Member {

	return GivenMemberWithLimit(t, ctx, eng, membership, 5, now)
}

// GivenMemberWithLimit registers an active member with an explicit loan
// limit.
func GivenMemberWithLimit(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	membership circulation.MembershipType,
	maxBooks int,
	now time.Time,
) circulation.Member {

	member, err := eng.RegisterMember(ctx, engine.RegisterMemberCommand{
		Member: circulation.Member{
			Name:            "Riley Reader",
			Email:           GivenUniqueEmail(t, "member"),
			Membership:      membership,
			JoinedAt:        now.AddDate(0, -1, 0),
			ExpiresAt:       now.AddDate(1, 0, 0),
			MaxBooksAllowed: maxBooks,
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return member
}

// GivenExpiringMember registers a member whose membership ends at the given
// instant.
func GivenExpiringMember(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	expiresAt time.Time,
	now time.Time,
) circulation.Member {

	member, err := eng.RegisterMember(ctx, engine.RegisterMemberCommand{
		Member: circulation.Member{
			Name:            "Early Leaver",
			Email:           GivenUniqueEmail(t, "member"),
			Membership:      circulation.MembershipPublic,
			JoinedAt:        now.AddDate(0, -1, 0),
			ExpiresAt:       expiresAt,
			MaxBooksAllowed: 5,
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return member
}

// GivenAuthor registers an author.
func GivenAuthor(t testing.TB, ctx context.Context, eng *engine.Engine, now time.Time) circulation.Author {
	author, err := eng.RegisterAuthor(ctx, engine.RegisterAuthorCommand{
		Author: circulation.Author{Name: "A. Writer", BirthYear: 1970},
		Now:    now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return author
}

// GivenPublisher registers a publisher with a unique name and email.
func GivenPublisher(t testing.TB, ctx context.Context, eng *engine.Engine, now time.Time) circulation.Publisher {
	id, err := uuid.NewV7()
	assert.NoError(t, err, arrangeErrMsg)

	publisher, err := eng.RegisterPublisher(ctx, engine.RegisterPublisherCommand{
		Publisher: circulation.Publisher{
			Name:  "Press " + id.String(),
			Email: GivenUniqueEmail(t, "publisher"),
			Phone: "555-0200",
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return publisher
}

// GivenBook catalogs a book with a unique ISBN.
func GivenBook(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	publisherID circulation.PublisherID,
	authorIDs []circulation.AuthorID,
	now time.Time,
) circulation.Book {

	id, err := uuid.NewV7()
	assert.NoError(t, err, arrangeErrMsg)

	book, err := eng.AddBook(ctx, engine.AddBookCommand{
		Book: circulation.Book{
			ISBN:            "isbn-" + id.String(),
			Title:           "The Test of Time",
			PublisherID:     publisherID,
			AuthorIDs:       authorIDs,
			PublicationYear: 2020,
			Edition:         "1st",
		},
		Now: now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return book
}

// GivenCopy adds an available copy of a book at a branch.
func GivenCopy(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	bookID circulation.BookID,
	branchID circulation.BranchID,
	staffID circulation.StaffID,
	now time.Time,
) circulation.BookCopy {

	bookCopy, err := eng.AddCopy(ctx, engine.AddCopyCommand{
		BookID:        bookID,
		BranchID:      branchID,
		ShelfLocation: "A-1",
		Condition:     circulation.ConditionGood,
		ActorStaffID:  staffID,
		Now:           now,
	})
	assert.NoError(t, err, arrangeErrMsg)

	return bookCopy
}

// Library bundles the fixtures most circulation tests need: one branch
// with one staff member, and one cataloged book with a single available
// copy.
type Library struct {
	Branch    circulation.Branch
	Staff     circulation.Staff
	Publisher circulation.Publisher
	Author    circulation.Author
	Book      circulation.Book
	Copy      circulation.BookCopy
}

// GivenLibrary arranges a complete minimal library.
func GivenLibrary(t testing.TB, ctx context.Context, eng *engine.Engine, now time.Time) Library {
	branch := GivenBranch(t, ctx, eng, now)
	staff := GivenStaff(t, ctx, eng, branch.ID, now)
	publisher := GivenPublisher(t, ctx, eng, now)
	author := GivenAuthor(t, ctx, eng, now)
	book := GivenBook(t, ctx, eng, publisher.ID, []circulation.AuthorID{author.ID}, now)
	bookCopy := GivenCopy(t, ctx, eng, book.ID, branch.ID, staff.ID, now)

	return Library{
		Branch:    branch,
		Staff:     staff,
		Publisher: publisher,
		Author:    author,
		Book:      book,
		Copy:      bookCopy,
	}
}

// GivenCheckout issues a loan for the given copy and member.
func GivenCheckout(
	t testing.TB,
	ctx context.Context,
	eng *engine.Engine,
	copyID circulation.CopyID,
	memberID circulation.MemberID,
	staffID circulation.StaffID,
	now time.Time,
) circulation.Loan {

	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(copyID, memberID, staffID, now))
	assert.NoError(t, err, arrangeErrMsg)

	return loan
}
