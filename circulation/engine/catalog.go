package engine

import (
	"context"
	"errors"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// Catalog and membership registration. These operations carry no lending
// rules beyond referential existence and uniqueness, but they share the
// atomic-unit and audit machinery so that every mutation in the system
// leaves a trail.

// RegisterBranchCommand carries a new branch. ActorStaffID may be zero
// during bootstrap, before any staff exists.
type RegisterBranchCommand struct {
	Branch       circulation.Branch
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// RegisterBranch adds a branch to the catalog.
func (e *Engine) RegisterBranch(ctx context.Context, cmd RegisterBranchCommand) (circulation.Branch, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Branch{}, err
	}

	branch := cmd.Branch

	err := e.execute(ctx, opRegisterBranch, func(unit circulation.Unit) error {
		branch = cmd.Branch

		if validateErr := branch.Validate(); validateErr != nil {
			return validateErr
		}

		branchID, insertErr := unit.InsertBranch(branch)
		if insertErr != nil {
			return insertErr
		}
		branch.ID = branchID

		return stageAudit(unit, circulation.AuditInsert, branchID, nil, branch, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Branch{}, err
	}

	return branch, nil
}

// RegisterStaffCommand carries a new staff member. ActorStaffID may be zero
// during bootstrap.
type RegisterStaffCommand struct {
	Staff        circulation.Staff
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// RegisterStaff adds a staff member to a branch.
func (e *Engine) RegisterStaff(ctx context.Context, cmd RegisterStaffCommand) (circulation.Staff, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Staff{}, err
	}

	staff := cmd.Staff

	err := e.execute(ctx, opRegisterStaff, func(unit circulation.Unit) error {
		staff = cmd.Staff

		if validateErr := staff.Validate(); validateErr != nil {
			return validateErr
		}

		if _, branchErr := unit.Branch(staff.BranchID); branchErr != nil {
			return branchErr
		}

		staffID, insertErr := unit.InsertStaff(staff)
		if insertErr != nil {
			return insertErr
		}
		staff.ID = staffID

		return stageAudit(unit, circulation.AuditInsert, staffID, nil, staff, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Staff{}, err
	}

	return staff, nil
}

// RegisterMemberCommand carries a new member registration.
type RegisterMemberCommand struct {
	Member       circulation.Member
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// RegisterMember adds a member; the email must be unique.
func (e *Engine) RegisterMember(ctx context.Context, cmd RegisterMemberCommand) (circulation.Member, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Member{}, err
	}

	member := cmd.Member

	err := e.execute(ctx, opRegisterMember, func(unit circulation.Unit) error {
		member = cmd.Member

		if validateErr := member.Validate(); validateErr != nil {
			return validateErr
		}

		taken, takenErr := unit.MemberEmailTaken(member.Email)
		if takenErr != nil {
			return takenErr
		}

		if taken {
			return circulation.ErrDuplicateEmail
		}

		memberID, insertErr := unit.InsertMember(member)
		if insertErr != nil {
			return insertErr
		}
		member.ID = memberID

		return stageAudit(unit, circulation.AuditInsert, memberID, nil, member, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Member{}, err
	}

	return member, nil
}

// RegisterAuthorCommand carries a new author.
type RegisterAuthorCommand struct {
	Author       circulation.Author
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// RegisterAuthor adds an author to the catalog.
func (e *Engine) RegisterAuthor(ctx context.Context, cmd RegisterAuthorCommand) (circulation.Author, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Author{}, err
	}

	author := cmd.Author

	err := e.execute(ctx, opRegisterAuthor, func(unit circulation.Unit) error {
		author = cmd.Author

		if validateErr := author.Validate(); validateErr != nil {
			return validateErr
		}

		authorID, insertErr := unit.InsertAuthor(author)
		if insertErr != nil {
			return insertErr
		}
		author.ID = authorID

		return stageAudit(unit, circulation.AuditInsert, authorID, nil, author, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Author{}, err
	}

	return author, nil
}

// RegisterPublisherCommand carries a new publisher.
type RegisterPublisherCommand struct {
	Publisher    circulation.Publisher
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// RegisterPublisher adds a publisher; name and email must be unique.
func (e *Engine) RegisterPublisher(ctx context.Context, cmd RegisterPublisherCommand) (circulation.Publisher, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Publisher{}, err
	}

	publisher := cmd.Publisher

	err := e.execute(ctx, opRegisterPublisher, func(unit circulation.Unit) error {
		publisher = cmd.Publisher

		if validateErr := publisher.Validate(); validateErr != nil {
			return validateErr
		}

		taken, takenErr := unit.PublisherTaken(publisher.Name, publisher.Email)
		if takenErr != nil {
			return takenErr
		}

		if taken {
			return circulation.ErrDuplicatePublisher
		}

		publisherID, insertErr := unit.InsertPublisher(publisher)
		if insertErr != nil {
			return insertErr
		}
		publisher.ID = publisherID

		return stageAudit(unit, circulation.AuditInsert, publisherID, nil, publisher, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Publisher{}, err
	}

	return publisher, nil
}

// AddBookCommand carries a new catalog title.
type AddBookCommand struct {
	Book         circulation.Book
	ActorStaffID circulation.StaffID
	Now          time.Time
}

// AddBook adds a title to the catalog; the ISBN must be unique and the
// referenced publisher and authors must exist.
func (e *Engine) AddBook(ctx context.Context, cmd AddBookCommand) (circulation.Book, error) {
	if err := requireTime(cmd.Now); err != nil {
		return circulation.Book{}, err
	}

	book := cmd.Book

	err := e.execute(ctx, opAddBook, func(unit circulation.Unit) error {
		book = cmd.Book

		if validateErr := book.Validate(); validateErr != nil {
			return validateErr
		}

		taken, takenErr := unit.ISBNTaken(book.ISBN)
		if takenErr != nil {
			return takenErr
		}

		if taken {
			return circulation.ErrDuplicateISBN
		}

		if _, publisherErr := unit.Publisher(book.PublisherID); publisherErr != nil {
			return publisherErr
		}

		for _, authorID := range book.AuthorIDs {
			if _, authorErr := unit.Author(authorID); authorErr != nil {
				return authorErr
			}
		}

		bookID, insertErr := unit.InsertBook(book)
		if insertErr != nil {
			return insertErr
		}
		book.ID = bookID

		return stageAudit(unit, circulation.AuditInsert, bookID, nil, book, cmd.ActorStaffID, cmd.Now)
	})
	if err != nil {
		return circulation.Book{}, err
	}

	return book, nil
}

// AddCopyCommand carries new physical inventory for a title.
type AddCopyCommand struct {
	BookID        circulation.BookID
	BranchID      circulation.BranchID
	ShelfLocation string
	Condition     circulation.CopyCondition
	ActorStaffID  circulation.StaffID
	Now           time.Time
}

// AddCopy adds a physical copy of a book at a branch. The copy starts
// Available; when a staff member acts, matching runs so that a waiting
// reservation claims it immediately. ActorStaffID may be zero during
// bootstrap seeding - a fulfillment loan needs an issuing staff member, so
// matching waits for the next release event instead.
func (e *Engine) AddCopy(ctx context.Context, cmd AddCopyCommand) (circulation.BookCopy, error) {
	if err := requireIDs(cmd.BookID, cmd.BranchID); err != nil {
		return circulation.BookCopy{}, err
	}

	if err := requireTime(cmd.Now); err != nil {
		return circulation.BookCopy{}, err
	}

	var bookCopy circulation.BookCopy

	err := e.execute(ctx, opAddCopy, func(unit circulation.Unit) error {
		if _, bookErr := unit.Book(cmd.BookID); bookErr != nil {
			return bookErr
		}

		if _, branchErr := unit.Branch(cmd.BranchID); branchErr != nil {
			return branchErr
		}

		bookCopy = circulation.BookCopy{
			BookID:        cmd.BookID,
			BranchID:      cmd.BranchID,
			ShelfLocation: cmd.ShelfLocation,
			Status:        circulation.CopyAvailable,
			Condition:     cmd.Condition,
			AcquiredAt:    cmd.Now,
		}

		if validateErr := bookCopy.Validate(); validateErr != nil {
			return validateErr
		}

		copyID, insertErr := unit.InsertCopy(bookCopy)
		if insertErr != nil {
			return insertErr
		}
		bookCopy.ID = copyID

		if auditErr := stageAudit(unit, circulation.AuditInsert, copyID, nil, bookCopy, cmd.ActorStaffID, cmd.Now); auditErr != nil {
			return auditErr
		}

		if cmd.ActorStaffID != 0 {
			if _, _, matchErr := e.matchOnRelease(unit, bookCopy, cmd.ActorStaffID, cmd.Now); matchErr != nil {
				return matchErr
			}
		}

		return nil
	})
	if err != nil {
		return circulation.BookCopy{}, err
	}

	return bookCopy, nil
}

// MaintenanceCommand carries a copy maintenance transition.
type MaintenanceCommand struct {
	CopyID  circulation.CopyID
	StaffID circulation.StaffID
	Now     time.Time
}

// MarkUnderMaintenance takes an Available copy off the shelf for repair.
func (e *Engine) MarkUnderMaintenance(ctx context.Context, cmd MaintenanceCommand) (circulation.BookCopy, error) {
	return e.transitionCopy(ctx, opMarkUnderMaintenance, cmd,
		circulation.CopyAvailable, circulation.CopyUnderMaintenance, circulation.ErrCopyNotOnShelf, false)
}

// ReturnToShelf puts a repaired copy back in circulation; matching runs so
// that a waiting reservation claims it immediately.
func (e *Engine) ReturnToShelf(ctx context.Context, cmd MaintenanceCommand) (circulation.BookCopy, error) {
	return e.transitionCopy(ctx, opReturnToShelf, cmd,
		circulation.CopyUnderMaintenance, circulation.CopyAvailable, circulation.ErrCopyNotInMaintenance, true)
}

func (e *Engine) transitionCopy(
	ctx context.Context,
	operation string,
	cmd MaintenanceCommand,
	from circulation.CopyStatus,
	to circulation.CopyStatus,
	wrongStateErr error,
	rematch bool,
) (circulation.BookCopy, error) {

	if err := requireIDs(cmd.CopyID, cmd.StaffID); err != nil {
		return circulation.BookCopy{}, err
	}

	if err := requireTime(cmd.Now); err != nil {
		return circulation.BookCopy{}, err
	}

	var bookCopy circulation.BookCopy

	err := e.execute(ctx, operation, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		var copyErr error
		bookCopy, copyErr = unit.Copy(cmd.CopyID)
		if copyErr != nil {
			return copyErr
		}

		if bookCopy.Status != from {
			return wrongStateErr
		}

		beforeCopy := bookCopy
		bookCopy.Status = to

		if updateErr := unit.UpdateCopy(bookCopy); updateErr != nil {
			return updateErr
		}

		auditErr := stageAudit(unit, circulation.AuditUpdate, bookCopy.ID, beforeCopy, bookCopy, cmd.StaffID, cmd.Now)
		if auditErr != nil {
			return auditErr
		}

		if rematch {
			if _, _, matchErr := e.matchOnRelease(unit, bookCopy, cmd.StaffID, cmd.Now); matchErr != nil {
				return matchErr
			}
		}

		return nil
	})
	if err != nil {
		return circulation.BookCopy{}, err
	}

	return bookCopy, nil
}

// SetCopyConditionCommand carries a condition regrade for a copy.
type SetCopyConditionCommand struct {
	CopyID    circulation.CopyID
	Condition circulation.CopyCondition
	StaffID   circulation.StaffID
	Now       time.Time
}

// SetCopyCondition regrades the physical condition of a copy.
func (e *Engine) SetCopyCondition(ctx context.Context, cmd SetCopyConditionCommand) (circulation.BookCopy, error) {
	if err := requireIDs(cmd.CopyID, cmd.StaffID); err != nil {
		return circulation.BookCopy{}, err
	}

	if err := requireTime(cmd.Now); err != nil {
		return circulation.BookCopy{}, err
	}

	if !cmd.Condition.IsValid() {
		return circulation.BookCopy{}, errors.Join(circulation.ErrInvalidCommand, errors.New("unknown copy condition"))
	}

	var bookCopy circulation.BookCopy

	err := e.execute(ctx, opSetCopyCondition, func(unit circulation.Unit) error {
		if _, staffErr := unit.Staff(cmd.StaffID); staffErr != nil {
			return staffErr
		}

		var copyErr error
		bookCopy, copyErr = unit.Copy(cmd.CopyID)
		if copyErr != nil {
			return copyErr
		}

		beforeCopy := bookCopy
		bookCopy.Condition = cmd.Condition

		if updateErr := unit.UpdateCopy(bookCopy); updateErr != nil {
			return updateErr
		}

		return stageAudit(unit, circulation.AuditUpdate, bookCopy.ID, beforeCopy, bookCopy, cmd.StaffID, cmd.Now)
	})
	if err != nil {
		return circulation.BookCopy{}, err
	}

	return bookCopy, nil
}
