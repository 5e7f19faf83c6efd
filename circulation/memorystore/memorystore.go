package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// row is one committed record with the sequence number of the commit that
// last wrote it.
type row[T any] struct {
	value   T
	version int64
}

// table holds the committed records of one entity kind. seq advances with
// every commit that touches the table, which is what scan validation keys
// on.
type table[T any] struct {
	rows map[int64]row[T]
	seq  int64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]row[T])}
}

// Store is the in-memory circulation.Store implementation.
type Store struct {
	mu        sync.Mutex
	commitSeq int64
	nextIDs   map[circulation.AuditTable]int64

	branches     *table[circulation.Branch]
	staff        *table[circulation.Staff]
	members      *table[circulation.Member]
	authors      *table[circulation.Author]
	publishers   *table[circulation.Publisher]
	books        *table[circulation.Book]
	copies       *table[circulation.BookCopy]
	loans        *table[circulation.Loan]
	reservations *table[circulation.Reservation]
	fines        *table[circulation.Fine]

	auditLog []circulation.AuditEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		nextIDs:      make(map[circulation.AuditTable]int64),
		branches:     newTable[circulation.Branch](),
		staff:        newTable[circulation.Staff](),
		members:      newTable[circulation.Member](),
		authors:      newTable[circulation.Author](),
		publishers:   newTable[circulation.Publisher](),
		books:        newTable[circulation.Book](),
		copies:       newTable[circulation.BookCopy](),
		loans:        newTable[circulation.Loan](),
		reservations: newTable[circulation.Reservation](),
		fines:        newTable[circulation.Fine](),
	}
}

// BeginUnit implements circulation.Store.
func (s *Store) BeginUnit(ctx context.Context) (circulation.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return newUnit(s), nil
}

// allocID hands out the next surrogate identifier for a table. Identifiers
// burned by rolled-back units are never reused, like database sequences.
func (s *Store) allocID(name circulation.AuditTable) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextIDs[name]++

	return s.nextIDs[name]
}

// AuditLog returns a copy of the committed audit trail in commit order.
func (s *Store) AuditLog() []circulation.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]circulation.AuditEntry, len(s.auditLog))
	copy(out, s.auditLog)

	return out
}

// ActiveLoans implements circulation.Store.
func (s *Store) ActiveLoans(
	ctx context.Context,
	now time.Time,
	filter circulation.ActiveLoanFilter,
) ([]circulation.ActiveLoanRow, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]circulation.ActiveLoanRow, 0)

	for _, loanRow := range s.loans.rows {
		loan := loanRow.value
		if !loan.Status.IsOpen() {
			continue
		}

		derived := loan.DeriveStatus(now)
		if filter.OverdueOnly && derived != circulation.LoanOverdue {
			continue
		}

		if filter.MemberID != 0 && loan.MemberID != filter.MemberID {
			continue
		}

		bookCopy, hasCopy := s.copies.rows[loan.CopyID]
		if !hasCopy {
			continue
		}

		if filter.BranchID != 0 && bookCopy.value.BranchID != filter.BranchID {
			continue
		}

		if filter.BookID != 0 && bookCopy.value.BookID != filter.BookID {
			continue
		}

		member := s.members.rows[loan.MemberID].value
		book := s.books.rows[bookCopy.value.BookID].value
		branch := s.branches.rows[bookCopy.value.BranchID].value

		rows = append(rows, circulation.ActiveLoanRow{
			LoanID:      loan.ID,
			CopyID:      loan.CopyID,
			MemberID:    loan.MemberID,
			MemberName:  member.Name,
			BookID:      book.ID,
			BookTitle:   book.Title,
			ISBN:        book.ISBN,
			BranchID:    branch.ID,
			BranchName:  branch.Name,
			LoanDate:    loan.LoanDate,
			DueDate:     loan.DueDate,
			Status:      derived,
			DaysOverdue: loan.DaysLate(now),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		return rows[i].LoanID < rows[j].LoanID
	})

	return rows, nil
}

// AvailableCopies implements circulation.Store.
func (s *Store) AvailableCopies(
	ctx context.Context,
	filter circulation.AvailableCopyFilter,
) ([]circulation.AvailableCopyRow, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]circulation.AvailableCopyRow, 0)

	for _, copyRow := range s.copies.rows {
		bookCopy := copyRow.value
		if bookCopy.Status != circulation.CopyAvailable {
			continue
		}

		if filter.BranchID != 0 && bookCopy.BranchID != filter.BranchID {
			continue
		}

		if filter.BookID != 0 && bookCopy.BookID != filter.BookID {
			continue
		}

		book := s.books.rows[bookCopy.BookID].value

		if filter.AuthorID != 0 && !bookHasAuthor(book, filter.AuthorID) {
			continue
		}

		branch := s.branches.rows[bookCopy.BranchID].value

		authors := make([]string, 0, len(book.AuthorIDs))
		for _, authorID := range book.AuthorIDs {
			authors = append(authors, s.authors.rows[authorID].value.Name)
		}

		rows = append(rows, circulation.AvailableCopyRow{
			CopyID:        bookCopy.ID,
			BookID:        book.ID,
			BookTitle:     book.Title,
			ISBN:          book.ISBN,
			Authors:       authors,
			BranchID:      branch.ID,
			BranchName:    branch.Name,
			ShelfLocation: bookCopy.ShelfLocation,
			Condition:     bookCopy.Condition,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CopyID < rows[j].CopyID
	})

	return rows, nil
}

func bookHasAuthor(book circulation.Book, authorID circulation.AuthorID) bool {
	for _, id := range book.AuthorIDs {
		if id == authorID {
			return true
		}
	}

	return false
}
