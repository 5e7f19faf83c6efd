package circulation

import (
	"time"
)

// ActiveLoanFilter narrows the active-loans view. Zero-valued fields do not
// filter; OverdueOnly keeps only loans past their due date.
type ActiveLoanFilter struct {
	BranchID    BranchID
	MemberID    MemberID
	BookID      BookID
	OverdueOnly bool
}

// ActiveLoanRow is one row of the active-loans view: the open loan joined
// with its member, book and branch, plus the derived days-overdue count.
type ActiveLoanRow struct {
	LoanID      LoanID
	CopyID      CopyID
	MemberID    MemberID
	MemberName  string
	BookID      BookID
	BookTitle   string
	ISBN        string
	BranchID    BranchID
	BranchName  string
	LoanDate    time.Time
	DueDate     time.Time
	Status      LoanStatus
	DaysOverdue int
}

// AvailableCopyFilter narrows the available-copies view. Zero-valued fields
// do not filter.
type AvailableCopyFilter struct {
	BranchID BranchID
	BookID   BookID
	AuthorID AuthorID
}

// AvailableCopyRow is one row of the available-copies view: a loanable copy
// joined with its book, authors and branch.
type AvailableCopyRow struct {
	CopyID        CopyID
	BookID        BookID
	BookTitle     string
	ISBN          string
	Authors       []string
	BranchID      BranchID
	BranchName    string
	ShelfLocation string
	Condition     CopyCondition
}
