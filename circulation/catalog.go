package circulation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Branch is a physical library location that holds copies and employs staff.
type Branch struct {
	ID      BranchID
	Name    string
	Address string
	Phone   string
}

// Validate checks the invariants that the engine enforces on insert.
func (b Branch) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("branch name must not be empty"))
	}

	return nil
}

// AuditTable implements AuditImage.
func (b Branch) AuditTable() AuditTable { return AuditTableBranches }

// Staff is a library employee; loans and audit entries reference the acting
// staff member.
type Staff struct {
	ID       StaffID
	BranchID BranchID
	Name     string
	Email    string
	Role     StaffRole
	HiredAt  time.Time
}

// Validate checks the invariants that the engine enforces on insert.
func (s Staff) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("staff name must not be empty"))
	}

	if !s.Role.IsValid() {
		return errors.Join(ErrInvalidEntity, fmt.Errorf("unknown staff role %q", s.Role))
	}

	if s.BranchID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("staff must belong to a branch"))
	}

	return nil
}

// AuditTable implements AuditImage.
func (s Staff) AuditTable() AuditTable { return AuditTableStaff }

// Author is a catalog entity referenced by books.
type Author struct {
	ID        AuthorID
	Name      string
	BirthYear int
}

// Validate checks the invariants that the engine enforces on insert.
func (a Author) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("author name must not be empty"))
	}

	return nil
}

// AuditTable implements AuditImage.
func (a Author) AuditTable() AuditTable { return AuditTableAuthors }

// Publisher is a catalog entity referenced by books. Name and email are
// unique across publishers.
type Publisher struct {
	ID    PublisherID
	Name  string
	Email string
	Phone string
}

// Validate checks the invariants that the engine enforces on insert.
func (p Publisher) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("publisher name must not be empty"))
	}

	if strings.TrimSpace(p.Email) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("publisher email must not be empty"))
	}

	return nil
}

// AuditTable implements AuditImage.
func (p Publisher) AuditTable() AuditTable { return AuditTablePublishers }

// Book is the catalog identity of a title; physical inventory is tracked
// per copy. ISBN is unique across the catalog.
type Book struct {
	ID              BookID
	ISBN            string
	Title           string
	PublisherID     PublisherID
	AuthorIDs       []AuthorID
	PublicationYear int
	Edition         string
}

// Validate checks the invariants that the engine enforces on insert.
func (b Book) Validate() error {
	if strings.TrimSpace(b.ISBN) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("ISBN must not be empty"))
	}

	if strings.TrimSpace(b.Title) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("book title must not be empty"))
	}

	if b.PublisherID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("book must reference a publisher"))
	}

	if len(b.AuthorIDs) == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("book must reference at least one author"))
	}

	return nil
}

// AuditTable implements AuditImage.
func (b Book) AuditTable() AuditTable { return AuditTableBooks }

// BookCopy is one physical instance of a Book held at a Branch. Its status
// is derived from the loan ledger and must never be written by callers.
type BookCopy struct {
	ID            CopyID
	BookID        BookID
	BranchID      BranchID
	ShelfLocation string
	Status        CopyStatus
	Condition     CopyCondition
	AcquiredAt    time.Time
}

// Validate checks the invariants that the engine enforces on insert.
func (c BookCopy) Validate() error {
	if c.BookID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("copy must reference a book"))
	}

	if c.BranchID == 0 {
		return errors.Join(ErrInvalidEntity, errors.New("copy must reference a branch"))
	}

	if !c.Status.IsValid() {
		return errors.Join(ErrInvalidEntity, fmt.Errorf("unknown copy status %q", c.Status))
	}

	if !c.Condition.IsValid() {
		return errors.Join(ErrInvalidEntity, fmt.Errorf("unknown copy condition %q", c.Condition))
	}

	return nil
}

// AuditTable implements AuditImage.
func (c BookCopy) AuditTable() AuditTable { return AuditTableCopies }
