package memorystore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/circulation-go/circulation"
)

// cachedRow is the first-read snapshot of one record: the value and version
// observed, or present=false (version zero) for a miss. Commit validation
// compares these against the committed state.
type cachedRow[T any] struct {
	value   T
	version int64
	present bool
}

// overlay is the unit-local state for one table: the read snapshot plus the
// staged writes and deletes that commit as one.
type overlay[T any] struct {
	cache   map[int64]cachedRow[T]
	writes  map[int64]T
	deletes map[int64]struct{}
}

func newOverlay[T any]() *overlay[T] {
	return &overlay[T]{
		cache:   make(map[int64]cachedRow[T]),
		writes:  make(map[int64]T),
		deletes: make(map[int64]struct{}),
	}
}

func (o *overlay[T]) dirty() bool {
	return len(o.writes) > 0 || len(o.deletes) > 0
}

type unit struct {
	store    *Store
	finished bool

	// scans records, per table, the sequence observed by the first scan;
	// any later commit touching that table invalidates the unit.
	scans map[circulation.AuditTable]int64

	branches     *overlay[circulation.Branch]
	staff        *overlay[circulation.Staff]
	members      *overlay[circulation.Member]
	authors      *overlay[circulation.Author]
	publishers   *overlay[circulation.Publisher]
	books        *overlay[circulation.Book]
	copies       *overlay[circulation.BookCopy]
	loans        *overlay[circulation.Loan]
	reservations *overlay[circulation.Reservation]
	fines        *overlay[circulation.Fine]

	auditEntries []circulation.AuditEntry
}

func newUnit(s *Store) *unit {
	return &unit{
		store:        s,
		scans:        make(map[circulation.AuditTable]int64),
		branches:     newOverlay[circulation.Branch](),
		staff:        newOverlay[circulation.Staff](),
		members:      newOverlay[circulation.Member](),
		authors:      newOverlay[circulation.Author](),
		publishers:   newOverlay[circulation.Publisher](),
		books:        newOverlay[circulation.Book](),
		copies:       newOverlay[circulation.BookCopy](),
		loans:        newOverlay[circulation.Loan](),
		reservations: newOverlay[circulation.Reservation](),
		fines:        newOverlay[circulation.Fine](),
	}
}

// readRow resolves one record as the unit sees it: staged writes win, then
// the first-read snapshot, then the committed state (which gets snapshotted
// for commit validation).
func readRow[T any](u *unit, t *table[T], o *overlay[T], id int64) (T, bool) {
	if value, ok := o.writes[id]; ok {
		return value, true
	}

	if _, ok := o.deletes[id]; ok {
		var zero T
		return zero, false
	}

	if cached, ok := o.cache[id]; ok {
		return cached.value, cached.present
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	committed, ok := t.rows[id]
	o.cache[id] = cachedRow[T]{value: committed.value, version: committed.version, present: ok}

	return committed.value, ok
}

// scanRows returns the whole table as the unit sees it and pins the table
// sequence for commit validation.
func scanRows[T any](u *unit, name circulation.AuditTable, t *table[T], o *overlay[T]) []T {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if _, ok := u.scans[name]; !ok {
		u.scans[name] = t.seq
	}

	out := make([]T, 0, len(t.rows)+len(o.writes))

	for id, committed := range t.rows {
		if _, deleted := o.deletes[id]; deleted {
			continue
		}

		if staged, ok := o.writes[id]; ok {
			out = append(out, staged)
			continue
		}

		out = append(out, committed.value)
	}

	for id, staged := range o.writes {
		if _, ok := t.rows[id]; !ok {
			out = append(out, staged)
		}
	}

	return out
}

// mergedRows is scanRows without snapshotting; the caller holds the store
// lock (commit-time uniqueness verification).
func mergedRows[T any](t *table[T], o *overlay[T]) []T {
	out := make([]T, 0, len(t.rows)+len(o.writes))

	for id, committed := range t.rows {
		if _, deleted := o.deletes[id]; deleted {
			continue
		}

		if staged, ok := o.writes[id]; ok {
			out = append(out, staged)
			continue
		}

		out = append(out, committed.value)
	}

	for id, staged := range o.writes {
		if _, ok := t.rows[id]; !ok {
			out = append(out, staged)
		}
	}

	return out
}

// validateReads reports whether every snapshotted read still matches the
// committed state. The caller holds the store lock.
func validateReads[T any](t *table[T], o *overlay[T]) bool {
	for id, cached := range o.cache {
		committed, ok := t.rows[id]
		if ok != cached.present || committed.version != cached.version {
			return false
		}
	}

	return true
}

// applyWrites moves the staged writes into the committed state and advances
// the table sequence. The caller holds the store lock.
func applyWrites[T any](t *table[T], o *overlay[T], seq int64) {
	if !o.dirty() {
		return
	}

	for id, staged := range o.writes {
		t.rows[id] = row[T]{value: staged, version: seq}
	}

	for id := range o.deletes {
		delete(t.rows, id)
	}

	t.seq = seq
}

// stageDelete removes a record from the unit's view. A record that only
// ever existed as a staged insert just disappears; a committed record is
// marked for deletion at commit.
func stageDelete[T any](u *unit, t *table[T], o *overlay[T], id int64) {
	delete(o.writes, id)

	u.store.mu.Lock()
	_, committed := t.rows[id]
	u.store.mu.Unlock()

	if committed {
		o.deletes[id] = struct{}{}
	}
}

// Catalog and membership lookups.

func (u *unit) Branch(id circulation.BranchID) (circulation.Branch, error) {
	branch, ok := readRow(u, u.store.branches, u.branches, id)
	if !ok {
		return circulation.Branch{}, circulation.ErrBranchNotFound
	}

	return branch, nil
}

func (u *unit) Staff(id circulation.StaffID) (circulation.Staff, error) {
	staff, ok := readRow(u, u.store.staff, u.staff, id)
	if !ok {
		return circulation.Staff{}, circulation.ErrStaffNotFound
	}

	return staff, nil
}

func (u *unit) Member(id circulation.MemberID) (circulation.Member, error) {
	member, ok := readRow(u, u.store.members, u.members, id)
	if !ok {
		return circulation.Member{}, circulation.ErrMemberNotFound
	}

	return member, nil
}

func (u *unit) MemberEmailTaken(email string) (bool, error) {
	for _, member := range scanRows(u, circulation.AuditTableMembers, u.store.members, u.members) {
		if strings.EqualFold(member.Email, email) {
			return true, nil
		}
	}

	return false, nil
}

func (u *unit) Author(id circulation.AuthorID) (circulation.Author, error) {
	author, ok := readRow(u, u.store.authors, u.authors, id)
	if !ok {
		return circulation.Author{}, circulation.ErrAuthorNotFound
	}

	return author, nil
}

func (u *unit) Publisher(id circulation.PublisherID) (circulation.Publisher, error) {
	publisher, ok := readRow(u, u.store.publishers, u.publishers, id)
	if !ok {
		return circulation.Publisher{}, circulation.ErrPublisherNotFound
	}

	return publisher, nil
}

func (u *unit) PublisherTaken(name, email string) (bool, error) {
	for _, publisher := range scanRows(u, circulation.AuditTablePublishers, u.store.publishers, u.publishers) {
		if strings.EqualFold(publisher.Name, name) || strings.EqualFold(publisher.Email, email) {
			return true, nil
		}
	}

	return false, nil
}

func (u *unit) Book(id circulation.BookID) (circulation.Book, error) {
	book, ok := readRow(u, u.store.books, u.books, id)
	if !ok {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	return book, nil
}

func (u *unit) ISBNTaken(isbn string) (bool, error) {
	for _, book := range scanRows(u, circulation.AuditTableBooks, u.store.books, u.books) {
		if book.ISBN == isbn {
			return true, nil
		}
	}

	return false, nil
}

func (u *unit) Copy(id circulation.CopyID) (circulation.BookCopy, error) {
	bookCopy, ok := readRow(u, u.store.copies, u.copies, id)
	if !ok {
		return circulation.BookCopy{}, circulation.ErrCopyNotFound
	}

	return bookCopy, nil
}

// Loan ledger lookups.

func (u *unit) Loan(id circulation.LoanID) (circulation.Loan, error) {
	loan, ok := readRow(u, u.store.loans, u.loans, id)
	if !ok {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return loan, nil
}

func (u *unit) ActiveLoanByCopy(id circulation.CopyID) (circulation.Loan, bool, error) {
	for _, loan := range scanRows(u, circulation.AuditTableLoans, u.store.loans, u.loans) {
		if loan.Status.IsOpen() && loan.CopyID == id {
			return loan, true, nil
		}
	}

	return circulation.Loan{}, false, nil
}

func (u *unit) ActiveLoanCount(id circulation.MemberID) (int, error) {
	count := 0

	for _, loan := range scanRows(u, circulation.AuditTableLoans, u.store.loans, u.loans) {
		if loan.Status.IsOpen() && loan.MemberID == id {
			count++
		}
	}

	return count, nil
}

func (u *unit) OpenLoansDueBefore(cutoff time.Time) ([]circulation.Loan, error) {
	open := make([]circulation.Loan, 0)

	for _, loan := range scanRows(u, circulation.AuditTableLoans, u.store.loans, u.loans) {
		if loan.Status.IsOpen() && loan.DueDate.Before(cutoff) {
			open = append(open, loan)
		}
	}

	sort.Slice(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].ID < open[j].ID
	})

	return open, nil
}

// Reservation queue lookups.

func (u *unit) Reservation(id circulation.ReservationID) (circulation.Reservation, error) {
	reservation, ok := readRow(u, u.store.reservations, u.reservations, id)
	if !ok {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return reservation, nil
}

func (u *unit) PendingReservation(
	bookID circulation.BookID,
	memberID circulation.MemberID,
) (circulation.Reservation, bool, error) {

	for _, reservation := range scanRows(u, circulation.AuditTableReservations, u.store.reservations, u.reservations) {
		if reservation.Status == circulation.ReservationPending &&
			reservation.BookID == bookID && reservation.MemberID == memberID {
			return reservation, true, nil
		}
	}

	return circulation.Reservation{}, false, nil
}

func (u *unit) PendingReservationsByBook(bookID circulation.BookID) ([]circulation.Reservation, error) {
	pending := make([]circulation.Reservation, 0)

	for _, reservation := range scanRows(u, circulation.AuditTableReservations, u.store.reservations, u.reservations) {
		if reservation.Status == circulation.ReservationPending && reservation.BookID == bookID {
			pending = append(pending, reservation)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ServedBefore(pending[j])
	})

	return pending, nil
}

// Fine ledger lookups.

func (u *unit) Fine(id circulation.FineID) (circulation.Fine, error) {
	fine, ok := readRow(u, u.store.fines, u.fines, id)
	if !ok {
		return circulation.Fine{}, circulation.ErrFineNotFound
	}

	return fine, nil
}

func (u *unit) FinesByLoan(id circulation.LoanID) ([]circulation.Fine, error) {
	linked := make([]circulation.Fine, 0)

	for _, fine := range scanRows(u, circulation.AuditTableFines, u.store.fines, u.fines) {
		if fine.LoanID != nil && *fine.LoanID == id {
			linked = append(linked, fine)
		}
	}

	sort.Slice(linked, func(i, j int) bool {
		return linked[i].ID < linked[j].ID
	})

	return linked, nil
}

func (u *unit) OutstandingBalance(id circulation.MemberID) (decimal.Decimal, error) {
	balance := decimal.Zero

	for _, fine := range scanRows(u, circulation.AuditTableFines, u.store.fines, u.fines) {
		if fine.MemberID == id {
			balance = balance.Add(fine.Outstanding())
		}
	}

	return balance, nil
}

// Staged writes.

func (u *unit) InsertBranch(branch circulation.Branch) (circulation.BranchID, error) {
	branch.ID = u.store.allocID(circulation.AuditTableBranches)
	u.branches.writes[branch.ID] = branch

	return branch.ID, nil
}

func (u *unit) InsertStaff(staff circulation.Staff) (circulation.StaffID, error) {
	staff.ID = u.store.allocID(circulation.AuditTableStaff)
	u.staff.writes[staff.ID] = staff

	return staff.ID, nil
}

func (u *unit) InsertMember(member circulation.Member) (circulation.MemberID, error) {
	member.ID = u.store.allocID(circulation.AuditTableMembers)
	u.members.writes[member.ID] = member

	return member.ID, nil
}

func (u *unit) InsertAuthor(author circulation.Author) (circulation.AuthorID, error) {
	author.ID = u.store.allocID(circulation.AuditTableAuthors)
	u.authors.writes[author.ID] = author

	return author.ID, nil
}

func (u *unit) InsertPublisher(publisher circulation.Publisher) (circulation.PublisherID, error) {
	publisher.ID = u.store.allocID(circulation.AuditTablePublishers)
	u.publishers.writes[publisher.ID] = publisher

	return publisher.ID, nil
}

func (u *unit) InsertBook(book circulation.Book) (circulation.BookID, error) {
	book.ID = u.store.allocID(circulation.AuditTableBooks)
	u.books.writes[book.ID] = book

	return book.ID, nil
}

func (u *unit) InsertCopy(bookCopy circulation.BookCopy) (circulation.CopyID, error) {
	bookCopy.ID = u.store.allocID(circulation.AuditTableCopies)
	u.copies.writes[bookCopy.ID] = bookCopy

	return bookCopy.ID, nil
}

func (u *unit) InsertLoan(loan circulation.Loan) (circulation.LoanID, error) {
	loan.ID = u.store.allocID(circulation.AuditTableLoans)
	u.loans.writes[loan.ID] = loan

	return loan.ID, nil
}

func (u *unit) InsertReservation(reservation circulation.Reservation) (circulation.ReservationID, error) {
	reservation.ID = u.store.allocID(circulation.AuditTableReservations)
	u.reservations.writes[reservation.ID] = reservation

	return reservation.ID, nil
}

func (u *unit) InsertFine(fine circulation.Fine) (circulation.FineID, error) {
	fine.ID = u.store.allocID(circulation.AuditTableFines)
	u.fines.writes[fine.ID] = fine

	return fine.ID, nil
}

func (u *unit) UpdateCopy(bookCopy circulation.BookCopy) error {
	if _, ok := readRow(u, u.store.copies, u.copies, bookCopy.ID); !ok {
		return circulation.ErrCopyNotFound
	}

	u.copies.writes[bookCopy.ID] = bookCopy

	return nil
}

func (u *unit) UpdateLoan(loan circulation.Loan) error {
	if _, ok := readRow(u, u.store.loans, u.loans, loan.ID); !ok {
		return circulation.ErrLoanNotFound
	}

	u.loans.writes[loan.ID] = loan

	return nil
}

func (u *unit) UpdateReservation(reservation circulation.Reservation) error {
	if _, ok := readRow(u, u.store.reservations, u.reservations, reservation.ID); !ok {
		return circulation.ErrReservationNotFound
	}

	u.reservations.writes[reservation.ID] = reservation

	return nil
}

func (u *unit) UpdateFine(fine circulation.Fine) error {
	if _, ok := readRow(u, u.store.fines, u.fines, fine.ID); !ok {
		return circulation.ErrFineNotFound
	}

	u.fines.writes[fine.ID] = fine

	return nil
}

func (u *unit) DeleteLoan(id circulation.LoanID) error {
	if _, ok := readRow(u, u.store.loans, u.loans, id); !ok {
		return circulation.ErrLoanNotFound
	}

	stageDelete(u, u.store.loans, u.loans, id)

	return nil
}

func (u *unit) AppendAudit(entry circulation.AuditEntry) error {
	u.auditEntries = append(u.auditEntries, entry)

	return nil
}

// Commit implements circulation.Unit. Validation and apply happen under one
// lock: every snapshotted read must still match, every scanned table must
// be untouched, and the uniqueness constraints must hold over the merged
// state. Only then do the staged writes and audit entries become visible,
// all at once.
func (u *unit) Commit(ctx context.Context) error {
	if u.finished {
		return circulation.ErrUnitAlreadyFinished
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s := u.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if !u.readsStillValid() || !u.scansStillValid() {
		u.finished = true
		return circulation.ErrUnitConflict
	}

	if err := u.verifyUniqueness(); err != nil {
		u.finished = true
		return err
	}

	s.commitSeq++
	seq := s.commitSeq

	applyWrites(s.branches, u.branches, seq)
	applyWrites(s.staff, u.staff, seq)
	applyWrites(s.members, u.members, seq)
	applyWrites(s.authors, u.authors, seq)
	applyWrites(s.publishers, u.publishers, seq)
	applyWrites(s.books, u.books, seq)
	applyWrites(s.copies, u.copies, seq)
	applyWrites(s.loans, u.loans, seq)
	applyWrites(s.reservations, u.reservations, seq)
	applyWrites(s.fines, u.fines, seq)

	s.auditLog = append(s.auditLog, u.auditEntries...)

	u.finished = true

	return nil
}

// Rollback implements circulation.Unit; staged state is simply discarded.
func (u *unit) Rollback() error {
	if u.finished {
		return circulation.ErrUnitAlreadyFinished
	}

	u.finished = true

	return nil
}

// readsStillValid re-checks every snapshotted read. The caller holds the
// store lock.
func (u *unit) readsStillValid() bool {
	s := u.store

	return validateReads(s.branches, u.branches) &&
		validateReads(s.staff, u.staff) &&
		validateReads(s.members, u.members) &&
		validateReads(s.authors, u.authors) &&
		validateReads(s.publishers, u.publishers) &&
		validateReads(s.books, u.books) &&
		validateReads(s.copies, u.copies) &&
		validateReads(s.loans, u.loans) &&
		validateReads(s.reservations, u.reservations) &&
		validateReads(s.fines, u.fines)
}

// scansStillValid re-checks every pinned table sequence. The caller holds
// the store lock.
func (u *unit) scansStillValid() bool {
	for name, seq := range u.scans {
		if u.tableSeq(name) != seq {
			return false
		}
	}

	return true
}

func (u *unit) tableSeq(name circulation.AuditTable) int64 {
	s := u.store

	switch name {
	case circulation.AuditTableBranches:
		return s.branches.seq
	case circulation.AuditTableStaff:
		return s.staff.seq
	case circulation.AuditTableMembers:
		return s.members.seq
	case circulation.AuditTableAuthors:
		return s.authors.seq
	case circulation.AuditTablePublishers:
		return s.publishers.seq
	case circulation.AuditTableBooks:
		return s.books.seq
	case circulation.AuditTableCopies:
		return s.copies.seq
	case circulation.AuditTableLoans:
		return s.loans.seq
	case circulation.AuditTableReservations:
		return s.reservations.seq
	case circulation.AuditTableFines:
		return s.fines.seq
	default:
		return 0
	}
}

// verifyUniqueness checks the uniqueness constraints over the merged
// committed-plus-staged state, so a commit can never introduce a duplicate
// even when the unit skipped the corresponding lookup. The caller holds the
// store lock.
func (u *unit) verifyUniqueness() error {
	if u.members.dirty() {
		seen := make(map[string]struct{})
		for _, member := range mergedRows(u.store.members, u.members) {
			key := strings.ToLower(member.Email)
			if _, dup := seen[key]; dup {
				return circulation.ErrDuplicateEmail
			}
			seen[key] = struct{}{}
		}
	}

	if u.publishers.dirty() {
		seenNames := make(map[string]struct{})
		seenEmails := make(map[string]struct{})
		for _, publisher := range mergedRows(u.store.publishers, u.publishers) {
			name := strings.ToLower(publisher.Name)
			email := strings.ToLower(publisher.Email)
			if _, dup := seenNames[name]; dup {
				return circulation.ErrDuplicatePublisher
			}
			if _, dup := seenEmails[email]; dup {
				return circulation.ErrDuplicatePublisher
			}
			seenNames[name] = struct{}{}
			seenEmails[email] = struct{}{}
		}
	}

	if u.books.dirty() {
		seen := make(map[string]struct{})
		for _, book := range mergedRows(u.store.books, u.books) {
			if _, dup := seen[book.ISBN]; dup {
				return circulation.ErrDuplicateISBN
			}
			seen[book.ISBN] = struct{}{}
		}
	}

	if u.reservations.dirty() {
		type pendingKey struct {
			bookID   circulation.BookID
			memberID circulation.MemberID
		}
		seen := make(map[pendingKey]struct{})
		for _, reservation := range mergedRows(u.store.reservations, u.reservations) {
			if reservation.Status != circulation.ReservationPending {
				continue
			}
			key := pendingKey{bookID: reservation.BookID, memberID: reservation.MemberID}
			if _, dup := seen[key]; dup {
				return circulation.ErrDuplicatePending
			}
			seen[key] = struct{}{}
		}
	}

	return nil
}
