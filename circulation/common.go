package circulation

// Surrogate identifier types for the persisted entities. All identifiers
// are allocated by the Store on insert; zero is never a valid identifier.
type (
	BranchID      = int64
	StaffID       = int64
	MemberID      = int64
	AuthorID      = int64
	PublisherID   = int64
	BookID        = int64
	CopyID        = int64
	LoanID        = int64
	ReservationID = int64
	FineID        = int64
)

// MembershipType determines the loan period a member is granted.
type MembershipType string

const (
	MembershipStudent MembershipType = "Student"
	MembershipFaculty MembershipType = "Faculty"
	MembershipPublic  MembershipType = "Public"
)

// IsValid reports whether mt is one of the known membership types.
func (mt MembershipType) IsValid() bool {
	switch mt {
	case MembershipStudent, MembershipFaculty, MembershipPublic:
		return true
	default:
		return false
	}
}

// StaffRole distinguishes administrative staff from librarians.
type StaffRole string

const (
	RoleLibrarian StaffRole = "Librarian"
	RoleAdmin     StaffRole = "Admin"
)

// IsValid reports whether r is one of the known staff roles.
func (r StaffRole) IsValid() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

// CopyStatus is the single source of truth for whether a copy may be loaned.
// A copy is CheckedOut if and only if exactly one Active loan references it;
// the engine is the only writer of this field.
type CopyStatus string

const (
	CopyAvailable        CopyStatus = "Available"
	CopyCheckedOut       CopyStatus = "CheckedOut"
	CopyUnderMaintenance CopyStatus = "UnderMaintenance"
	CopyLost             CopyStatus = "Lost"
)

// IsValid reports whether s is one of the known copy statuses.
func (s CopyStatus) IsValid() bool {
	switch s {
	case CopyAvailable, CopyCheckedOut, CopyUnderMaintenance, CopyLost:
		return true
	default:
		return false
	}
}

// CopyCondition grades the physical state of a copy.
type CopyCondition string

const (
	ConditionNew  CopyCondition = "New"
	ConditionGood CopyCondition = "Good"
	ConditionFair CopyCondition = "Fair"
	ConditionPoor CopyCondition = "Poor"
)

// IsValid reports whether c is one of the known copy conditions.
func (c CopyCondition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	default:
		return false
	}
}

// LoanStatus is the stored lifecycle state of a loan. Overdue is primarily
// a derived state (see Loan.DeriveStatus); the stored status only flips to
// Overdue via the periodic sweep.
type LoanStatus string

const (
	LoanActive   LoanStatus = "Active"
	LoanReturned LoanStatus = "Returned"
	LoanOverdue  LoanStatus = "Overdue"
)

// IsValid reports whether s is one of the known loan statuses.
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanActive, LoanReturned, LoanOverdue:
		return true
	default:
		return false
	}
}

// IsOpen reports whether a loan with this status still holds its copy.
func (s LoanStatus) IsOpen() bool {
	return s == LoanActive || s == LoanOverdue
}

// ReservationStatus is the lifecycle state of a reservation. Fulfilled and
// Cancelled are terminal.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "Pending"
	ReservationFulfilled ReservationStatus = "Fulfilled"
	ReservationCancelled ReservationStatus = "Cancelled"
)

// IsValid reports whether s is one of the known reservation statuses.
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationPending, ReservationFulfilled, ReservationCancelled:
		return true
	default:
		return false
	}
}

// FineStatus is derived from the paid/total ratio; Paid is terminal.
type FineStatus string

const (
	FinePending       FineStatus = "Pending"
	FinePartiallyPaid FineStatus = "PartiallyPaid"
	FinePaid          FineStatus = "Paid"
)

// IsValid reports whether s is one of the known fine statuses.
func (s FineStatus) IsValid() bool {
	switch s {
	case FinePending, FinePartiallyPaid, FinePaid:
		return true
	default:
		return false
	}
}
