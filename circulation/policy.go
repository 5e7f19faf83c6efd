package circulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Policy bundles the configurable business parameters of the engine: loan
// periods per membership type, the per-diem late fee rate, the replacement
// cost charged for lost copies, and the outstanding-balance threshold above
// which a member becomes ineligible for checkouts and reservations.
type Policy struct {
	LoanPeriodDays      map[MembershipType]int
	PerDiemRate         decimal.Decimal
	ReplacementCost     decimal.Decimal
	MaxBalance          decimal.Decimal
	DefaultPriorityTier int
}

// DefaultPolicy returns the stock lending policy: 14 days for students,
// 30 for faculty, 21 for the public, 0.50 per late day, 25.00 replacement
// cost, and a 10.00 outstanding-balance ceiling.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: map[MembershipType]int{
			MembershipStudent: 14,
			MembershipFaculty: 30,
			MembershipPublic:  21,
		},
		PerDiemRate:         decimal.RequireFromString("0.50"),
		ReplacementCost:     decimal.RequireFromString("25.00"),
		MaxBalance:          decimal.RequireFromString("10.00"),
		DefaultPriorityTier: 0,
	}
}

// Validate checks that the policy is internally consistent.
func (p Policy) Validate() error {
	for _, mt := range []MembershipType{MembershipStudent, MembershipFaculty, MembershipPublic} {
		days, ok := p.LoanPeriodDays[mt]
		if !ok {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("no loan period configured for %s members", mt))
		}

		if days <= 0 {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("loan period for %s members must be positive", mt))
		}
	}

	if p.PerDiemRate.IsNegative() {
		return errors.Join(ErrInvalidPolicy, errors.New("per-diem rate must not be negative"))
	}

	if p.ReplacementCost.IsNegative() {
		return errors.Join(ErrInvalidPolicy, errors.New("replacement cost must not be negative"))
	}

	if p.MaxBalance.IsNegative() {
		return errors.Join(ErrInvalidPolicy, errors.New("balance threshold must not be negative"))
	}

	if p.DefaultPriorityTier < 0 {
		return errors.Join(ErrInvalidPolicy, errors.New("default priority tier must not be negative"))
	}

	return nil
}

// DueDate computes the due date for a loan issued at the given instant to
// a member of the given type.
func (p Policy) DueDate(membership MembershipType, loanDate time.Time) (time.Time, error) {
	days, ok := p.LoanPeriodDays[membership]
	if !ok {
		return time.Time{}, errors.Join(ErrInvalidPolicy, fmt.Errorf("no loan period configured for %s members", membership))
	}

	return loanDate.AddDate(0, 0, days), nil
}

// LateFee computes the fee owed for a loan at the given instant:
// max(0, daysLate) * perDiemRate.
func (p Policy) LateFee(loan Loan, now time.Time) decimal.Decimal {
	daysLate := loan.DaysLate(now)
	if daysLate == 0 {
		return decimal.Zero
	}

	return p.PerDiemRate.Mul(decimal.NewFromInt(int64(daysLate)))
}
