// Package circulation provides the core types and contracts for a
// multi-branch library circulation engine: catalog entities, the loan /
// reservation / fine state machines, the lending policy, the audit trail,
// and the Store contract that persistence engines implement.
//
// The package itself is pure - it performs no I/O. All lifecycle rules that
// can be expressed as pure functions live here (derived loan status, late
// fee computation, fine status derivation, reservation ordering), so that
// engine implementations and tests share a single source of truth.
//
// Key types:
//   - Loan, Reservation, Fine: the mutable-lifecycle entities
//   - BookCopy: physical inventory whose status mirrors loan existence
//   - Policy: loan periods, late fee rate, eligibility thresholds
//   - AuditEntry: immutable before/after record of every mutation
//   - Store, Unit: the atomic-unit persistence contract
//
// Common usage pattern:
//
//	store := memorystore.New()
//	eng, err := engine.New(store)
//	if err != nil {
//		// handle error
//	}
//
//	loan, err := eng.Checkout(ctx, engine.BuildCheckoutCommand(copyID, memberID, staffID, time.Now()))
//	switch {
//	case errors.Is(err, circulation.ErrConflict):
//		// lost a race, retry with fresh reads
//	case errors.Is(err, circulation.ErrIneligible):
//		// surface to the user
//	}
package circulation
