// Package engine implements the consistency engine that composes the
// catalog store, loan ledger, reservation queue, fine ledger and audit
// recorder into atomic operations.
//
// Every mutating operation runs as one atomic unit against the configured
// circulation.Store: all reads are validated against concurrent
// modification at commit time, all writes (including the audit entries
// describing them) commit together or not at all. Units that lose an
// optimistic commit race are retried internally with exponential backoff
// and fresh reads, so concurrent callers observe deterministic business
// errors (ErrCopyUnavailable, ErrAlreadyReturned, ErrDuplicatePending)
// instead of torn state.
//
// Operations take an explicit `now` so that callers - and tests - control
// the clock.
package engine
