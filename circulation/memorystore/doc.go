// Package memorystore provides an in-memory circulation.Store with
// optimistic, versioned atomic units.
//
// Every committed record carries a version; every table carries a sequence
// that advances whenever the table changes. A unit snapshots the versions
// of everything it reads (and the sequences of every table it scans) and
// re-validates them at commit time under one lock, so two units racing for
// the same record serialize cleanly: the loser fails with
// circulation.ErrUnitConflict and can retry with fresh reads.
//
// The store is safe for concurrent use and is the reference implementation
// the engine's behavior is tested against.
package memorystore
