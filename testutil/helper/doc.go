// Package helper provides test fixtures and observability test doubles for
// the circulation engine and stores.
//
// The Given* functions arrange catalog and membership state through the
// engine itself, so every fixture goes through the same validation, audit
// and uniqueness paths as production writes. The spies capture logging,
// metrics and tracing calls for asserting observability instrumentation.
package helper
