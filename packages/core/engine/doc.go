// Package engine wires the retry machinery together for one test run: a
// RunContext holds the ledger, classifier, scheduler, and report emitter,
// and exposes the three hooks a host test framework must call.
//
// One deliberately confusing behavior to know about: when a failure inside a
// flaky region is suppressed, that attempt's run looks green even though a
// failure was recorded. Letting the failure count would fail the run before
// the retry gets a chance, which defeats the point. The retry report is the
// audit trail for these invisible failures.
package engine
