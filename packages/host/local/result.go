package local

import (
	"time"

	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// InstanceResult is the outcome of one attempt of one test instance.
type InstanceResult struct {
	Identity   host.Identity
	Retry      int
	Passed     bool
	Suppressed bool
	Failure    *host.Failure
	Duration   time.Duration
}

// Result aggregates a whole run, original suite plus every retry suite.
// Suppressed attempts are excluded from Failed: a suppressed failure is an
// intentionally green attempt, with the retry report as its audit trail.
type Result struct {
	Suites     int
	Passed     int
	Failed     int
	Suppressed int
	Attempts   []InstanceResult
	Duration   time.Duration
}

// OK reports whether the run passed: no unsuppressed failures.
func (r *Result) OK() bool {
	return r.Failed == 0
}
