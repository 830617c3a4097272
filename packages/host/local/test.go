package local

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/abdul-hamid-achik/flakespec/packages/core/engine"
	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// Test is a registered test function. Suite and Name together form the
// engine's identity key, so pairs must be unique per runner.
type Test struct {
	Suite string
	Name  string
	Fn    func(t *T)
}

func (t Test) key() string {
	return t.Suite + "::" + t.Name
}

// haltInstance is the sentinel T panics with to stop a test body after a
// failure, recovered by the runner. Same mechanism as testing.T.FailNow,
// without hijacking the goroutine.
var haltInstance = new(int)

// T is the handle passed to test bodies. It reports failures into the
// engine and declares flaky regions against the instance's tracker.
type T struct {
	inst       *instance
	tracker    *flaky.Tracker
	rc         *engine.RunContext
	suppressed bool
}

// Name returns the test's human-readable name.
func (t *T) Name() string {
	return t.inst.Identity().String()
}

// Retry returns which attempt this is: zero for the original run.
func (t *T) Retry() int {
	return t.inst.Retry()
}

// Flaky runs fn inside a flaky region under the given policy. An error from
// fn is raised as a failure while the region is still active, so the engine
// can suppress it and schedule a retry. The region is cleared before Flaky
// returns no matter how fn exits.
func (t *T) Flaky(p flaky.Policy, fn func() error) {
	_ = t.tracker.Run(p, func() error {
		if err := fn(); err != nil {
			t.raise(err.Error())
		}
		return nil
	})
}

// Fatal raises a failure and halts the test body.
func (t *T) Fatal(args ...any) {
	t.raise(fmt.Sprint(args...))
}

// Fatalf raises a formatted failure and halts the test body.
func (t *T) Fatalf(format string, args ...any) {
	t.raise(fmt.Sprintf(format, args...))
}

// raise reports the failure to the engine and halts the body. When the
// failure lands inside an active flaky region with retry budget left, the
// engine suppresses it and this attempt stays out of the failure count.
func (t *T) raise(msg string) {
	t.raiseNoHalt(msg)
	panic(haltInstance)
}

func (t *T) raiseNoHalt(msg string) {
	if t.rc.OnFailureRaised(t.inst, host.Failure{Message: msg, Location: callerLocation()}) {
		t.suppressed = true
	}
}

// callerLocation walks past T and tracker internals to the test body frame.
func callerLocation() host.Location {
	for skip := 2; skip < 10; skip++ {
		pc, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		if !isFrameworkFrame(fn.Name()) {
			return host.Location{File: file, Line: line}
		}
	}
	return host.Location{}
}

func isFrameworkFrame(name string) bool {
	return strings.Contains(name, "flakespec/packages/host/local.") ||
		strings.Contains(name, "flakespec/packages/core/flaky.")
}
