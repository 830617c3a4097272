package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/flakespec/packages/core/engine"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
	"github.com/abdul-hamid-achik/flakespec/packages/metrics"
)

const (
	// DefaultConcurrency is the default number of parallel test workers
	DefaultConcurrency = 5
)

// Config controls how the local runner executes suites.
type Config struct {
	Parallel    bool
	Concurrency int
}

// Runner executes registered tests through the retry engine: it runs the
// initial suite, hands suite boundaries to the engine, and keeps executing
// whatever retry suites come back until none do.
type Runner struct {
	config    *Config
	rc        *engine.RunContext
	collector *metrics.Collector

	mu    sync.Mutex
	tests []Test
	byKey map[string]Test
}

// NewRunner creates a runner. Engine options are passed through to the
// run context it owns.
func NewRunner(cfg *Config, opts ...engine.Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Runner{
		config: cfg,
		byKey:  make(map[string]Test),
	}
	r.rc = engine.New(&factory{runner: r}, opts...)
	return r
}

// Engine exposes the runner's run context, mainly for inspecting the
// ledger after a run.
func (r *Runner) Engine() *engine.RunContext {
	return r.rc
}

// WithMetrics attaches a collector recording every attempt's duration.
func (r *Runner) WithMetrics(c *metrics.Collector) *Runner {
	r.collector = c
	return r
}

// Register adds tests to the initial suite. Duplicate suite/name pairs are
// rejected: identity is the engine's lookup key everywhere.
func (r *Runner) Register(tests ...Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, test := range tests {
		if test.Fn == nil {
			return fmt.Errorf("local: test %s/%s has no body", test.Suite, test.Name)
		}
		key := test.key()
		if _, exists := r.byKey[key]; exists {
			return fmt.Errorf("local: duplicate test %s/%s", test.Suite, test.Name)
		}
		r.byKey[key] = test
		r.tests = append(r.tests, test)
	}
	return nil
}

// Run executes the initial suite and every retry suite the engine schedules
// after it, then fires the run-finished hook. The aggregate result counts
// suppressed failures as green attempts; only unsuppressed failures fail
// the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	members := make([]host.Instance, len(r.tests))
	for i, test := range r.tests {
		members[i] = newInstance(test, 0)
	}
	r.mu.Unlock()

	result := &Result{}
	start := time.Now()

	var suite host.Suite = host.NewSuite(fmt.Sprintf("%d tests", len(members)), members...)
	for suite != nil {
		if err := ctx.Err(); err != nil {
			// Aborted runs still get their report: partial ledger state
			// is a valid, if incomplete, account of what happened.
			r.rc.OnRunFinished()
			return result, err
		}

		r.runSuite(ctx, suite, result)
		result.Suites++

		// Barrier: runSuite has drained all workers before this point.
		next, ok := r.rc.OnSuiteFinished(ctx, suite)
		if !ok {
			break
		}
		suite = next
	}

	r.rc.OnRunFinished()
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSuite(ctx context.Context, suite host.Suite, result *Result) {
	instances := suite.Instances()
	attempts := make([]InstanceResult, len(instances))

	if r.config.Parallel {
		concurrency := r.config.Concurrency
		if concurrency <= 0 {
			concurrency = DefaultConcurrency
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, concurrency)

		for i, inst := range instances {
			wg.Add(1)
			sem <- struct{}{} // acquire semaphore

			go func(idx int, in host.Instance) {
				defer wg.Done()
				defer func() { <-sem }() // release semaphore

				attempts[idx] = r.runInstance(in)
			}(i, inst)
		}
		wg.Wait()
	} else {
		for i, inst := range instances {
			if ctx.Err() != nil {
				break
			}
			attempts[i] = r.runInstance(inst)
		}
	}

	for _, a := range attempts {
		if a.Identity.Name == "" {
			continue // sequential run aborted before this instance
		}
		result.Attempts = append(result.Attempts, a)
		switch {
		case a.Suppressed:
			result.Suppressed++
		case a.Passed:
			result.Passed++
		default:
			result.Failed++
		}
	}
}

func (r *Runner) runInstance(in host.Instance) InstanceResult {
	inst := in.(*instance)
	tracker := r.rc.BeginInstance(inst)
	defer r.rc.EndInstance(inst)

	t := &T{inst: inst, tracker: tracker, rc: r.rc}
	start := time.Now()
	runBody(t, inst.test.Fn)
	elapsed := time.Since(start)

	res := InstanceResult{
		Identity:   inst.Identity(),
		Retry:      inst.Retry(),
		Passed:     !inst.Failed(),
		Suppressed: inst.Failed() && t.suppressed,
		Duration:   elapsed,
	}
	if f, ok := inst.FailureDetail(); ok {
		res.Failure = &f
	}

	if r.collector != nil {
		r.collector.RecordAttempt(res.Identity, elapsed, res.Passed || res.Suppressed, res.Retry > 0)
	}
	return res
}

// runBody invokes the test function, absorbing the halt sentinel T uses to
// stop execution after a failure. Any other panic becomes a failure raised
// at an unknown location, classified like any other.
func runBody(t *T, fn func(*T)) {
	defer func() {
		p := recover()
		if p == nil || p == haltInstance {
			return
		}
		t.raiseNoHalt(fmt.Sprintf("panic: %v", p))
	}()
	fn(t)
}
