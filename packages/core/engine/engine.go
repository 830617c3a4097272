package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/flakespec/packages/core/classify"
	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/core/ledger"
	"github.com/abdul-hamid-achik/flakespec/packages/core/schedule"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
	"github.com/abdul-hamid-achik/flakespec/packages/metrics"
	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

// HistorySink receives the run's final retry entries for cross-run storage.
type HistorySink interface {
	AppendRun(runID string, at time.Time, entries []report.Entry) error
}

// RunContext owns all run-scoped retry state: the ledger, the classifier,
// the scheduler, and the report emitter. One RunContext is created at run
// start and injected into the host's hook calls; there is no package-level
// singleton.
type RunContext struct {
	RunID string

	ledger     *ledger.Ledger
	classifier *classify.Classifier
	scheduler  *schedule.Scheduler
	emitter    *report.Emitter
	collector  *metrics.Collector
	history    HistorySink
	log        *slog.Logger
	factoryRef host.Factory

	overrideFn func(host.Identity) (int, bool)
	retryRate  float64

	mu       sync.Mutex
	trackers map[host.Instance]*flaky.Tracker
	finished bool
}

// Option configures a RunContext.
type Option func(*RunContext)

// WithLogger sets the run's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(rc *RunContext) { rc.log = log }
}

// WithEmitter sets the report emitter. Defaults to the package default
// (report file in the current directory).
func WithEmitter(e *report.Emitter) Option {
	return func(rc *RunContext) { rc.emitter = e }
}

// WithMetrics attaches an attempt-metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(rc *RunContext) { rc.collector = c }
}

// WithHistory attaches a cross-run history sink, fed at run end.
func WithHistory(h HistorySink) Option {
	return func(rc *RunContext) { rc.history = h }
}

// WithMaxRetriesOverride lets run configuration adjust retry caps per test.
func WithMaxRetriesOverride(fn func(host.Identity) (int, bool)) Option {
	return func(rc *RunContext) { rc.overrideFn = fn }
}

// WithRetryRateLimit paces retry-suite construction, see schedule.WithRateLimit.
func WithRetryRateLimit(r float64) Option {
	return func(rc *RunContext) { rc.retryRate = r }
}

// New creates the run context for one run. factory is the host's way of
// constructing fresh instances for retried identities.
func New(factory host.Factory, opts ...Option) *RunContext {
	l := ledger.New()
	rc := &RunContext{
		RunID:      uuid.NewString(),
		ledger:     l,
		log:        slog.Default(),
		emitter:    report.NewEmitter(),
		trackers:   make(map[host.Instance]*flaky.Tracker),
		factoryRef: factory,
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.classifier = classify.New(l, rc.log)
	rc.classifier.MaxRetriesOverride = rc.overrideFn
	schedOpts := []schedule.Option{schedule.WithLogger(rc.log)}
	if rc.retryRate > 0 {
		schedOpts = append(schedOpts, schedule.WithRateLimit(rc.retryRate))
	}
	rc.scheduler = schedule.New(l, factory, schedOpts...)
	return rc
}

// Ledger exposes the run's ledger for read-only consumers.
func (rc *RunContext) Ledger() *ledger.Ledger {
	return rc.ledger
}

// BeginInstance registers a tracker for an instance about to execute. The
// tracker is private to that execution; test bodies use it to declare flaky
// regions.
func (rc *RunContext) BeginInstance(inst host.Instance) *flaky.Tracker {
	tr := flaky.NewTracker()
	rc.mu.Lock()
	rc.trackers[inst] = tr
	rc.mu.Unlock()
	return tr
}

// EndInstance drops the instance's tracker once execution finishes.
func (rc *RunContext) EndInstance(inst host.Instance) {
	rc.mu.Lock()
	delete(rc.trackers, inst)
	rc.mu.Unlock()
}

// OnFailureRaised is the hook a host calls on every failure a test instance
// raises. The instance is marked failed either way so its execution halts
// normally; the return value tells the host whether to exclude the failure
// from aggregate pass/fail accounting because a retry will be scheduled.
func (rc *RunContext) OnFailureRaised(inst host.Instance, f host.Failure) bool {
	rc.mu.Lock()
	tr := rc.trackers[inst]
	rc.mu.Unlock()

	inst.MarkFailed(f)

	if tr == nil {
		rc.log.Warn("failure raised by untracked instance, propagating",
			"test", inst.Identity().String(),
			"location", f.Location.String(),
		)
		return false
	}
	return rc.classifier.Classify(inst, tr, f.Location).Suppressed
}

// OnSuiteFinished is the hook a host calls after a suite completes and all
// of its workers have drained. It returns zero or one follow-up suite of
// retried tests to schedule next.
func (rc *RunContext) OnSuiteFinished(ctx context.Context, s host.Suite) (host.Suite, bool) {
	next, ok, err := rc.scheduler.NextSuite(ctx)
	if err != nil {
		rc.log.Error("building retry suite failed", "suite", s.Name(), "error", err)
		return nil, false
	}
	if ok {
		rc.log.Info("scheduling retry suite", "after", s.Name(), "next", next.Name())
	}
	return next, ok
}

// OnRunFinished is the hook a host calls once after all suites, including
// retries, complete. It writes the report and feeds the history sink, both
// best-effort: a diagnostic artifact must never fail the run. Calling it
// again is a no-op; the same final records are returned.
func (rc *RunContext) OnRunFinished() []ledger.Record {
	recs := rc.ledger.Entries()

	rc.mu.Lock()
	alreadyDone := rc.finished
	rc.finished = true
	rc.mu.Unlock()
	if alreadyDone {
		return recs
	}

	if err := rc.emitter.Emit(rc.RunID, recs); err != nil {
		rc.log.Error("writing retry report failed", "error", err)
	} else if path := rc.emitter.Path(); path != "" {
		rc.log.Info("retry report written", "path", path, "retries", len(recs))
	}

	if rc.history != nil && len(recs) > 0 {
		if err := rc.history.AppendRun(rc.RunID, time.Now(), report.FromRecords(recs)); err != nil {
			rc.log.Error("appending flake history failed", "error", err)
		}
	}

	if rc.collector != nil {
		snap := rc.collector.Snapshot()
		rc.log.Info("run attempt metrics",
			"attempts", snap.TotalAttempts,
			"failed", snap.FailedAttempts,
			"retried", snap.RetryAttempts,
			"p50", snap.P50,
			"p95", snap.P95,
		)
	}
	return recs
}
