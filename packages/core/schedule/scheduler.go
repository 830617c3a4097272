// Package schedule turns the ledger's pending retry records into follow-up
// suites at suite boundaries.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/flakespec/packages/core/ledger"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// Scheduler builds one retry suite per boundary from the ledger's pending
// records. It must only run after all workers have finished the current
// suite; the engine enforces that barrier.
type Scheduler struct {
	ledger  *ledger.Ledger
	factory host.Factory
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRateLimit paces construction of retry instances to at most r per
// second. Off by default; useful when retried tests hammer a shared fixture
// that caused the flakes in the first place.
func WithRateLimit(r float64) Option {
	return func(s *Scheduler) {
		if r > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(r), 1)
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// New returns a scheduler drawing from l and constructing instances with f.
func New(l *ledger.Ledger, f host.Factory, opts ...Option) *Scheduler {
	s := &Scheduler{ledger: l, factory: f, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextSuite collects every record suppressed since the last boundary,
// constructs one fresh instance per record with its retry counter
// incremented, and groups them into a new suite. Returns ok=false when
// nothing is pending.
//
// Records are handed out by the ledger in identity-descending order and the
// suite preserves it, so retry suites and the report list tests in the same
// reproducible order. Termination needs no bookkeeping here: retry counters
// only grow and the ledger stops marking records pending once a cap is hit,
// so the suite chain is finite.
func (s *Scheduler) NextSuite(ctx context.Context) (host.Suite, bool, error) {
	pending := s.ledger.TakePending()
	if len(pending) == 0 {
		return nil, false, nil
	}

	members := make([]host.Instance, 0, len(pending))
	for _, rec := range pending {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, false, err
			}
		}
		inst, err := s.factory.New(rec.Identity, rec.AttemptedRetries)
		if err != nil {
			return nil, false, fmt.Errorf("constructing retry instance for %s: %w", rec.Identity, err)
		}
		members = append(members, inst)
		s.log.Debug("scheduled retry",
			"test", rec.Identity.String(),
			"attempt", rec.AttemptedRetries,
			"max", rec.MaxRetriesAllowed,
		)
	}

	name := fmt.Sprintf("Retrying %d failed tests", len(members))
	if len(members) == 1 {
		name = "Retrying 1 failed test"
	}
	return host.NewSuite(name, members...), true, nil
}
