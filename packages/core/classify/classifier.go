// Package classify decides, for every failure a test instance raises,
// whether the failure is suppressible because it happened inside an active
// flaky region with retry budget left, or must propagate as a normal test
// failure.
package classify

import (
	"log/slog"

	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/core/ledger"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// Decision is the outcome of classifying one failure.
type Decision struct {
	// Suppressed is what the host gets back: true means the instance is
	// halted as failed but the failure is excluded from aggregate
	// pass/fail accounting because a retry will be scheduled.
	Suppressed bool

	// Attempts is the identity's retry count at classification time.
	// Only meaningful when a flaky region was active.
	Attempts int

	// Reason explains a propagate decision for logs: "no-region" or
	// "cap-exhausted". Empty when suppressed.
	Reason string
}

// Classifier applies the suppression algorithm against the run's ledger.
// One classifier serves all workers; it keeps no per-test state of its own.
type Classifier struct {
	ledger *ledger.Ledger
	log    *slog.Logger

	// MaxRetriesOverride, when set, lets run configuration raise or lower
	// the retry cap for specific identities. Fixable flakes are exempt:
	// their cap is one by definition.
	MaxRetriesOverride func(host.Identity) (int, bool)
}

// New returns a classifier recording suppressions into l.
func New(l *ledger.Ledger, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{ledger: l, log: log}
}

// Classify runs the suppression decision for a failure raised by the
// instance whose region state is tracked by tr.
//
// No active region: the failure is nobody's business but the test's —
// propagate. Active region with budget left: record the suppression and
// tell the host to exclude this failure from aggregate accounting. Active
// region with the cap exhausted: propagate; the final attempt genuinely
// fails the run.
func (c *Classifier) Classify(inst host.Instance, tr *flaky.Tracker, loc host.Location) Decision {
	pol, active := tr.Current()
	if !active {
		return Decision{Reason: "no-region"}
	}

	id := inst.Identity()
	pol = c.applyOverride(id, pol)

	attempts, ok := c.ledger.RecordSuppressed(id, pol)
	if !ok {
		c.log.Debug("flaky retry cap exhausted, failure propagates",
			"test", id.String(),
			"attempts", attempts,
			"location", loc.String(),
		)
		return Decision{Attempts: attempts, Reason: "cap-exhausted"}
	}

	c.log.Info("suppressed flaky failure",
		"test", id.String(),
		"reason", pol.Reason,
		"fixable", pol.Fixable,
		"attempts", attempts,
		"location", loc.String(),
	)
	return Decision{Suppressed: true, Attempts: attempts}
}

func (c *Classifier) applyOverride(id host.Identity, pol flaky.Policy) flaky.Policy {
	if pol.Fixable || c.MaxRetriesOverride == nil {
		return pol
	}
	if max, ok := c.MaxRetriesOverride(id); ok && max >= 1 {
		pol.MaxRetries = max
	}
	return pol
}
