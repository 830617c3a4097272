package flaky

import "fmt"

// FixableMaxRetries is the implicit retry cap for fixable flakes. A fixable
// flake is believed resolvable, so it gets exactly one retry no matter what.
const FixableMaxRetries = 1

// Policy describes how tolerant a flaky region is of intermittent failure.
// Reason is mandatory: an undocumented flake defeats the auditability goal,
// so constructors reject empty reasons at declaration time.
type Policy struct {
	Fixable    bool
	Reason     string
	MaxRetries int
}

// Fixable declares a flaky region believed resolvable. Capped at one retry
// regardless of anything else. Panics if reason is empty.
func Fixable(reason string) Policy {
	mustReason(reason)
	return Policy{Fixable: true, Reason: reason, MaxRetries: FixableMaxRetries}
}

// NonFixable declares a flaky region with no fix in sight and an explicit
// retry cap. Panics if reason is empty or maxRetries is not positive.
func NonFixable(reason string, maxRetries int) Policy {
	mustReason(reason)
	if maxRetries < 1 {
		panic(fmt.Sprintf("flaky: non-fixable policy needs maxRetries >= 1, got %d", maxRetries))
	}
	return Policy{Fixable: false, Reason: reason, MaxRetries: maxRetries}
}

// EffectiveMaxRetries returns the cap the classifier enforces: the declared
// cap for non-fixable flakes, exactly one for fixable flakes even if a
// larger value was stuffed into the struct by hand.
func (p Policy) EffectiveMaxRetries() int {
	if p.Fixable {
		return FixableMaxRetries
	}
	return p.MaxRetries
}

// Validate reports whether the policy is usable. Constructors enforce this
// already; Validate exists for policies built from config overrides.
func (p Policy) Validate() error {
	if p.Reason == "" {
		return fmt.Errorf("flaky: policy reason must not be empty")
	}
	if !p.Fixable && p.MaxRetries < 1 {
		return fmt.Errorf("flaky: non-fixable policy needs maxRetries >= 1, got %d", p.MaxRetries)
	}
	return nil
}

func mustReason(reason string) {
	if reason == "" {
		panic("flaky: policy declared with empty reason; every flake must name why it is tolerated")
	}
}
