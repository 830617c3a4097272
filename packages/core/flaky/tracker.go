package flaky

// Tracker holds the single-slot flaky-region state for one test instance.
// A tracker is private to its own execution: one per running instance, no
// cross-test sharing, so no locking is needed here.
type Tracker struct {
	active bool
	policy Policy
}

// NewTracker returns a tracker with no active region.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Enter activates the region for the given policy. Exactly one region may be
// active at a time; entering while another region is active panics rather
// than silently overwriting state. Panics if the policy is invalid.
func (t *Tracker) Enter(p Policy) {
	if err := p.Validate(); err != nil {
		panic(err.Error())
	}
	if t.active {
		panic("flaky: nested flaky regions are not supported; exit the current region first")
	}
	t.active = true
	t.policy = p
}

// Exit clears the active region. Safe to call when no region is active.
func (t *Tracker) Exit() {
	t.active = false
	t.policy = Policy{}
}

// Current returns the active policy, if any.
func (t *Tracker) Current() (Policy, bool) {
	return t.policy, t.active
}

// Run executes fn inside a flaky region. The region is entered before fn
// runs and unconditionally cleared before Run returns, whether fn succeeds,
// fails, or panics. The block's error is returned unchanged; classifying it
// is the caller's job.
func (t *Tracker) Run(p Policy, fn func() error) error {
	t.Enter(p)
	defer t.Exit()
	return fn()
}
