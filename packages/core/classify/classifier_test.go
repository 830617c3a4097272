package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/core/ledger"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

type fakeInstance struct {
	id     host.Identity
	retry  int
	failed bool
}

func (f *fakeInstance) Identity() host.Identity   { return f.id }
func (f *fakeInstance) Retry() int                { return f.retry }
func (f *fakeInstance) MarkFailed(_ host.Failure) { f.failed = true }

func newFakeInstance(name string) *fakeInstance {
	return &fakeInstance{id: host.Identity{Suite: "S", Name: name, Selector: "S::" + name}}
}

func TestClassifier_NoActiveRegion(t *testing.T) {
	l := ledger.New()
	c := New(l, nil)
	tr := flaky.NewTracker()

	d := c.Classify(newFakeInstance("T1"), tr, host.Location{})
	assert.False(t, d.Suppressed)
	assert.Equal(t, "no-region", d.Reason)
	assert.Equal(t, 0, l.Len(), "propagated failures leave no record")
}

func TestClassifier_SuppressesInsideRegion(t *testing.T) {
	l := ledger.New()
	c := New(l, nil)
	tr := flaky.NewTracker()
	tr.Enter(flaky.NonFixable("flaky API", 2))
	defer tr.Exit()

	d := c.Classify(newFakeInstance("T1"), tr, host.Location{File: "t1.go", Line: 42})
	assert.True(t, d.Suppressed)
	assert.Equal(t, 0, d.Attempts)
	assert.Equal(t, 1, l.Len())
}

func TestClassifier_CapExhaustedPropagates(t *testing.T) {
	l := ledger.New()
	c := New(l, nil)
	inst := newFakeInstance("T1")
	tr := flaky.NewTracker()
	tr.Enter(flaky.Fixable("race"))
	defer tr.Exit()

	d := c.Classify(inst, tr, host.Location{})
	require.True(t, d.Suppressed)

	// The suite boundary consumes the pending record and burns the one
	// allowed retry.
	l.TakePending()

	d = c.Classify(inst, tr, host.Location{})
	assert.False(t, d.Suppressed)
	assert.Equal(t, "cap-exhausted", d.Reason)
	assert.Equal(t, 1, d.Attempts)
}

func TestClassifier_FixableAlwaysCapsAtOne(t *testing.T) {
	l := ledger.New()
	c := New(l, nil)
	tr := flaky.NewTracker()
	// Hand-built policy asking for more retries than fixable allows.
	tr.Enter(flaky.Policy{Fixable: true, Reason: "race", MaxRetries: 10})
	defer tr.Exit()

	d := c.Classify(newFakeInstance("T1"), tr, host.Location{})
	require.True(t, d.Suppressed)

	rec, ok := l.Lookup(host.Identity{Suite: "S", Name: "T1", Selector: "S::T1"})
	require.True(t, ok)
	assert.Equal(t, 1, rec.MaxRetriesAllowed)
}

func TestClassifier_MaxRetriesOverride(t *testing.T) {
	t.Run("raises cap for non-fixable", func(t *testing.T) {
		l := ledger.New()
		c := New(l, nil)
		c.MaxRetriesOverride = func(id host.Identity) (int, bool) {
			if id.Name == "T1" {
				return 5, true
			}
			return 0, false
		}

		tr := flaky.NewTracker()
		tr.Enter(flaky.NonFixable("flaky API", 2))
		defer tr.Exit()

		d := c.Classify(newFakeInstance("T1"), tr, host.Location{})
		require.True(t, d.Suppressed)

		rec, _ := l.Lookup(host.Identity{Suite: "S", Name: "T1", Selector: "S::T1"})
		assert.Equal(t, 5, rec.MaxRetriesAllowed)
	})

	t.Run("fixable is exempt", func(t *testing.T) {
		l := ledger.New()
		c := New(l, nil)
		c.MaxRetriesOverride = func(host.Identity) (int, bool) { return 5, true }

		tr := flaky.NewTracker()
		tr.Enter(flaky.Fixable("race"))
		defer tr.Exit()

		d := c.Classify(newFakeInstance("T1"), tr, host.Location{})
		require.True(t, d.Suppressed)

		rec, _ := l.Lookup(host.Identity{Suite: "S", Name: "T1", Selector: "S::T1"})
		assert.Equal(t, 1, rec.MaxRetriesAllowed)
	})
}
