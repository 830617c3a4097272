package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
	"github.com/abdul-hamid-achik/flakespec/packages/report"
)

type fakeInstance struct {
	id      host.Identity
	retry   int
	failed  bool
	failure host.Failure
}

func (f *fakeInstance) Identity() host.Identity { return f.id }
func (f *fakeInstance) Retry() int              { return f.retry }
func (f *fakeInstance) MarkFailed(fl host.Failure) {
	f.failed = true
	f.failure = fl
}

type fakeFactory struct{}

func (fakeFactory) New(id host.Identity, retry int) (host.Instance, error) {
	return &fakeInstance{id: id, retry: retry}, nil
}

type recordingSink struct {
	calls   int
	entries []report.Entry
}

func (r *recordingSink) AppendRun(_ string, _ time.Time, entries []report.Entry) error {
	r.calls++
	r.entries = entries
	return nil
}

func newFakeInstance(name string) *fakeInstance {
	return &fakeInstance{id: host.Identity{Suite: "S", Name: name, Selector: "S::" + name}}
}

func bufEmitter(buf *bytes.Buffer) *report.Emitter {
	return report.NewEmitter(report.WithWriter(buf))
}

func TestRunContext_OnFailureRaised(t *testing.T) {
	t.Run("marks instance failed either way", func(t *testing.T) {
		rc := New(fakeFactory{}, WithEmitter(bufEmitter(&bytes.Buffer{})))
		inst := newFakeInstance("T1")
		rc.BeginInstance(inst)
		defer rc.EndInstance(inst)

		suppressed := rc.OnFailureRaised(inst, host.Failure{Message: "boom"})
		assert.False(t, suppressed, "no flaky region was active")
		assert.True(t, inst.failed)
		assert.Equal(t, "boom", inst.failure.Message)
	})

	t.Run("suppresses inside flaky region", func(t *testing.T) {
		rc := New(fakeFactory{}, WithEmitter(bufEmitter(&bytes.Buffer{})))
		inst := newFakeInstance("T1")
		tr := rc.BeginInstance(inst)
		defer rc.EndInstance(inst)

		tr.Enter(flaky.NonFixable("flaky API", 2))
		defer tr.Exit()

		suppressed := rc.OnFailureRaised(inst, host.Failure{Message: "boom"})
		assert.True(t, suppressed)
		assert.True(t, inst.failed, "instance still halts")
		assert.Equal(t, 1, rc.Ledger().Len())
	})

	t.Run("untracked instance always propagates", func(t *testing.T) {
		rc := New(fakeFactory{}, WithEmitter(bufEmitter(&bytes.Buffer{})))
		inst := newFakeInstance("T1")

		suppressed := rc.OnFailureRaised(inst, host.Failure{Message: "boom"})
		assert.False(t, suppressed)
	})
}

func TestRunContext_OnSuiteFinished(t *testing.T) {
	rc := New(fakeFactory{}, WithEmitter(bufEmitter(&bytes.Buffer{})))
	inst := newFakeInstance("T1")
	tr := rc.BeginInstance(inst)
	tr.Enter(flaky.NonFixable("flaky API", 2))
	rc.OnFailureRaised(inst, host.Failure{Message: "boom"})
	tr.Exit()
	rc.EndInstance(inst)

	suite := host.NewSuite("original")
	next, ok := rc.OnSuiteFinished(context.Background(), suite)
	require.True(t, ok)
	assert.Equal(t, "Retrying 1 failed test", next.Name())
	require.Len(t, next.Instances(), 1)
	assert.Equal(t, 1, next.Instances()[0].Retry())

	_, ok = rc.OnSuiteFinished(context.Background(), next)
	assert.False(t, ok, "no new suppressions, no new suite")
}

func TestRunContext_OnRunFinished(t *testing.T) {
	t.Run("writes report once", func(t *testing.T) {
		var buf bytes.Buffer
		rc := New(fakeFactory{}, WithEmitter(bufEmitter(&buf)))

		inst := newFakeInstance("T1")
		tr := rc.BeginInstance(inst)
		tr.Enter(flaky.Fixable("race"))
		rc.OnFailureRaised(inst, host.Failure{})
		tr.Exit()
		rc.EndInstance(inst)

		recs := rc.OnRunFinished()
		require.Len(t, recs, 1)

		var rep report.Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
		require.Len(t, rep.Retries, 1)
		assert.Equal(t, "S/T1", rep.Retries[0].Name)
		assert.True(t, rep.Retries[0].Fixable)

		// Second call must not duplicate entries or write again.
		written := buf.Len()
		again := rc.OnRunFinished()
		assert.Len(t, again, 1)
		assert.Equal(t, written, buf.Len())
	})

	t.Run("feeds history sink", func(t *testing.T) {
		sink := &recordingSink{}
		rc := New(fakeFactory{},
			WithEmitter(bufEmitter(&bytes.Buffer{})),
			WithHistory(sink),
		)

		inst := newFakeInstance("T1")
		tr := rc.BeginInstance(inst)
		tr.Enter(flaky.NonFixable("flaky API", 2))
		rc.OnFailureRaised(inst, host.Failure{})
		tr.Exit()
		rc.EndInstance(inst)

		rc.OnRunFinished()
		rc.OnRunFinished()
		assert.Equal(t, 1, sink.calls, "history appended exactly once")
		require.Len(t, sink.entries, 1)
		assert.Equal(t, "S/T1", sink.entries[0].Name)
	})

	t.Run("empty run still emits an empty report", func(t *testing.T) {
		var buf bytes.Buffer
		rc := New(fakeFactory{}, WithEmitter(bufEmitter(&buf)))
		recs := rc.OnRunFinished()
		assert.Empty(t, recs)

		var rep report.Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
		assert.NotNil(t, rep.Retries)
		assert.Empty(t, rep.Retries)
	})
}

func TestRunContext_MaxRetriesOverride(t *testing.T) {
	rc := New(fakeFactory{},
		WithEmitter(bufEmitter(&bytes.Buffer{})),
		WithMaxRetriesOverride(func(id host.Identity) (int, bool) {
			return 7, true
		}),
	)

	inst := newFakeInstance("T1")
	tr := rc.BeginInstance(inst)
	tr.Enter(flaky.NonFixable("flaky API", 2))
	rc.OnFailureRaised(inst, host.Failure{})
	tr.Exit()
	rc.EndInstance(inst)

	recs := rc.OnRunFinished()
	require.Len(t, recs, 1)
	assert.Equal(t, 7, recs[0].MaxRetriesAllowed)
}
