package flaky

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixable(t *testing.T) {
	t.Run("caps at one retry", func(t *testing.T) {
		p := Fixable("race in teardown")
		assert.True(t, p.Fixable)
		assert.Equal(t, "race in teardown", p.Reason)
		assert.Equal(t, 1, p.EffectiveMaxRetries())
	})

	t.Run("empty reason panics", func(t *testing.T) {
		assert.Panics(t, func() {
			Fixable("")
		})
	})

	t.Run("cap stays one even when struct is hand-built with more", func(t *testing.T) {
		p := Policy{Fixable: true, Reason: "race", MaxRetries: 5}
		assert.Equal(t, 1, p.EffectiveMaxRetries())
	})
}

func TestNonFixable(t *testing.T) {
	t.Run("carries explicit cap", func(t *testing.T) {
		p := NonFixable("flaky API", 3)
		assert.False(t, p.Fixable)
		assert.Equal(t, 3, p.EffectiveMaxRetries())
	})

	t.Run("empty reason panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NonFixable("", 2)
		})
	})

	t.Run("non-positive cap panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NonFixable("flaky API", 0)
		})
	})
}

func TestPolicy_Validate(t *testing.T) {
	assert.Error(t, Policy{}.Validate())
	assert.Error(t, Policy{Reason: "r", MaxRetries: 0}.Validate())
	assert.NoError(t, Policy{Reason: "r", Fixable: true}.Validate())
	assert.NoError(t, Policy{Reason: "r", MaxRetries: 2}.Validate())
}

func TestTracker_EnterExit(t *testing.T) {
	tr := NewTracker()

	_, active := tr.Current()
	assert.False(t, active)

	tr.Enter(Fixable("race"))
	p, active := tr.Current()
	require.True(t, active)
	assert.Equal(t, "race", p.Reason)

	tr.Exit()
	_, active = tr.Current()
	assert.False(t, active)
}

func TestTracker_NestedEnterPanics(t *testing.T) {
	tr := NewTracker()
	tr.Enter(Fixable("outer"))
	assert.Panics(t, func() {
		tr.Enter(Fixable("inner"))
	})
}

func TestTracker_ExitWithoutEnterIsSafe(t *testing.T) {
	tr := NewTracker()
	assert.NotPanics(t, func() {
		tr.Exit()
	})
}

func TestTracker_Run(t *testing.T) {
	t.Run("region active only inside the block", func(t *testing.T) {
		tr := NewTracker()
		var sawRegion bool

		err := tr.Run(NonFixable("flaky API", 2), func() error {
			_, sawRegion = tr.Current()
			return nil
		})
		require.NoError(t, err)
		assert.True(t, sawRegion)

		_, active := tr.Current()
		assert.False(t, active)
	})

	t.Run("region cleared when the block fails", func(t *testing.T) {
		tr := NewTracker()
		err := tr.Run(Fixable("race"), func() error {
			return errors.New("boom")
		})
		assert.EqualError(t, err, "boom")

		_, active := tr.Current()
		assert.False(t, active)
	})

	t.Run("region cleared when the block panics", func(t *testing.T) {
		tr := NewTracker()
		assert.Panics(t, func() {
			_ = tr.Run(Fixable("race"), func() error {
				panic("boom")
			})
		})

		_, active := tr.Current()
		assert.False(t, active)
	})
}
