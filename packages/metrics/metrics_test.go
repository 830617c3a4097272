package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

func TestCollector_RecordAttempt(t *testing.T) {
	c := NewCollector()
	id := host.Identity{Suite: "S", Name: "T1"}

	c.RecordAttempt(id, 10*time.Millisecond, true, false)
	c.RecordAttempt(id, 20*time.Millisecond, false, true)

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.TotalAttempts)
	assert.Equal(t, int64(1), snap.FailedAttempts)
	assert.Equal(t, int64(1), snap.RetryAttempts)
	assert.Greater(t, snap.P95, time.Duration(0))
	assert.GreaterOrEqual(t, snap.Max, snap.P50)
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()
	assert.Equal(t, int64(0), snap.TotalAttempts)
	assert.Equal(t, time.Duration(0), snap.P50)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()
	id := host.Identity{Suite: "S", Name: "T1"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.RecordAttempt(id, time.Duration(n+1)*time.Millisecond, n%2 == 0, false)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(20), snap.TotalAttempts)
	assert.Equal(t, int64(10), snap.FailedAttempts)
}
