// Package metrics aggregates per-attempt timings across a run, including
// retried attempts, so slow flaky tests show up in the summary.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// Collector gathers attempt counts and duration percentiles. Safe for
// concurrent use from parallel workers.
type Collector struct {
	mu sync.Mutex

	totalAttempts  atomic.Int64
	failedAttempts atomic.Int64
	retryAttempts  atomic.Int64

	// Attempt latency in microseconds, 1us..10min, 3 significant digits.
	histogram *hdrhistogram.Histogram

	startTime time.Time
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	TotalAttempts  int64
	FailedAttempts int64
	RetryAttempts  int64
	P50            time.Duration
	P95            time.Duration
	P99            time.Duration
	Max            time.Duration
	Elapsed        time.Duration
}

// NewCollector returns a collector with the clock started.
func NewCollector() *Collector {
	return &Collector{
		histogram: hdrhistogram.New(1, 600_000_000, 3),
		startTime: time.Now(),
	}
}

// RecordAttempt records one finished attempt of a test instance. retried is
// true for instances constructed by the retry scheduler.
func (c *Collector) RecordAttempt(id host.Identity, d time.Duration, passed, retried bool) {
	c.totalAttempts.Add(1)
	if !passed {
		c.failedAttempts.Add(1)
	}
	if retried {
		c.retryAttempts.Add(1)
	}

	c.mu.Lock()
	_ = c.histogram.RecordValue(d.Microseconds())
	c.mu.Unlock()
}

// Snapshot returns the current aggregate view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TotalAttempts:  c.totalAttempts.Load(),
		FailedAttempts: c.failedAttempts.Load(),
		RetryAttempts:  c.retryAttempts.Load(),
		P50:            time.Duration(c.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:            time.Duration(c.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:            time.Duration(c.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:            time.Duration(c.histogram.Max()) * time.Microsecond,
		Elapsed:        time.Since(c.startTime),
	}
}
