// Package ledger accumulates, across a whole run, the tests whose failures
// were suppressed inside flaky regions, together with their retry counts.
// It is the only shared mutable state in the engine.
package ledger

import (
	"sort"
	"sync"

	"github.com/abdul-hamid-achik/flakespec/packages/core/flaky"
	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// Record tracks one test identity's suppressed failures and retries. At most
// one record exists per identity per run.
type Record struct {
	Identity          host.Identity
	Policy            flaky.Policy
	AttemptedRetries  int
	MaxRetriesAllowed int

	// pending marks a record that was suppressed since it was last
	// rescheduled, i.e. it is waiting for the next suite boundary.
	pending bool
}

// Ledger maps test identities to retry records. A single mutex serializes
// the whole map; contention is low (a handful of flaky failures per run at
// most) so per-identity locks would buy nothing.
type Ledger struct {
	mu      sync.Mutex
	records map[host.Identity]*Record
}

// New returns an empty ledger. One is created per run and lives for the
// whole process; it is read at suite boundaries and at run end, never
// cleared.
func New() *Ledger {
	return &Ledger{records: make(map[host.Identity]*Record)}
}

// RecordSuppressed records a suppressed failure for id under the given
// policy, creating the record on first suppression. It returns the retry
// count before any increment, and ok=false without touching the record when
// the retry cap is already exhausted — in that case the caller must let the
// failure propagate. The whole read-modify-write happens under one lock so
// concurrent workers can never race on the same identity.
func (l *Ledger) RecordSuppressed(id host.Identity, p flaky.Policy) (attempts int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[id]
	if !exists {
		rec = &Record{
			Identity:          id,
			Policy:            p,
			MaxRetriesAllowed: p.EffectiveMaxRetries(),
		}
		l.records[id] = rec
	}
	if rec.AttemptedRetries >= rec.MaxRetriesAllowed {
		return rec.AttemptedRetries, false
	}
	rec.pending = true
	return rec.AttemptedRetries, true
}

// CapReached reports whether id has exhausted its retries. False when no
// record exists.
func (l *Ledger) CapReached(id host.Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, exists := l.records[id]
	return exists && rec.AttemptedRetries >= rec.MaxRetriesAllowed
}

// Lookup returns a copy of the record for id, if one exists.
func (l *Ledger) Lookup(id host.Identity) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, exists := l.records[id]
	if !exists {
		return Record{}, false
	}
	return *rec, true
}

// TakePending returns copies of all records suppressed since their last
// reschedule, ordered by identity descending, and increments each one's
// retry counter as it is handed out. The scheduler calls this exactly once
// per suite boundary; the increment here is what makes the next attempt's
// cap check see the correct count.
func (l *Ledger) TakePending() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for _, rec := range l.records {
		if !rec.pending {
			continue
		}
		rec.pending = false
		rec.AttemptedRetries++
		out = append(out, *rec)
	}
	sortRecords(out)
	return out
}

// Entries returns a read-only snapshot of every record, ordered by identity
// descending for reproducible reports.
func (l *Ledger) Entries() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Identity.String() > recs[j].Identity.String()
	})
}
