// Package report serializes the run's retry ledger into the structured
// artifact CI consumes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/flakespec/packages/core/ledger"
)

// DefaultFilename is the report filename inside the run's result bundle.
const DefaultFilename = "flakespec-retries.json"

// Entry is one retried test in the report.
type Entry struct {
	Name              string `json:"name"`
	MaxRetriesAllowed int    `json:"maxRetriesAllowed"`
	AttemptedRetries  int    `json:"attemptedRetries"`
	Reason            string `json:"reason"`
	Fixable           bool   `json:"fixable"`
}

// Report is the complete artifact. Retries preserves the ledger's
// identity-descending order.
type Report struct {
	RunID   string  `json:"runId"`
	Time    string  `json:"time"`
	Retries []Entry `json:"retries"`
}

// FromRecords converts ledger records into report entries, preserving order.
func FromRecords(recs []ledger.Record) []Entry {
	entries := make([]Entry, len(recs))
	for i, rec := range recs {
		entries[i] = Entry{
			Name:              rec.Identity.String(),
			MaxRetriesAllowed: rec.MaxRetriesAllowed,
			AttemptedRetries:  rec.AttemptedRetries,
			Reason:            rec.Policy.Reason,
			Fixable:           rec.Policy.Fixable,
		}
	}
	return entries
}

// Emitter writes the report once per run. The report is a best-effort
// diagnostic artifact: callers log write failures and move on, they never
// fail the run over one.
type Emitter struct {
	mu      sync.Mutex
	path    string
	writer  io.Writer
	emitted bool
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithPath writes the report to an explicit file path.
func WithPath(path string) EmitterOption {
	return func(e *Emitter) {
		e.path = path
	}
}

// WithOutputDir writes the report under dir with the default filename.
func WithOutputDir(dir string) EmitterOption {
	return func(e *Emitter) {
		e.path = filepath.Join(dir, DefaultFilename)
	}
}

// WithWriter writes the report to w instead of a file. Used in tests.
func WithWriter(w io.Writer) EmitterOption {
	return func(e *Emitter) {
		e.writer = w
	}
}

// NewEmitter returns an emitter writing to the default filename in the
// current directory unless options say otherwise.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{path: DefaultFilename}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit writes the report for the given ledger records. The first call wins;
// subsequent calls are no-ops so a host calling its run-finished hook twice
// cannot duplicate entries.
func (e *Emitter) Emit(runID string, recs []ledger.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.emitted {
		return nil
	}

	rep := Report{
		RunID:   runID,
		Time:    time.Now().Format(time.RFC3339),
		Retries: FromRecords(recs),
	}
	if rep.Retries == nil {
		rep.Retries = []Entry{}
	}

	w := e.writer
	if w == nil {
		if dir := filepath.Dir(e.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating report directory: %w", err)
			}
		}
		f, err := os.Create(e.path)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	e.emitted = true
	return nil
}

// Path returns where the report will be written, empty when writing to an
// injected writer.
func (e *Emitter) Path() string {
	if e.writer != nil {
		return ""
	}
	return e.path
}

// Load reads and decodes a report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &rep, nil
}
