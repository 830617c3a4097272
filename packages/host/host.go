package host

import "fmt"

// Identity is the stable key for a test function. It is immutable once a
// test instance exists and is used as the lookup key everywhere in the
// engine: ledger records, retry scheduling, and reports.
type Identity struct {
	Suite    string
	Name     string
	Selector string // opaque invocation handle understood by the host
}

// String returns the human-readable form used in reports and logs.
func (id Identity) String() string {
	if id.Suite == "" {
		return id.Name
	}
	return id.Suite + "/" + id.Name
}

// Location points at the source position where a failure was raised.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Failure is the failure signal a test instance raises during execution.
type Failure struct {
	Message  string
	Location Location
}

// Instance is one runnable execution of a test function. The host framework
// owns construction and invocation; the engine only inspects identity and
// retry counters and asks the host to halt the instance on failure.
type Instance interface {
	// Identity returns the immutable identity of the underlying test.
	Identity() Identity

	// Retry returns how many times this identity has been rescheduled
	// before this instance ran. Zero for the original attempt.
	Retry() int

	// MarkFailed tells the host to halt this instance's execution normally.
	// Whether the failure counts toward the aggregate run result is the
	// engine's decision, not the host's.
	MarkFailed(Failure)
}

// Suite is an ordered group of test instances executed together.
type Suite interface {
	Name() string
	Instances() []Instance
}

// Factory constructs a fresh runnable instance for a test identity. Hosts
// typically back this with a registry keyed by selector. The retry argument
// is carried by the new instance so cap checks on the next attempt see the
// correct count.
type Factory interface {
	New(id Identity, retry int) (Instance, error)
}

// SimpleSuite is a plain Suite implementation for hosts and for suites the
// engine synthesizes itself.
type SimpleSuite struct {
	SuiteName string
	Members   []Instance
}

func (s *SimpleSuite) Name() string          { return s.SuiteName }
func (s *SimpleSuite) Instances() []Instance { return s.Members }

// NewSuite builds a SimpleSuite from a name and member instances.
func NewSuite(name string, members ...Instance) *SimpleSuite {
	return &SimpleSuite{SuiteName: name, Members: members}
}
