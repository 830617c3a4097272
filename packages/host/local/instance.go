package local

import (
	"sync"

	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// instance is one runnable execution of a registered test. A fresh instance
// is built for every attempt; retry carries how many reschedules preceded
// it.
type instance struct {
	test  Test
	retry int

	mu      sync.Mutex
	failed  bool
	failure host.Failure
}

func newInstance(test Test, retry int) *instance {
	return &instance{test: test, retry: retry}
}

func (i *instance) Identity() host.Identity {
	return host.Identity{
		Suite:    i.test.Suite,
		Name:     i.test.Name,
		Selector: i.test.key(),
	}
}

func (i *instance) Retry() int {
	return i.retry
}

func (i *instance) MarkFailed(f host.Failure) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failed {
		return // first failure wins
	}
	i.failed = true
	i.failure = f
}

func (i *instance) Failed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failed
}

func (i *instance) FailureDetail() (host.Failure, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failure, i.failed
}

// factory rebuilds instances for retried identities from the runner's
// registry. Implements host.Factory.
type factory struct {
	runner *Runner
}

func (f *factory) New(id host.Identity, retry int) (host.Instance, error) {
	f.runner.mu.Lock()
	test, ok := f.runner.byKey[id.Selector]
	f.runner.mu.Unlock()
	if !ok {
		return nil, &UnknownTestError{Identity: id}
	}
	return newInstance(test, retry), nil
}

// UnknownTestError is returned when a retry identity has no registered test.
type UnknownTestError struct {
	Identity host.Identity
}

func (e *UnknownTestError) Error() string {
	return "local: no registered test for identity " + e.Identity.String()
}
