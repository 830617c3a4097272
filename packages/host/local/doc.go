// Package local is an in-process reference host for the retry engine. Test
// bodies are plain Go functions registered on a Runner; the runner executes
// them, sequentially or across parallel workers, and loops through whatever
// retry suites the engine schedules until the run settles.
//
// It exists so the engine's full lifecycle can be exercised and observed
// without an external test framework, and as a worked example of what a
// real host integration has to provide.
package local
