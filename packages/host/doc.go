// Package host defines the narrow interface between the retry engine and a
// test-execution framework. The engine never discovers, invokes, or asserts
// on tests itself; it observes failures and suite boundaries through these
// types and hands back suites of instances to re-run.
package host
