// Package flaky declares flake-tolerance policies and tracks, per test
// instance, whether execution is currently inside a declared flaky region.
package flaky
