//go:build !debug

// Package debug provides assertions for internal invariants. They are
// checked in builds with the debug tag and compile to no-ops otherwise.
package debug

// Enabled guards assertions whose arguments are expensive to compute.
const Enabled = false

// Assert panics if b is false.
func Assert(b bool, message string) {}
