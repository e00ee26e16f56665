// Package report aggregates the typed failures of a resolution pass into a
// single, deterministically ordered set of diagnostics. Non-cyclic problems
// accumulate; a dependency cycle is fatal and reported alone.
package report
