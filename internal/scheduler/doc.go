// Package scheduler turns a resolved dependency graph into runnable batches
// that respect build order plus constraints such as a parallelism cap. A
// build driver calls it to decide which modules to compile next without
// re-implementing readiness checks.
package scheduler
