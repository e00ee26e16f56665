// Package resolver drives a resolution request end to end: it applies the
// platform filter to every registered descriptor, narrows the result to a
// target's closure, builds the dependency graph, and returns either a build
// order or an aggregated report.
package resolver
