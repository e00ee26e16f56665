// Package graph builds the directed dependency graph of resolved modules,
// rejects cycles, and produces a deterministic build order. Edges point from
// a dependent to its dependency; dynamic dependencies are advisory edges
// that never constrain the order.
package graph
