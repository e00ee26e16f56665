package graph

import (
	"container/heap"
	"fmt"
	"sort"
)

// BuildOrder lists module names so every dependency precedes its dependents.
type BuildOrder []string

// Index returns the position of name, or -1.
func (o BuildOrder) Index(name string) int {
	for i, candidate := range o {
		if candidate == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is part of the order.
func (o BuildOrder) Contains(name string) bool {
	return o.Index(name) >= 0
}

const (
	white = iota
	gray
	black
)

// DetectCycle walks the hard edges depth first, visiting roots and
// neighbours in ascending name order. Reaching a module that is still on the
// walk stack fails with a *CyclicDependencyError whose path starts and ends
// with that module.
func (g *DependencyGraph) DetectCycle() error {
	color := make(map[string]int, len(g.names))
	var stack []string
	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range g.nodes[name].Dependencies {
			switch color[dep] {
			case gray:
				start := 0
				for i, entry := range stack {
					if entry == dep {
						start = i
						break
					}
				}
				path := make([]string, 0, len(stack)-start+1)
				path = append(path, stack[start:]...)
				return append(path, dep)
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}
	for _, name := range g.names {
		if color[name] != white {
			continue
		}
		if cycle := visit(name); cycle != nil {
			return &CyclicDependencyError{Path: cycle}
		}
	}
	return nil
}

// TopologicalOrder returns the modules with every hard dependency placed
// before its dependents. A module is emitted once all of its dependencies
// have been emitted; among equally ready modules the smallest name goes
// first, so the order depends on nothing but the graph.
func (g *DependencyGraph) TopologicalOrder() (BuildOrder, error) {
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}
	pending := make(map[string]int, len(g.names))
	ready := &nameHeap{}
	for _, name := range g.names {
		pending[name] = len(g.nodes[name].Dependencies)
		if pending[name] == 0 {
			heap.Push(ready, name)
		}
	}
	order := make(BuildOrder, 0, len(g.names))
	for ready.Len() > 0 {
		name := heap.Pop(ready).(string)
		order = append(order, name)
		for _, dependent := range g.nodes[name].Dependents {
			pending[dependent]--
			if pending[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}
	if len(order) != len(g.names) {
		return nil, fmt.Errorf("graph: ordered %d of %d modules", len(order), len(g.names))
	}
	return order, nil
}

// Waves groups the build order into levels. Wave zero holds modules with no
// hard dependencies; every later module sits one wave after its deepest
// dependency, so a wave only depends on earlier waves.
func (g *DependencyGraph) Waves() ([][]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	depth := make(map[string]int, len(order))
	var waves [][]string
	for _, name := range order {
		level := 0
		for _, dep := range g.nodes[name].Dependencies {
			if depth[dep]+1 > level {
				level = depth[dep] + 1
			}
		}
		depth[name] = level
		for len(waves) <= level {
			waves = append(waves, nil)
		}
		waves[level] = append(waves[level], name)
	}
	for _, wave := range waves {
		sort.Strings(wave)
	}
	return waves, nil
}

// nameHeap is a min-heap of module names.
type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nameHeap) Push(x any) {
	*h = append(*h, x.(string))
}

func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
