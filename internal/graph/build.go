package graph

import (
	"fmt"
	"path"
	"sort"

	"github.com/kingrea/modgraph/internal/platform"
)

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	EdgePublic  EdgeKind = "public"
	EdgePrivate EdgeKind = "private"
	// EdgeDynamic edges are advisory: recorded, but they never constrain
	// ordering or take part in cycle detection.
	EdgeDynamic EdgeKind = "dynamic"
)

// Advisory reports whether the edge is a runtime-only relationship.
func (k EdgeKind) Advisory() bool {
	return k == EdgeDynamic
}

// Edge points from a dependent to one of its dependencies.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Node captures a resolved module plus its graph neighbourhood. All name
// slices are sorted.
type Node struct {
	ID           string
	Module       platform.ResolvedModule
	Dependencies []string
	Dependents   []string
	Advisory     []string
	Externals    []string
}

// DependencyGraph holds the resolved modules of one request and the directed
// edges between them. It is built once per request and never mutated.
type DependencyGraph struct {
	nodes    map[string]*Node
	names    []string
	edges    []Edge
	platform string
}

// BuildOptions tunes how unknown dependency names are handled.
type BuildOptions struct {
	// Externals lists path.Match patterns of system libraries that may be
	// referenced without being registered. Matches are recorded, not graphed.
	Externals []string
	// Platform is used in the reason of references to excluded modules.
	Platform string
	// Failed names modules whose filtering already failed. References to
	// them are skipped so the failure is only reported once.
	Failed []string
}

// Build converts resolved modules into a dependency graph. Every dependency
// name that is neither a graphed module nor an external is collected as an
// *UnresolvedDependencyError; the graph is returned alongside the errors so
// callers can keep inspecting it.
func Build(modules []platform.ResolvedModule, opts BuildOptions) (*DependencyGraph, []error) {
	g := &DependencyGraph{nodes: make(map[string]*Node, len(modules)), platform: opts.Platform}
	excluded := map[string]string{}
	for _, mod := range modules {
		if mod.Excluded {
			excluded[mod.Name] = mod.ExcludedReason
			continue
		}
		if _, exists := g.nodes[mod.Name]; exists {
			continue
		}
		g.nodes[mod.Name] = &Node{ID: mod.Name, Module: mod}
		g.names = append(g.names, mod.Name)
	}
	sort.Strings(g.names)
	failed := make(map[string]struct{}, len(opts.Failed))
	for _, name := range opts.Failed {
		failed[name] = struct{}{}
	}

	var errs []error
	link := func(node *Node, dep string, kind EdgeKind) {
		if dep == node.ID {
			return
		}
		if target, ok := g.nodes[dep]; ok {
			g.edges = append(g.edges, Edge{From: node.ID, To: dep, Kind: kind})
			if kind.Advisory() {
				node.Advisory = appendUnique(node.Advisory, dep)
				return
			}
			node.Dependencies = appendUnique(node.Dependencies, dep)
			target.Dependents = appendUnique(target.Dependents, node.ID)
			return
		}
		if _, ok := failed[dep]; ok {
			return
		}
		if reason, ok := excluded[dep]; ok {
			if reason == "" {
				reason = fmt.Sprintf("not available on %s", opts.Platform)
			}
			errs = append(errs, &UnresolvedDependencyError{Module: node.ID, Dependency: dep, Reason: reason, Advisory: kind.Advisory()})
			return
		}
		if matchesAny(opts.Externals, dep) {
			node.Externals = appendUnique(node.Externals, dep)
			return
		}
		errs = append(errs, &UnresolvedDependencyError{Module: node.ID, Dependency: dep, Reason: "not registered", Advisory: kind.Advisory()})
	}
	for _, name := range g.names {
		node := g.nodes[name]
		for _, dep := range node.Module.Public {
			link(node, dep, EdgePublic)
		}
		for _, dep := range node.Module.Private {
			link(node, dep, EdgePrivate)
		}
		for _, dep := range node.Module.Dynamic {
			link(node, dep, EdgeDynamic)
		}
	}
	for _, node := range g.nodes {
		sort.Strings(node.Dependencies)
		sort.Strings(node.Dependents)
		sort.Strings(node.Advisory)
		sort.Strings(node.Externals)
	}
	sort.SliceStable(g.edges, func(i, j int) bool {
		if g.edges[i].From != g.edges[j].From {
			return g.edges[i].From < g.edges[j].From
		}
		return g.edges[i].To < g.edges[j].To
	})
	return g, errs
}

// Len returns the number of graphed modules.
func (g *DependencyGraph) Len() int {
	return len(g.names)
}

// Platform returns the platform the graph was built for.
func (g *DependencyGraph) Platform() string {
	return g.platform
}

// Names returns the graphed module names, sorted.
func (g *DependencyGraph) Names() []string {
	return append([]string(nil), g.names...)
}

// Node retrieves a module node by name.
func (g *DependencyGraph) Node(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// DependenciesOf returns the hard dependencies of name.
func (g *DependencyGraph) DependenciesOf(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return append([]string(nil), node.Dependencies...)
	}
	return nil
}

// DependentsOf returns the modules that hard-depend on name.
func (g *DependencyGraph) DependentsOf(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return append([]string(nil), node.Dependents...)
	}
	return nil
}

// AdvisoryOf returns the dynamically loaded modules of name.
func (g *DependencyGraph) AdvisoryOf(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return append([]string(nil), node.Advisory...)
	}
	return nil
}

// Externals returns the system libraries referenced by name.
func (g *DependencyGraph) Externals(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return append([]string(nil), node.Externals...)
	}
	return nil
}

// Edges returns every edge sorted by source then destination.
func (g *DependencyGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Path returns the shortest chain of hard dependencies leading from one
// module to another, both ends included. Neighbours are explored in name
// order so ties resolve deterministically. Returns nil when to is not
// reachable.
func (g *DependencyGraph) Path(from, to string) []string {
	if _, ok := g.nodes[from]; !ok {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.nodes[current].Dependencies {
			if _, seen := parent[dep]; seen {
				continue
			}
			parent[dep] = current
			if dep == to {
				var path []string
				for step := to; step != ""; step = parent[step] {
					path = append([]string{step}, path...)
				}
				return path
			}
			queue = append(queue, dep)
		}
	}
	return nil
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
