package scheduler

import (
	"fmt"

	"github.com/kingrea/modgraph/internal/graph"
)

// Selector exposes the minimal contract a build driver needs to request
// runnable module batches.
type Selector interface {
	Runnable(RunnableRequest) (RunnableBatch, error)
}

// Scheduler implements Selector on top of a resolved dependency graph. It
// walks the build order, filters modules whose hard dependencies are all
// complete, and enforces the configured constraints.
type Scheduler struct {
	graph *graph.DependencyGraph
	order graph.BuildOrder
}

// New wires a Scheduler to an acyclic graph.
func New(g *graph.DependencyGraph) (*Scheduler, error) {
	if g == nil {
		return nil, fmt.Errorf("scheduler: graph is required")
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return &Scheduler{graph: g, order: order}, nil
}

// RunnableRequest captures the current build state plus any scheduling
// constraints.
type RunnableRequest struct {
	// Completed lists modules whose build has finished.
	Completed []string
	// Running lists modules currently building so they are not dispatched
	// twice.
	Running []string
	// BatchSize limits how many runnable modules are returned at once. Values
	// <= 0 are treated as "no limit" (subject to MaxParallel enforcement).
	BatchSize int
	// MaxParallel caps how many modules may build at once, including the
	// modules listed in Running. Values <= 0 disable the limit.
	MaxParallel int
}

// RunnableBatch describes the scheduler's decision.
type RunnableBatch struct {
	Modules []string
	Skipped map[string]SkipReason
	// Done is set once every module of the graph is complete.
	Done bool
}

// SkipReason explains why a module was excluded from the runnable set.
type SkipReason struct {
	Reason    SkipReasonCode
	Detail    string
	BlockedBy []string
}

// SkipReasonCode enumerates scheduler skip reasons.
type SkipReasonCode string

const (
	SkipReasonNotReady    SkipReasonCode = "not-ready"
	SkipReasonConcurrency SkipReasonCode = "concurrency"
	SkipReasonActive      SkipReasonCode = "already-running"
)

// Runnable returns the next modules, in build order, whose hard
// dependencies are complete.
func (s *Scheduler) Runnable(req RunnableRequest) (RunnableBatch, error) {
	completed := toSet(req.Completed)
	for name := range completed {
		if _, ok := s.graph.Node(name); !ok {
			return RunnableBatch{}, fmt.Errorf("scheduler: unknown completed module %s", name)
		}
	}
	running := toSet(req.Running)
	result := RunnableBatch{}
	var pending []string
	for _, name := range s.order {
		if _, done := completed[name]; !done {
			pending = append(pending, name)
		}
	}
	if len(pending) == 0 {
		result.Done = true
		return result, nil
	}
	maxBatch := req.batchLimit(len(pending), len(running))
	for _, name := range pending {
		if _, active := running[name]; active {
			result.addSkip(name, SkipReason{Reason: SkipReasonActive, Detail: "module already running"})
			continue
		}
		if blockers := s.blockers(name, completed); len(blockers) > 0 {
			result.addSkip(name, SkipReason{Reason: SkipReasonNotReady, Detail: "waiting on dependencies", BlockedBy: blockers})
			continue
		}
		if len(result.Modules) >= maxBatch {
			detail := "batch full"
			if req.MaxParallel > 0 {
				detail = fmt.Sprintf("max parallel %d reached", req.MaxParallel)
			}
			result.addSkip(name, SkipReason{Reason: SkipReasonConcurrency, Detail: detail})
			continue
		}
		result.Modules = append(result.Modules, name)
	}
	return result, nil
}

// Plan drives Runnable from an empty build until every module is complete,
// assuming each batch finishes before the next starts.
func (s *Scheduler) Plan(maxParallel int) ([][]string, error) {
	var completed []string
	var batches [][]string
	for {
		batch, err := s.Runnable(RunnableRequest{Completed: completed, MaxParallel: maxParallel})
		if err != nil {
			return nil, err
		}
		if batch.Done {
			return batches, nil
		}
		if len(batch.Modules) == 0 {
			return nil, fmt.Errorf("scheduler: no runnable modules with %d of %d complete", len(completed), len(s.order))
		}
		batches = append(batches, batch.Modules)
		completed = append(completed, batch.Modules...)
	}
}

func (s *Scheduler) blockers(name string, completed map[string]struct{}) []string {
	var blockers []string
	for _, dep := range s.graph.DependenciesOf(name) {
		if _, ok := completed[dep]; !ok {
			blockers = append(blockers, dep)
		}
	}
	return blockers
}

func (req RunnableRequest) batchLimit(queueLen int, runningCount int) int {
	limit := req.BatchSize
	if limit <= 0 || limit > queueLen {
		limit = queueLen
	}
	if req.MaxParallel > 0 {
		remaining := req.MaxParallel - runningCount
		if remaining <= 0 {
			return 0
		}
		if limit == 0 || limit > remaining {
			limit = remaining
		}
	}
	return limit
}

func (b *RunnableBatch) addSkip(name string, reason SkipReason) {
	if name == "" {
		return
	}
	if b.Skipped == nil {
		b.Skipped = make(map[string]SkipReason)
	}
	b.Skipped[name] = reason
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}
