package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/modgraph/internal/descriptor"
	"github.com/kingrea/modgraph/internal/graph"
	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/metrics"
	"github.com/kingrea/modgraph/internal/platform"
	"github.com/kingrea/modgraph/internal/registry"
	"github.com/kingrea/modgraph/internal/report"
)

// Request asks for the build order of one platform context. When Target is
// set only the modules reachable from the target's roots are resolved.
type Request struct {
	Target  string
	Context platform.Context
}

// Result is the outcome of one request. Order is nil whenever the report
// carries an error; a partial order is never returned.
type Result struct {
	Request Request
	// Context is the effective context after target flags were merged.
	Context  platform.Context
	Order    graph.BuildOrder
	Graph    *graph.DependencyGraph
	Report   *report.Report
	Excluded map[string]string
	Duration time.Duration
}

// OK reports whether the resolution produced a build order.
func (r Result) OK() bool {
	return r.Report != nil && !r.Report.HasErrors() && r.Order != nil
}

// Err returns every error of the report joined, or nil.
func (r Result) Err() error {
	return r.Report.Err()
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithExternals marks dependency names matching the path.Match patterns as
// system libraries: recorded, never graphed.
func WithExternals(patterns ...string) Option {
	return func(r *Resolver) {
		r.externals = append(r.externals, patterns...)
	}
}

// WithLogbook journals every resolution to book.
func WithLogbook(book *logbook.Logbook) Option {
	return func(r *Resolver) {
		r.book = book
	}
}

// WithMetrics records every resolution on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Resolver) {
		r.metrics = rec
	}
}

// WithFlagDefaults sets the flag values every request starts from. Target
// flags and then request flags are merged over them, so a declared flag that
// nothing sets still evaluates to its default.
func WithFlagDefaults(flags map[string]bool) Option {
	return func(r *Resolver) {
		if r.flagDefaults == nil {
			r.flagDefaults = make(map[string]bool, len(flags))
		}
		for name, on := range flags {
			r.flagDefaults[name] = on
		}
	}
}

// WithParallelism caps how many requests ResolveAll runs at once. Values <= 0
// disable the limit.
func WithParallelism(n int) Option {
	return func(r *Resolver) {
		r.parallelism = n
	}
}

// Resolver turns registered descriptors into build orders. The registry is
// sealed on first use and only read afterwards, so one Resolver may serve
// concurrent requests.
type Resolver struct {
	registry     *registry.Registry
	externals    []string
	flagDefaults map[string]bool
	book         *logbook.Logbook
	metrics      *metrics.Recorder
	parallelism  int
}

// New constructs a resolver over reg.
func New(reg *registry.Registry, opts ...Option) (*Resolver, error) {
	if reg == nil {
		return nil, fmt.Errorf("resolver: registry is required")
	}
	r := &Resolver{registry: reg}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Resolve orders every registered module for pctx.
func (r *Resolver) Resolve(pctx platform.Context) Result {
	return r.ResolveRequest(Request{Context: pctx})
}

// ResolveTarget orders the modules reachable from the named target.
func (r *Resolver) ResolveTarget(name string, pctx platform.Context) Result {
	return r.ResolveRequest(Request{Target: name, Context: pctx})
}

// ResolveAll runs independent requests concurrently against the sealed
// registry. Results are returned in request order. Cancelling ctx stops
// requests that have not started yet.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request) ([]Result, error) {
	r.registry.Seal()
	results := make([]Result, len(reqs))
	group, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		group.SetLimit(r.parallelism)
	}
	for idx, req := range reqs {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[idx] = r.ResolveRequest(req)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	return results, nil
}

// ResolveRequest runs the full pipeline for one request: filter every
// descriptor, narrow to the target closure, build the graph, reject cycles
// and sort. Non-cyclic failures are aggregated in the report; a cycle
// replaces them.
func (r *Resolver) ResolveRequest(req Request) Result {
	start := time.Now()
	r.registry.Seal()
	result := Result{Request: req, Context: r.requestContext(req.Context), Report: report.New()}
	rep := result.Report

	var roots []string
	if req.Target != "" {
		target, err := r.registry.LookupTarget(req.Target)
		if err != nil {
			rep.Add(err)
			return r.finish(result, start)
		}
		result.Context = r.targetContext(target, req.Context)
		roots = target.Modules
		r.scope(result.Context).Info("target %s (%s) roots=%s flags=%s",
			target.Name, target.Type, strings.Join(roots, ","), strings.Join(target.FlagNames(), ","))
		if err := checkTarget(target, result.Context); err != nil {
			rep.Add(err)
			return r.finish(result, start)
		}
	}

	filter, err := platform.NewFilter(result.Context)
	if err != nil {
		rep.Add(err)
		return r.finish(result, start)
	}

	resolved := make(map[string]platform.ResolvedModule)
	failed := make(map[string]error)
	for _, desc := range r.registry.Descriptors() {
		mod, err := filter.Resolve(desc)
		resolved[desc.Name] = mod
		if err != nil {
			failed[desc.Name] = err
		}
	}

	scope := r.closure(req.Target, roots, resolved, rep)
	modules := make([]platform.ResolvedModule, 0, len(scope))
	var failedNames []string
	for _, name := range scope {
		mod := resolved[name]
		if err, ok := failed[name]; ok {
			rep.Add(err)
			failedNames = append(failedNames, name)
			continue
		}
		if mod.Excluded {
			if result.Excluded == nil {
				result.Excluded = map[string]string{}
			}
			result.Excluded[name] = mod.ExcludedReason
		}
		for _, warning := range mod.Warnings {
			rep.Warn(report.KindAmbiguousDependency, name, fmt.Sprintf("%s: %s", name, warning))
		}
		modules = append(modules, mod)
	}

	g, errs := graph.Build(modules, graph.BuildOptions{
		Externals: r.externals,
		Platform:  result.Context.Platform,
		Failed:    failedNames,
	})
	result.Graph = g
	for _, err := range errs {
		rep.Add(err)
	}
	if err := g.DetectCycle(); err != nil {
		rep.SetFatal(err)
		return r.finish(result, start)
	}
	if rep.HasErrors() {
		return r.finish(result, start)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		rep.Add(err)
		return r.finish(result, start)
	}
	result.Order = order
	return r.finish(result, start)
}

// closure returns the sorted names in scope for the request. Without roots
// every registered module is in scope; otherwise the walk follows hard and
// dynamic dependencies from the roots. Unknown roots are reported.
func (r *Resolver) closure(target string, roots []string, resolved map[string]platform.ResolvedModule, rep *report.Report) []string {
	if roots == nil {
		names := make([]string, 0, len(resolved))
		for name := range resolved {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	seen := map[string]struct{}{}
	queue := make([]string, 0, len(roots))
	for _, root := range roots {
		mod, ok := resolved[root]
		if !ok {
			rep.Add(&registry.UnknownModuleError{Name: root, Referrer: "target " + target})
			continue
		}
		if mod.Excluded {
			rep.Add(&graph.UnresolvedDependencyError{Module: target, Dependency: root, Reason: mod.ExcludedReason})
			continue
		}
		queue = append(queue, root)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mod := resolved[name]
		for _, dep := range append(mod.HardDependencies(), mod.Dynamic...) {
			if _, known := resolved[dep]; known {
				queue = append(queue, dep)
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) finish(result Result, start time.Time) Result {
	result.Duration = time.Since(start)
	scope := r.scope(result.Context)
	outcome := metrics.OutcomeOK
	switch {
	case result.Report.Fatal() != nil:
		outcome = metrics.OutcomeCycle
	case result.Report.HasErrors():
		outcome = metrics.OutcomeError
	}
	counts := map[string]int{}
	for _, diag := range result.Report.Diagnostics() {
		counts[string(diag.Kind)]++
		if diag.Severity == report.SeverityWarning {
			scope.Warn("%s", diag.Message)
		} else {
			scope.Error("%s", diag.Message)
		}
	}
	if result.Order != nil {
		scope.Info("ordered %d modules in %s", len(result.Order), result.Duration.Round(time.Microsecond))
	} else {
		scope.Error("resolution failed: %s", result.Report.Summary())
	}
	r.metrics.Observe(metrics.Observation{
		Platform:    result.Context.Platform,
		Outcome:     outcome,
		Duration:    result.Duration,
		Ordered:     len(result.Order),
		Diagnostics: counts,
	})
	return result
}

func (r *Resolver) scope(pctx platform.Context) *logbook.Scope {
	if r.book == nil {
		return nil
	}
	return r.book.Scope(pctx.Key())
}

// requestContext seeds the resolver's flag defaults under the request flags.
func (r *Resolver) requestContext(pctx platform.Context) platform.Context {
	merged := pctx.Clone()
	merged.Flags = nil
	return merged.WithFlags(r.flagDefaults).WithFlags(pctx.Flags)
}

// targetContext applies the target to the request context. Flag precedence
// runs resolver defaults, then target flags, then request flags.
func (r *Resolver) targetContext(target descriptor.TargetDescriptor, pctx platform.Context) platform.Context {
	merged := pctx.Clone()
	merged.Flags = nil
	merged = merged.WithFlags(r.flagDefaults).WithFlags(target.Flags).WithFlags(pctx.Flags)
	merged.Target = target.Name
	merged.TargetType = string(target.Type)
	return merged
}

func checkTarget(target descriptor.TargetDescriptor, pctx platform.Context) error {
	if !target.AllowsPlatform(pctx.Platform) {
		return &TargetPlatformError{Target: target.Name, Platform: pctx.Platform, Allowed: target.Platforms}
	}
	cfg, err := platform.ParseConfiguration(string(pctx.Configuration))
	if err != nil {
		return err
	}
	if !target.AllowsConfiguration(string(cfg)) {
		return &TargetPlatformError{Target: target.Name, Configuration: string(cfg), Allowed: target.Configurations}
	}
	return nil
}
