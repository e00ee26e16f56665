package platform

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/kingrea/modgraph/internal/descriptor"
)

// ResolvedModule is a descriptor with every conditional rule applied for one
// platform context. Its dependency sets are final.
type ResolvedModule struct {
	Name    string
	Kind    descriptor.Kind
	Public  []string
	Private []string
	Dynamic []string
	// Excluded marks a module whose platform allow list rules out the
	// context platform. Excluded modules are not graphed.
	Excluded       bool
	ExcludedReason string
	Source         string
	// Warnings holds non-fatal findings such as a name declared both public
	// and private by the rules.
	Warnings []string
}

// HardDependencies returns the public then private dependencies. These are
// the names that constrain build order.
func (m ResolvedModule) HardDependencies() []string {
	out := make([]string, 0, len(m.Public)+len(m.Private))
	out = append(out, m.Public...)
	out = append(out, m.Private...)
	return out
}

// Filter applies conditional rules for a single platform context.
type Filter struct {
	ctx    Context
	eval   *evaluator
	engine *semver.Version
}

// NewFilter validates the context and prepares a filter for it.
func NewFilter(ctx Context) (*Filter, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{ctx: ctx.Clone(), eval: newEvaluator(ctx)}
	if ctx.EngineVersion != "" {
		v, err := semver.NewVersion(ctx.EngineVersion)
		if err != nil {
			return nil, fmt.Errorf("platform: engine version: %w", err)
		}
		f.engine = v
	}
	return f, nil
}

// Resolve applies the platform context to desc. See Filter.Resolve.
func Resolve(desc descriptor.ModuleDescriptor, ctx Context) (ResolvedModule, error) {
	f, err := NewFilter(ctx)
	if err != nil {
		return ResolvedModule{}, err
	}
	return f.Resolve(desc)
}

// Context returns a copy of the filter's context.
func (f *Filter) Context() Context {
	return f.ctx.Clone()
}

// Resolve applies each rule of desc in declaration order. Within a rule the
// Add lists apply before the Remove lists; across rules the last write to a
// name wins. Every failing condition of the module is reported, joined.
func (f *Filter) Resolve(desc descriptor.ModuleDescriptor) (ResolvedModule, error) {
	desc = desc.Normalized()
	resolved := ResolvedModule{Name: desc.Name, Kind: desc.Kind, Source: desc.Source}
	if !desc.SupportsPlatform(f.ctx.Platform) {
		resolved.Excluded = true
		resolved.ExcludedReason = fmt.Sprintf("not available on %s", f.ctx.Platform)
		return resolved, nil
	}

	var errs []error
	if err := f.checkEngine(desc); err != nil {
		errs = append(errs, err)
	}

	public := newOrderedSet(desc.Public)
	private := newOrderedSet(desc.Private)
	dynamic := newOrderedSet(desc.Dynamic)
	for idx, rule := range desc.Rules {
		ok, err := f.eval.eval(rule.When)
		if err != nil {
			errs = append(errs, &ConditionEvaluationError{Module: desc.Name, Rule: idx, When: rule.When, Err: err})
			continue
		}
		if !ok {
			continue
		}
		public.add(rule.Add.Public...)
		private.add(rule.Add.Private...)
		dynamic.add(rule.Add.Dynamic...)
		public.remove(rule.Remove.Public...)
		private.remove(rule.Remove.Private...)
		dynamic.remove(rule.Remove.Dynamic...)
	}

	for _, name := range public.items {
		if private.has(name) {
			private.remove(name)
			resolved.Warnings = append(resolved.Warnings, fmt.Sprintf("%s is both public and private; kept as public", name))
		}
	}
	for _, name := range dynamic.slice() {
		if public.has(name) || private.has(name) {
			dynamic.remove(name)
		}
	}
	if public.has(desc.Name) || private.has(desc.Name) || dynamic.has(desc.Name) {
		errs = append(errs, &SelfDependencyError{Module: desc.Name})
	}

	resolved.Public = public.slice()
	resolved.Private = private.slice()
	resolved.Dynamic = dynamic.slice()
	if len(errs) > 0 {
		return resolved, errors.Join(errs...)
	}
	return resolved, nil
}

func (f *Filter) checkEngine(desc descriptor.ModuleDescriptor) error {
	if desc.EngineVersion == "" || f.engine == nil {
		return nil
	}
	constraint, err := semver.NewConstraint(desc.EngineVersion)
	if err != nil {
		return fmt.Errorf("platform: %s engine_version: %w", desc.Name, err)
	}
	if !constraint.Check(f.engine) {
		return &IncompatibleEngineError{Module: desc.Name, Constraint: desc.EngineVersion, EngineVersion: f.engine.String()}
	}
	return nil
}

// orderedSet keeps insertion order. Re-adding an existing name keeps its
// position; removing drops it.
type orderedSet struct {
	items []string
}

func newOrderedSet(initial []string) *orderedSet {
	s := &orderedSet{}
	s.add(initial...)
	return s
}

func (s *orderedSet) add(names ...string) {
	for _, name := range names {
		if !s.has(name) {
			s.items = append(s.items, name)
		}
	}
}

func (s *orderedSet) remove(names ...string) {
	for _, name := range names {
		for i, item := range s.items {
			if item == name {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
}

func (s *orderedSet) has(name string) bool {
	for _, item := range s.items {
		if item == name {
			return true
		}
	}
	return false
}

func (s *orderedSet) slice() []string {
	if len(s.items) == 0 {
		return nil
	}
	return append([]string(nil), s.items...)
}
