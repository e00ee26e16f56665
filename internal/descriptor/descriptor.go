package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind classifies what a module descriptor builds.
type Kind string

const (
	KindEngine   Kind = "engine"
	KindPlugin   Kind = "plugin"
	KindProgram  Kind = "program"
	KindExternal Kind = "external"
)

// Valid reports whether the kind is one of the known module kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEngine, KindPlugin, KindProgram, KindExternal:
		return true
	}
	return false
}

// ModuleDescriptor declares a named compilation unit and the modules it
// depends on. Descriptors are owned by the registry and treated as immutable
// once parsed; use Clone before handing one to code that may mutate it.
type ModuleDescriptor struct {
	Name          string            `json:"name" yaml:"name"`
	Kind          Kind              `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	DependencySet `yaml:",inline"`
	Platforms     []string          `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	EngineVersion string            `json:"engine_version,omitempty" yaml:"engine_version,omitempty"`
	Rules         []ConditionalRule `json:"rules,omitempty" yaml:"rules,omitempty"`

	// Source records where the descriptor was declared (file path, or
	// path#index for generated descriptors).
	Source string `json:"-" yaml:"-"`
}

// DependencySet groups the three dependency lists a descriptor or rule may
// declare. Public and private dependencies constrain build order; dynamic
// dependencies are loaded at runtime and only recorded.
type DependencySet struct {
	Public  []string `json:"public,omitempty" yaml:"public,omitempty"`
	Private []string `json:"private,omitempty" yaml:"private,omitempty"`
	Dynamic []string `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
}

// ConditionalRule adds and removes dependency names when its condition holds.
// An empty When always applies. Add is applied before Remove.
type ConditionalRule struct {
	When   string        `json:"when,omitempty" yaml:"when,omitempty"`
	Add    DependencySet `json:"add,omitempty" yaml:"add,omitempty"`
	Remove DependencySet `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d ModuleDescriptor) Clone() ModuleDescriptor {
	clone := ModuleDescriptor{
		Name:          d.Name,
		Kind:          d.Kind,
		Description:   d.Description,
		DependencySet: d.DependencySet.Clone(),
		Platforms:     cloneStrings(d.Platforms),
		EngineVersion: d.EngineVersion,
		Source:        d.Source,
	}
	if len(d.Rules) > 0 {
		clone.Rules = make([]ConditionalRule, len(d.Rules))
		for i, rule := range d.Rules {
			clone.Rules[i] = rule.Clone()
		}
	}
	return clone
}

// Normalized returns a trimmed copy with defaults applied. Kind defaults to
// engine.
func (d ModuleDescriptor) Normalized() ModuleDescriptor {
	clone := ModuleDescriptor{
		Name:          strings.TrimSpace(d.Name),
		Kind:          Kind(strings.ToLower(strings.TrimSpace(string(d.Kind)))),
		Description:   strings.TrimSpace(d.Description),
		DependencySet: d.DependencySet.normalized(),
		Platforms:     trimStrings(d.Platforms),
		EngineVersion: strings.TrimSpace(d.EngineVersion),
		Source:        d.Source,
	}
	if clone.Kind == "" {
		clone.Kind = KindEngine
	}
	if len(d.Rules) > 0 {
		clone.Rules = make([]ConditionalRule, len(d.Rules))
		for i, rule := range d.Rules {
			clone.Rules[i] = rule.normalized()
		}
	}
	return clone
}

// Validate ensures the descriptor is self-consistent. It rejects duplicate
// names inside one list, names declared both public and private, and a
// module listing itself.
func (d ModuleDescriptor) Validate() error {
	n := d.Normalized()
	if n.Name == "" {
		return fmt.Errorf("descriptor: name is required")
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("descriptor %s: unknown kind %q", n.Name, n.Kind)
	}
	if err := n.DependencySet.validate(); err != nil {
		return fmt.Errorf("descriptor %s: %w", n.Name, err)
	}
	for _, dep := range n.Public {
		if containsString(n.Private, dep) {
			return fmt.Errorf("descriptor %s: %s is declared both public and private", n.Name, dep)
		}
	}
	if n.DependencySet.Contains(n.Name) {
		return fmt.Errorf("descriptor %s: module depends on itself", n.Name)
	}
	if dup := firstDuplicate(n.Platforms); dup != "" {
		return fmt.Errorf("descriptor %s: duplicate platform %s", n.Name, dup)
	}
	if n.EngineVersion != "" {
		if _, err := semver.NewConstraint(n.EngineVersion); err != nil {
			return fmt.Errorf("descriptor %s: engine_version %q: %w", n.Name, n.EngineVersion, err)
		}
	}
	for idx, rule := range n.Rules {
		if err := rule.validate(); err != nil {
			return fmt.Errorf("descriptor %s rule[%d]: %w", n.Name, idx, err)
		}
	}
	return nil
}

// SupportsPlatform reports whether the descriptor may be built for platform.
// An empty allow list supports every platform.
func (d ModuleDescriptor) SupportsPlatform(platform string) bool {
	if len(d.Platforms) == 0 {
		return true
	}
	for _, candidate := range d.Platforms {
		if strings.EqualFold(candidate, platform) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the rule.
func (r ConditionalRule) Clone() ConditionalRule {
	return ConditionalRule{
		When:   r.When,
		Add:    r.Add.Clone(),
		Remove: r.Remove.Clone(),
	}
}

func (r ConditionalRule) normalized() ConditionalRule {
	return ConditionalRule{
		When:   strings.TrimSpace(r.When),
		Add:    r.Add.normalized(),
		Remove: r.Remove.normalized(),
	}
}

func (r ConditionalRule) validate() error {
	if r.Add.Empty() && r.Remove.Empty() {
		return fmt.Errorf("add or remove is required")
	}
	if err := r.Add.validate(); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := r.Remove.validate(); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the set.
func (s DependencySet) Clone() DependencySet {
	return DependencySet{
		Public:  cloneStrings(s.Public),
		Private: cloneStrings(s.Private),
		Dynamic: cloneStrings(s.Dynamic),
	}
}

// Empty reports whether the set names no dependencies.
func (s DependencySet) Empty() bool {
	return len(s.Public) == 0 && len(s.Private) == 0 && len(s.Dynamic) == 0
}

// Contains reports whether name appears in any of the lists.
func (s DependencySet) Contains(name string) bool {
	return containsString(s.Public, name) || containsString(s.Private, name) || containsString(s.Dynamic, name)
}

// Names returns every distinct name in the set, sorted.
func (s DependencySet) Names() []string {
	set := map[string]struct{}{}
	for _, list := range [][]string{s.Public, s.Private, s.Dynamic} {
		for _, name := range list {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s DependencySet) normalized() DependencySet {
	return DependencySet{
		Public:  trimStrings(s.Public),
		Private: trimStrings(s.Private),
		Dynamic: trimStrings(s.Dynamic),
	}
}

func (s DependencySet) validate() error {
	lists := []struct {
		label string
		names []string
	}{
		{"public", s.Public},
		{"private", s.Private},
		{"dynamic", s.Dynamic},
	}
	for _, list := range lists {
		if dup := firstDuplicate(list.names); dup != "" {
			return fmt.Errorf("%s dependencies list %s more than once", list.label, dup)
		}
	}
	return nil
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			return value
		}
		seen[value] = struct{}{}
	}
	return ""
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}

func trimStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
