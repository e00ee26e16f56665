package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kingrea/modgraph/internal/descriptor"
)

// ErrSealed is returned when registering into a registry that a resolution
// pass has already sealed.
var ErrSealed = errors.New("registry: sealed, no further registrations accepted")

// Registry maintains declared module and target descriptors. Once sealed it
// is read-only and safe to share across concurrent resolutions.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]descriptor.ModuleDescriptor
	targets map[string]descriptor.TargetDescriptor
	sealed  bool
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		modules: map[string]descriptor.ModuleDescriptor{},
		targets: map[string]descriptor.TargetDescriptor{},
	}
}

// Register validates and stores a module descriptor. Returns a
// *DuplicateModuleError if the name already exists; the first registration
// is kept.
func (r *Registry) Register(desc descriptor.ModuleDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	normalized := desc.Normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if existing, exists := r.modules[normalized.Name]; exists {
		return &DuplicateModuleError{Name: normalized.Name, First: existing.Source, Second: normalized.Source}
	}
	r.modules[normalized.Name] = normalized
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(desc descriptor.ModuleDescriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// Lookup returns a copy of the named descriptor.
func (r *Registry) Lookup(name string) (descriptor.ModuleDescriptor, error) {
	r.mu.RLock()
	desc, ok := r.modules[name]
	r.mu.RUnlock()
	if !ok {
		return descriptor.ModuleDescriptor{}, &UnknownModuleError{Name: name}
	}
	return desc.Clone(), nil
}

// Has reports whether a module with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// Seal freezes the registry. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Names returns a sorted list of registered module names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns copies of every module descriptor sorted by name.
func (r *Registry) Descriptors() []descriptor.ModuleDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]descriptor.ModuleDescriptor, 0, len(r.modules))
	for _, desc := range r.modules {
		out = append(out, desc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns an unsealed deep copy that can be extended without
// affecting r.
func (r *Registry) Snapshot() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := New()
	for name, desc := range r.modules {
		clone.modules[name] = desc.Clone()
	}
	for name, target := range r.targets {
		clone.targets[name] = target.Clone()
	}
	return clone
}

// RegisterTarget validates and stores a target descriptor.
func (r *Registry) RegisterTarget(target descriptor.TargetDescriptor) error {
	if err := target.Validate(); err != nil {
		return err
	}
	normalized := target.Normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if existing, exists := r.targets[normalized.Name]; exists {
		return &DuplicateTargetError{Name: normalized.Name, First: existing.Source, Second: normalized.Source}
	}
	r.targets[normalized.Name] = normalized
	return nil
}

// LookupTarget returns a copy of the named target.
func (r *Registry) LookupTarget(name string) (descriptor.TargetDescriptor, error) {
	r.mu.RLock()
	target, ok := r.targets[name]
	r.mu.RUnlock()
	if !ok {
		return descriptor.TargetDescriptor{}, &UnknownTargetError{Name: name}
	}
	return target.Clone(), nil
}

// Targets returns copies of every target sorted by name.
func (r *Registry) Targets() []descriptor.TargetDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]descriptor.TargetDescriptor, 0, len(r.targets))
	for _, target := range r.targets {
		out = append(out, target.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// String implements fmt.Stringer for debugging output.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("registry{modules=%d targets=%d sealed=%t}", len(r.modules), len(r.targets), r.sealed)
}
