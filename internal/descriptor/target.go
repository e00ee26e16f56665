package descriptor

import (
	"fmt"
	"sort"
	"strings"
)

// TargetType classifies the product a target builds.
type TargetType string

const (
	TargetGame    TargetType = "game"
	TargetEditor  TargetType = "editor"
	TargetClient  TargetType = "client"
	TargetServer  TargetType = "server"
	TargetProgram TargetType = "program"
)

// Valid reports whether the type is one of the known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetGame, TargetEditor, TargetClient, TargetServer, TargetProgram:
		return true
	}
	return false
}

// TargetDescriptor declares a top-level build product composed of root
// modules. Resolving a target only considers modules reachable from Modules.
type TargetDescriptor struct {
	Name           string          `json:"name" yaml:"name"`
	Type           TargetType      `json:"type,omitempty" yaml:"type,omitempty"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Modules        []string        `json:"modules" yaml:"modules"`
	Platforms      []string        `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	Configurations []string        `json:"configurations,omitempty" yaml:"configurations,omitempty"`
	Flags          map[string]bool `json:"flags,omitempty" yaml:"flags,omitempty"`

	Source string `json:"-" yaml:"-"`
}

// Clone returns a deep copy of the target.
func (t TargetDescriptor) Clone() TargetDescriptor {
	clone := TargetDescriptor{
		Name:           t.Name,
		Type:           t.Type,
		Description:    t.Description,
		Modules:        cloneStrings(t.Modules),
		Platforms:      cloneStrings(t.Platforms),
		Configurations: cloneStrings(t.Configurations),
		Source:         t.Source,
	}
	if len(t.Flags) > 0 {
		clone.Flags = make(map[string]bool, len(t.Flags))
		for key, value := range t.Flags {
			clone.Flags[key] = value
		}
	}
	return clone
}

// Normalized trims the target and defaults Type to game.
func (t TargetDescriptor) Normalized() TargetDescriptor {
	clone := TargetDescriptor{
		Name:        strings.TrimSpace(t.Name),
		Type:        TargetType(strings.ToLower(strings.TrimSpace(string(t.Type)))),
		Description: strings.TrimSpace(t.Description),
		Modules:     trimStrings(t.Modules),
		Platforms:   trimStrings(t.Platforms),
		Source:      t.Source,
	}
	if clone.Type == "" {
		clone.Type = TargetGame
	}
	for _, cfg := range trimStrings(t.Configurations) {
		clone.Configurations = append(clone.Configurations, strings.ToLower(cfg))
	}
	if len(t.Flags) > 0 {
		clone.Flags = make(map[string]bool, len(t.Flags))
		for key, value := range t.Flags {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Flags[trimmed] = value
		}
	}
	return clone
}

// Validate ensures the target names at least one unique root module.
func (t TargetDescriptor) Validate() error {
	n := t.Normalized()
	if n.Name == "" {
		return fmt.Errorf("target: name is required")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("target %s: unknown type %q", n.Name, n.Type)
	}
	if len(n.Modules) == 0 {
		return fmt.Errorf("target %s: at least one module is required", n.Name)
	}
	if dup := firstDuplicate(n.Modules); dup != "" {
		return fmt.Errorf("target %s: module %s listed more than once", n.Name, dup)
	}
	if dup := firstDuplicate(n.Platforms); dup != "" {
		return fmt.Errorf("target %s: duplicate platform %s", n.Name, dup)
	}
	return nil
}

// AllowsPlatform reports whether the target may be built for platform.
func (t TargetDescriptor) AllowsPlatform(platform string) bool {
	return allowListed(t.Platforms, platform)
}

// AllowsConfiguration reports whether the target may be built in the given
// configuration.
func (t TargetDescriptor) AllowsConfiguration(configuration string) bool {
	return allowListed(t.Configurations, configuration)
}

// FlagNames returns the target's flag names, sorted.
func (t TargetDescriptor) FlagNames() []string {
	names := make([]string, 0, len(t.Flags))
	for name := range t.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func allowListed(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, candidate := range list {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
