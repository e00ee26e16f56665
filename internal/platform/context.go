package platform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Configuration selects the optimisation/debug profile of a build.
type Configuration string

const (
	ConfigDebug       Configuration = "debug"
	ConfigDevelopment Configuration = "development"
	ConfigTest        Configuration = "test"
	ConfigShipping    Configuration = "shipping"
)

// ParseConfiguration maps user input to a Configuration. "release" is an
// alias for development; an empty string selects development.
func ParseConfiguration(value string) (Configuration, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "development", "release":
		return ConfigDevelopment, nil
	case "debug":
		return ConfigDebug, nil
	case "test":
		return ConfigTest, nil
	case "shipping":
		return ConfigShipping, nil
	}
	return "", fmt.Errorf("platform: unknown configuration %q", value)
}

// Context is the explicit build context of one resolution request. Nothing
// in the resolver reads ambient or global state; everything a condition may
// reference lives here.
type Context struct {
	Platform      string
	Configuration Configuration
	Flags         map[string]bool
	Target        string
	TargetType    string
	EngineVersion string
	// Groups lists the platform groups (Desktop, Unix, ...) the platform
	// belongs to.
	Groups []string
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	clone := c
	if len(c.Flags) > 0 {
		clone.Flags = make(map[string]bool, len(c.Flags))
		for key, value := range c.Flags {
			clone.Flags[key] = value
		}
	} else {
		clone.Flags = nil
	}
	if len(c.Groups) > 0 {
		clone.Groups = append([]string(nil), c.Groups...)
	}
	return clone
}

// WithFlags returns a copy of the context with flags merged over the
// existing ones.
func (c Context) WithFlags(flags map[string]bool) Context {
	clone := c.Clone()
	if len(flags) == 0 {
		return clone
	}
	if clone.Flags == nil {
		clone.Flags = make(map[string]bool, len(flags))
	}
	for key, value := range flags {
		clone.Flags[key] = value
	}
	return clone
}

// Validate ensures the context can drive a resolution.
func (c Context) Validate() error {
	if strings.TrimSpace(c.Platform) == "" {
		return fmt.Errorf("platform: platform is required")
	}
	if _, err := ParseConfiguration(string(c.Configuration)); err != nil {
		return err
	}
	if c.EngineVersion != "" {
		if _, err := semver.NewVersion(c.EngineVersion); err != nil {
			return fmt.Errorf("platform: engine version %q: %w", c.EngineVersion, err)
		}
	}
	for key := range c.Flags {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("platform: empty flag name")
		}
	}
	return nil
}

// InGroup reports whether the context platform belongs to group. A platform
// is always a member of its own group.
func (c Context) InGroup(group string) bool {
	if strings.EqualFold(group, c.Platform) {
		return true
	}
	for _, candidate := range c.Groups {
		if strings.EqualFold(candidate, group) {
			return true
		}
	}
	return false
}

// Key renders a stable identifier such as "Linux/development/Editor
// [with_editor]" for logs and metrics.
func (c Context) Key() string {
	key := c.Platform + "/" + string(c.configuration())
	if c.Target != "" {
		key += "/" + c.Target
	}
	var enabled []string
	for name, on := range c.Flags {
		if on {
			enabled = append(enabled, name)
		}
	}
	if len(enabled) > 0 {
		sort.Strings(enabled)
		key += " [" + strings.Join(enabled, ",") + "]"
	}
	return key
}

func (c Context) configuration() Configuration {
	cfg, err := ParseConfiguration(string(c.Configuration))
	if err != nil {
		return c.Configuration
	}
	return cfg
}
