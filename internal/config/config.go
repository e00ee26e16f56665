// internal/config/config.go
//
// This package handles configuration and the .modgraph directory structure.
// Every project that uses modgraph gets a .modgraph/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/modgraph/internal/platform"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".modgraph"

	defaultDescriptorDir = "descriptors"
	defaultPlatform      = "Linux"
)

const defaultProjectConfigYAML = `# modgraph project configuration
version: 1

# Directories scanned (recursively) for *.module.yaml, *.target.yaml, *.hcl
# and *.build.go descriptors. Relative paths resolve against the project root.
descriptors:
  - descriptors

# Dependency names matching these patterns are system libraries: recorded
# on the module but never graphed.
system_libraries:
  - "lib*"
  - "ws2_32"

# Context used when the CLI is run without -platform/-configuration.
defaults:
  platform: Linux
  configuration: development
  # engine_version: 5.3.0
  flags:
    with_editor: false

# Platform groups usable in rule conditions via in_group("Unix").
platforms:
  Linux: [Unix, Desktop]
  Mac: [Unix, Desktop, Apple]
  Win64: [Windows, Desktop]
  IOS: [Apple, Mobile]
  Android: [Unix, Mobile]

# Flags accepted on the command line. Listed flags that nothing sets evaluate
# to false. Leave empty to accept any flag.
known_flags:
  - with_editor
  - with_server_code
`

// Defaults captures the context applied when the CLI omits a setting.
type Defaults struct {
	Platform      string          `yaml:"platform"`
	Configuration string          `yaml:"configuration"`
	EngineVersion string          `yaml:"engine_version,omitempty"`
	Flags         map[string]bool `yaml:"flags,omitempty"`
}

// ProjectConfig models .modgraph/config.yaml.
type ProjectConfig struct {
	Version         int                 `yaml:"version"`
	Descriptors     []string            `yaml:"descriptors"`
	SystemLibraries []string            `yaml:"system_libraries,omitempty"`
	Defaults        Defaults            `yaml:"defaults"`
	Platforms       map[string][]string `yaml:"platforms,omitempty"`
	KnownFlags      []string            `yaml:"known_flags,omitempty"`
	MetricsFile     string              `yaml:"metrics_file,omitempty"`
}

// Config holds the runtime configuration for modgraph.
type Config struct {
	// ProjectDir is the directory modgraph runs against
	ProjectDir string

	// StateDir is ProjectDir/.modgraph
	StateDir string

	// ConfigPath overrides StateDir/config.yaml when set
	ConfigPath string

	Project ProjectConfig
}

// InitProjectDir creates the .modgraph directory structure in the given
// project directory and writes a commented default config if none exists.
//
// Structure created:
// .modgraph/
// ├── config.yaml
// └── logs/         <- resolution journal
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig loads the project configuration. configPath may be empty to use
// .modgraph/config.yaml; a missing file yields the defaults.
func NewConfig(projectDir, configPath string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, ProjectDirName),
		ConfigPath: strings.TrimSpace(configPath),
		Project:    defaultProjectConfig(),
	}
	cfg.Project.normalize(abs)
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return filepath.Join(c.StateDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the resolution journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "resolve.log")
}

// DescriptorDirs returns the absolute descriptor directories.
func (c *Config) DescriptorDirs() []string {
	return append([]string(nil), c.Project.Descriptors...)
}

// SystemLibraries returns the external library patterns.
func (c *Config) SystemLibraries() []string {
	return append([]string(nil), c.Project.SystemLibraries...)
}

// Groups returns the groups configured for platform, sorted.
func (c *Config) Groups(platformName string) []string {
	for name, groups := range c.Project.Platforms {
		if strings.EqualFold(name, platformName) {
			out := append([]string(nil), groups...)
			sort.Strings(out)
			return out
		}
	}
	return nil
}

// Platforms returns the configured platform names, sorted.
func (c *Config) Platforms() []string {
	names := make([]string, 0, len(c.Project.Platforms))
	for name := range c.Project.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContextOverrides carries the command-line values that take precedence over
// the configured defaults. Empty fields fall back to the defaults.
type ContextOverrides struct {
	Platform      string
	Configuration string
	EngineVersion string
	Flags         map[string]bool
}

// FlagDefaults returns the flag values every context starts from: each
// known flag off, then defaults.flags.
func (c *Config) FlagDefaults() map[string]bool {
	out := make(map[string]bool, len(c.Project.KnownFlags)+len(c.Project.Defaults.Flags))
	for _, name := range c.Project.KnownFlags {
		out[name] = false
	}
	for name, on := range c.Project.Defaults.Flags {
		out[name] = on
	}
	return out
}

// Context builds the platform context for one run: flag defaults first, then
// the overrides, then the platform's groups.
func (c *Config) Context(overrides ContextOverrides) (platform.Context, error) {
	if err := c.ValidateFlags(overrides.Flags); err != nil {
		return platform.Context{}, err
	}
	def := c.Project.Defaults
	pctx := platform.Context{
		Platform:      firstNonEmpty(overrides.Platform, def.Platform),
		EngineVersion: firstNonEmpty(overrides.EngineVersion, def.EngineVersion),
	}
	cfg, err := platform.ParseConfiguration(firstNonEmpty(overrides.Configuration, def.Configuration))
	if err != nil {
		return platform.Context{}, fmt.Errorf("config: %w", err)
	}
	pctx.Configuration = cfg
	pctx = pctx.WithFlags(c.FlagDefaults()).WithFlags(overrides.Flags)
	pctx.Groups = c.Groups(pctx.Platform)
	if err := pctx.Validate(); err != nil {
		return platform.Context{}, fmt.Errorf("config: %w", err)
	}
	return pctx, nil
}

// ValidateFlags rejects flags outside known_flags. An empty known_flags list
// accepts everything.
func (c *Config) ValidateFlags(flags map[string]bool) error {
	if len(c.Project.KnownFlags) == 0 {
		return nil
	}
	var unknown []string
	for name := range flags {
		if !contains(c.Project.KnownFlags, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("config: unknown flag(s) %s (known: %s)", strings.Join(unknown, ", "), strings.Join(c.Project.KnownFlags, ", "))
}

// SetDefaultPlatform updates the default platform and persists the value
// back to the project config.
func (c *Config) SetDefaultPlatform(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config: platform is required")
	}
	c.Project.Defaults.Platform = name
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && c.ConfigPath == "" {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:     1,
		Descriptors: []string{defaultDescriptorDir},
		Defaults: Defaults{
			Platform:      defaultPlatform,
			Configuration: string(platform.ConfigDevelopment),
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if len(pc.Descriptors) == 0 {
		pc.Descriptors = []string{defaultDescriptorDir}
	}
	if strings.TrimSpace(pc.Defaults.Platform) == "" {
		pc.Defaults.Platform = defaultPlatform
	}
	if strings.TrimSpace(pc.Defaults.Configuration) == "" {
		pc.Defaults.Configuration = string(platform.ConfigDevelopment)
	}
}

func (pc *ProjectConfig) normalize(base string) {
	for i, dir := range pc.Descriptors {
		pc.Descriptors[i] = resolvePath(base, dir)
	}
	pc.SystemLibraries = trimAll(pc.SystemLibraries)
	pc.KnownFlags = trimAll(pc.KnownFlags)
	pc.Defaults.Platform = strings.TrimSpace(pc.Defaults.Platform)
	pc.Defaults.Configuration = strings.ToLower(strings.TrimSpace(pc.Defaults.Configuration))
	pc.Defaults.EngineVersion = strings.TrimSpace(pc.Defaults.EngineVersion)
	pc.MetricsFile = resolvePath(base, pc.MetricsFile)
	for name, groups := range pc.Platforms {
		pc.Platforms[name] = trimAll(groups)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for i, dir := range pc.Descriptors {
		if dir == "" {
			return fmt.Errorf("descriptors[%d]: path is required", i)
		}
	}
	for i, pattern := range pc.SystemLibraries {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("system_libraries[%d]: %q: %w", i, pattern, err)
		}
	}
	if _, err := platform.ParseConfiguration(pc.Defaults.Configuration); err != nil {
		return fmt.Errorf("defaults.configuration: %w", err)
	}
	if pc.Defaults.EngineVersion != "" {
		if _, err := semver.NewVersion(pc.Defaults.EngineVersion); err != nil {
			return fmt.Errorf("defaults.engine_version: %w", err)
		}
	}
	if len(pc.KnownFlags) > 0 {
		for name := range pc.Defaults.Flags {
			if !contains(pc.KnownFlags, name) {
				return fmt.Errorf("defaults.flags: %s is not listed in known_flags", name)
			}
		}
	}
	for name := range pc.Platforms {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("platforms: empty platform name")
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.ProjectConfigPath()), 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
