package descriptors

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/modgraph/internal/registry"
	"github.com/kingrea/modgraph/internal/report"
)

// Format identifies how a descriptor file is decoded.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
	FormatGo   Format = "go"
)

// DetectFormat reports the descriptor format of a file name, or "" when the
// file is not a descriptor.
func DetectFormat(name string) Format {
	lower := strings.ToLower(filepath.Base(name))
	switch {
	case isModuleYAML(lower), isTargetYAML(lower):
		return FormatYAML
	case strings.HasSuffix(lower, ".hcl"):
		return FormatHCL
	case strings.HasSuffix(lower, ".build.go"):
		return FormatGo
	}
	return ""
}

// Discover recursively searches dirs for descriptor files and returns their
// paths sorted. Missing directories are treated as empty; hidden directories
// are skipped.
func Discover(dirs ...string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string
	for _, dir := range dirs {
		root := strings.TrimSpace(dir)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if DetectFormat(d.Name()) == "" {
				return nil
			}
			clean := filepath.Clean(path)
			if _, dup := seen[clean]; dup {
				return nil
			}
			seen[clean] = struct{}{}
			files = append(files, clean)
			return nil
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("descriptors: walk %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile decodes one descriptor file according to its format.
func LoadFile(path string) (Set, error) {
	switch DetectFormat(path) {
	case FormatYAML:
		return LoadYAMLFile(path)
	case FormatHCL:
		return LoadHCLFile(path)
	case FormatGo:
		return LoadGoFile(path)
	}
	return Set{}, fmt.Errorf("descriptors: %s has no known descriptor extension", path)
}

// LoadDirs discovers and decodes every descriptor under dirs. Decoding
// failures are collected into the returned report rather than aborting, so
// one broken file does not hide the others.
func LoadDirs(dirs ...string) (Set, *report.Report, error) {
	files, err := Discover(dirs...)
	if err != nil {
		return Set{}, nil, err
	}
	rep := report.New()
	var set Set
	for _, file := range files {
		loaded, err := LoadFile(file)
		if err != nil {
			rep.Add(&LoadError{Path: file, Err: err})
			continue
		}
		set.Merge(loaded)
	}
	return set, rep, nil
}

// RegisterAll registers every descriptor of set into reg. Duplicate and
// invalid declarations are collected in the report; the first declaration
// of a name wins.
func RegisterAll(reg *registry.Registry, set Set) *report.Report {
	rep := report.New()
	if reg == nil {
		rep.Add(fmt.Errorf("descriptors: registry is required"))
		return rep
	}
	for _, file := range set.Modules {
		desc := file.Descriptor
		if desc.Source == "" {
			desc.Source = file.Path
		}
		if err := reg.Register(desc); err != nil {
			rep.Add(err)
		}
	}
	for _, file := range set.Targets {
		target := file.Descriptor
		if target.Source == "" {
			target.Source = file.Path
		}
		if err := reg.RegisterTarget(target); err != nil {
			rep.Add(err)
		}
	}
	return rep
}

// LoadError reports a descriptor file that could not be decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Diagnostic implements report.Diagnoser.
func (e *LoadError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindInvalidDescriptor, Module: e.Path, Message: e.Error()}
}
