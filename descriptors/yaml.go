package descriptors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/modgraph/internal/descriptor"
)

// ModuleFile pairs a parsed module descriptor with its on-disk source.
type ModuleFile struct {
	Descriptor descriptor.ModuleDescriptor
	Path       string
}

// TargetFile pairs a parsed target descriptor with its on-disk source.
type TargetFile struct {
	Descriptor descriptor.TargetDescriptor
	Path       string
}

// Set collects the descriptors loaded from one or more files.
type Set struct {
	Modules []ModuleFile
	Targets []TargetFile
}

// Merge appends other to s.
func (s *Set) Merge(other Set) {
	s.Modules = append(s.Modules, other.Modules...)
	s.Targets = append(s.Targets, other.Targets...)
}

// Len returns the number of loaded descriptors.
func (s Set) Len() int {
	return len(s.Modules) + len(s.Targets)
}

// ParseModuleYAML decodes and validates every module document in data. A
// file may hold several documents separated by "---". Unknown keys are
// rejected.
func ParseModuleYAML(data []byte) ([]descriptor.ModuleDescriptor, error) {
	var out []descriptor.ModuleDescriptor
	err := decodeDocuments(data, func(dec *yaml.Decoder) error {
		var desc descriptor.ModuleDescriptor
		if err := dec.Decode(&desc); err != nil {
			return err
		}
		if err := desc.Validate(); err != nil {
			return err
		}
		out = append(out, desc.Normalized())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTargetYAML decodes and validates every target document in data.
func ParseTargetYAML(data []byte) ([]descriptor.TargetDescriptor, error) {
	var out []descriptor.TargetDescriptor
	err := decodeDocuments(data, func(dec *yaml.Decoder) error {
		var target descriptor.TargetDescriptor
		if err := dec.Decode(&target); err != nil {
			return err
		}
		if err := target.Validate(); err != nil {
			return err
		}
		out = append(out, target.Normalized())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDocuments(data []byte, decode func(*yaml.Decoder) error) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("descriptors: payload is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	for idx := 0; ; idx++ {
		err := decode(dec)
		if errors.Is(err, io.EOF) {
			if idx == 0 {
				return fmt.Errorf("descriptors: no documents found")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("document %d: %w", idx+1, err)
		}
	}
}

// LoadYAMLFile reads a *.module.yaml or *.target.yaml file.
func LoadYAMLFile(path string) (Set, error) {
	data, err := readRegularFile(path)
	if err != nil {
		return Set{}, err
	}
	clean := filepath.Clean(path)
	var set Set
	switch {
	case isTargetYAML(clean):
		targets, err := ParseTargetYAML(data)
		if err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", clean, err)
		}
		for idx, target := range targets {
			source := sourceName(clean, idx, len(targets))
			target.Source = source
			set.Targets = append(set.Targets, TargetFile{Descriptor: target, Path: source})
		}
	case isModuleYAML(clean):
		modules, err := ParseModuleYAML(data)
		if err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", clean, err)
		}
		for idx, mod := range modules {
			source := sourceName(clean, idx, len(modules))
			mod.Source = source
			set.Modules = append(set.Modules, ModuleFile{Descriptor: mod, Path: source})
		}
	default:
		return Set{}, fmt.Errorf("descriptors: %s is neither a .module.yaml nor a .target.yaml file", clean)
	}
	return set, nil
}

func readRegularFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("descriptors: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("descriptors: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptors: read %s: %w", path, err)
	}
	return data, nil
}

// sourceName tags descriptors of multi-document files as path#n.
func sourceName(path string, idx, total int) string {
	if total <= 1 {
		return path
	}
	return fmt.Sprintf("%s#%d", path, idx+1)
}

func isModuleYAML(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	return strings.HasSuffix(lower, ".module.yaml") || strings.HasSuffix(lower, ".module.yml")
}

func isTargetYAML(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	return strings.HasSuffix(lower, ".target.yaml") || strings.HasSuffix(lower, ".target.yml")
}
