package descriptors

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/kingrea/modgraph/internal/descriptor"
)

// hclDescriptorFile represents the top-level structure of a descriptor file
// for decoding:
//
//	module "Engine" {
//	  kind    = "engine"
//	  public  = ["Core"]
//	  private = ["Json"]
//	  rule {
//	    when = platform == "Linux"
//	    add { private = ["Pthread"] }
//	  }
//	}
//
//	target "Editor" {
//	  type    = "editor"
//	  modules = ["Launch"]
//	  flags   = { with_editor = true }
//	}
type hclDescriptorFile struct {
	Modules []*hclModule `hcl:"module,block"`
	Targets []*hclTarget `hcl:"target,block"`
}

type hclModule struct {
	Name          string     `hcl:"name,label"`
	Kind          string     `hcl:"kind,optional"`
	Description   string     `hcl:"description,optional"`
	Public        []string   `hcl:"public,optional"`
	Private       []string   `hcl:"private,optional"`
	Dynamic       []string   `hcl:"dynamic,optional"`
	Platforms     []string   `hcl:"platforms,optional"`
	EngineVersion string     `hcl:"engine_version,optional"`
	Rules         []*hclRule `hcl:"rule,block"`
}

type hclRule struct {
	// When is kept as an expression so the condition is stored as source
	// text and evaluated later against each platform context.
	When   hcl.Expression `hcl:"when,optional"`
	Add    *hclDeps       `hcl:"add,block"`
	Remove *hclDeps       `hcl:"remove,block"`
}

type hclDeps struct {
	Public  []string `hcl:"public,optional"`
	Private []string `hcl:"private,optional"`
	Dynamic []string `hcl:"dynamic,optional"`
}

type hclTarget struct {
	Name           string          `hcl:"name,label"`
	Type           string          `hcl:"type,optional"`
	Description    string          `hcl:"description,optional"`
	Modules        []string        `hcl:"modules"`
	Platforms      []string        `hcl:"platforms,optional"`
	Configurations []string        `hcl:"configurations,optional"`
	Flags          map[string]bool `hcl:"flags,optional"`
}

// ParseHCL decodes every module and target block of one HCL payload.
func ParseHCL(src []byte, filename string) (Set, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Set{}, fmt.Errorf("descriptors: parse %s: %w", filename, diags)
	}
	var parsed hclDescriptorFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return Set{}, fmt.Errorf("descriptors: decode %s: %w", filename, diags)
	}

	var set Set
	for _, block := range parsed.Modules {
		desc := block.descriptor(src)
		desc.Source = filename
		if err := desc.Validate(); err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", filename, err)
		}
		set.Modules = append(set.Modules, ModuleFile{Descriptor: desc.Normalized(), Path: filename})
	}
	for _, block := range parsed.Targets {
		target := block.descriptor()
		target.Source = filename
		if err := target.Validate(); err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", filename, err)
		}
		set.Targets = append(set.Targets, TargetFile{Descriptor: target.Normalized(), Path: filename})
	}
	if set.Len() == 0 {
		return Set{}, fmt.Errorf("descriptors: %s declares no module or target blocks", filename)
	}
	return set, nil
}

// LoadHCLFile reads and decodes a *.hcl descriptor file.
func LoadHCLFile(path string) (Set, error) {
	data, err := readRegularFile(path)
	if err != nil {
		return Set{}, err
	}
	return ParseHCL(data, filepath.Clean(path))
}

func (m *hclModule) descriptor(src []byte) descriptor.ModuleDescriptor {
	desc := descriptor.ModuleDescriptor{
		Name:          m.Name,
		Kind:          descriptor.Kind(m.Kind),
		Description:   m.Description,
		DependencySet: descriptor.DependencySet{Public: m.Public, Private: m.Private, Dynamic: m.Dynamic},
		Platforms:     m.Platforms,
		EngineVersion: m.EngineVersion,
	}
	for _, rule := range m.Rules {
		desc.Rules = append(desc.Rules, descriptor.ConditionalRule{
			When:   expressionSource(rule.When, src),
			Add:    rule.Add.set(),
			Remove: rule.Remove.set(),
		})
	}
	return desc
}

func (d *hclDeps) set() descriptor.DependencySet {
	if d == nil {
		return descriptor.DependencySet{}
	}
	return descriptor.DependencySet{Public: d.Public, Private: d.Private, Dynamic: d.Dynamic}
}

func (t *hclTarget) descriptor() descriptor.TargetDescriptor {
	return descriptor.TargetDescriptor{
		Name:           t.Name,
		Type:           descriptor.TargetType(t.Type),
		Description:    t.Description,
		Modules:        t.Modules,
		Platforms:      t.Platforms,
		Configurations: t.Configurations,
		Flags:          t.Flags,
	}
}

// expressionSource returns the source text of a parsed expression. A missing
// optional attribute decodes to a synthetic expression and yields "".
func expressionSource(expr hcl.Expression, src []byte) string {
	if expr == nil {
		return ""
	}
	if _, parsed := expr.(hclsyntax.Expression); !parsed {
		return ""
	}
	rng := expr.Range()
	if rng.End.Byte <= rng.Start.Byte || rng.End.Byte > len(src) {
		return ""
	}
	return strings.TrimSpace(string(rng.SliceBytes(src)))
}
