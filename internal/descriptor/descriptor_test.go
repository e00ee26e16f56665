package descriptor

import (
	"strings"
	"testing"
)

func TestNormalizedTrimsAndDefaultsKind(t *testing.T) {
	desc := ModuleDescriptor{
		Name: "  Core ",
		DependencySet: DependencySet{
			Public:  []string{" TraceLog", ""},
			Private: []string{"Projects "},
		},
		Rules: []ConditionalRule{{When: "  platform == \"Linux\" ", Add: DependencySet{Private: []string{" pthread "}}}},
	}
	n := desc.Normalized()
	if n.Name != "Core" {
		t.Fatalf("name = %q", n.Name)
	}
	if n.Kind != KindEngine {
		t.Fatalf("kind = %q, want engine", n.Kind)
	}
	if len(n.Public) != 1 || n.Public[0] != "TraceLog" {
		t.Fatalf("public = %v", n.Public)
	}
	if n.Rules[0].When != `platform == "Linux"` {
		t.Fatalf("when = %q", n.Rules[0].When)
	}
	if n.Rules[0].Add.Private[0] != "pthread" {
		t.Fatalf("rule add = %v", n.Rules[0].Add.Private)
	}
}

func TestValidateRejectsDuplicatesAndAmbiguity(t *testing.T) {
	cases := []struct {
		name string
		desc ModuleDescriptor
		want string
	}{
		{
			name: "duplicate public",
			desc: ModuleDescriptor{Name: "A", DependencySet: DependencySet{Public: []string{"B", "B"}}},
			want: "more than once",
		},
		{
			name: "public and private",
			desc: ModuleDescriptor{Name: "A", DependencySet: DependencySet{Public: []string{"B"}, Private: []string{"B"}}},
			want: "both public and private",
		},
		{
			name: "self dependency",
			desc: ModuleDescriptor{Name: "A", DependencySet: DependencySet{Private: []string{"A"}}},
			want: "depends on itself",
		},
		{
			name: "bad kind",
			desc: ModuleDescriptor{Name: "A", Kind: "library"},
			want: "unknown kind",
		},
		{
			name: "bad engine constraint",
			desc: ModuleDescriptor{Name: "A", EngineVersion: "not-a-version"},
			want: "engine_version",
		},
		{
			name: "empty rule",
			desc: ModuleDescriptor{Name: "A", Rules: []ConditionalRule{{When: "true"}}},
			want: "add or remove is required",
		},
		{
			name: "missing name",
			desc: ModuleDescriptor{},
			want: "name is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.desc.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsRuleThatReAddsRemovedName(t *testing.T) {
	desc := ModuleDescriptor{
		Name:          "Engine",
		DependencySet: DependencySet{Private: []string{"Renderer"}},
		Rules: []ConditionalRule{
			{When: `configuration == "shipping"`, Remove: DependencySet{Private: []string{"Renderer"}}},
			{When: `flags.with_editor`, Add: DependencySet{Private: []string{"Renderer"}}},
		},
	}
	if err := desc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	desc := ModuleDescriptor{
		Name:          "A",
		DependencySet: DependencySet{Public: []string{"B"}},
		Rules:         []ConditionalRule{{Add: DependencySet{Private: []string{"C"}}}},
	}
	clone := desc.Clone()
	clone.Public[0] = "X"
	clone.Rules[0].Add.Private[0] = "Y"
	if desc.Public[0] != "B" || desc.Rules[0].Add.Private[0] != "C" {
		t.Fatalf("clone shares storage with original: %+v", desc)
	}
}

func TestSupportsPlatform(t *testing.T) {
	desc := ModuleDescriptor{Name: "D3D12RHI", Platforms: []string{"Win64"}}
	if !desc.SupportsPlatform("win64") {
		t.Fatalf("expected case-insensitive platform match")
	}
	if desc.SupportsPlatform("Linux") {
		t.Fatalf("Linux should not be supported")
	}
	if !(ModuleDescriptor{Name: "Core"}).SupportsPlatform("Linux") {
		t.Fatalf("empty allow list should support every platform")
	}
}

func TestDependencySetNames(t *testing.T) {
	set := DependencySet{Public: []string{"B", "A"}, Dynamic: []string{"A", "C"}}
	got := strings.Join(set.Names(), ",")
	if got != "A,B,C" {
		t.Fatalf("names = %s", got)
	}
}

func TestTargetValidate(t *testing.T) {
	target := TargetDescriptor{Name: "Editor", Type: "Editor", Modules: []string{"Core", "Core"}}
	if err := target.Validate(); err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Fatalf("expected duplicate module error, got %v", err)
	}
	target.Modules = []string{"Core"}
	if err := target.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if target.Normalized().Type != TargetEditor {
		t.Fatalf("type should lowercase to editor")
	}
	if err := (TargetDescriptor{Name: "Empty"}).Validate(); err == nil {
		t.Fatalf("expected error for target without modules")
	}
}

func TestTargetAllowLists(t *testing.T) {
	target := TargetDescriptor{Name: "Server", Modules: []string{"Core"}, Platforms: []string{"Linux"}, Configurations: []string{"development", "shipping"}}
	if !target.AllowsPlatform("linux") || target.AllowsPlatform("Win64") {
		t.Fatalf("platform allow list not applied")
	}
	if !target.AllowsConfiguration("shipping") || target.AllowsConfiguration("debug") {
		t.Fatalf("configuration allow list not applied")
	}
}
