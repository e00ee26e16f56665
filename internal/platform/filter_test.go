package platform

import (
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/modgraph/internal/descriptor"
)

func linux() Context {
	return Context{Platform: "Linux", Configuration: ConfigDevelopment, Groups: []string{"Unix", "Desktop"}}
}

func deps(public, private []string) descriptor.DependencySet {
	return descriptor.DependencySet{Public: public, Private: private}
}

func TestResolveAppliesRulesInOrder(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name:          "Engine",
		DependencySet: deps([]string{"Core"}, []string{"Renderer", "Json"}),
		Rules: []descriptor.ConditionalRule{
			{When: `platform == "Linux"`, Add: deps(nil, []string{"Pthread"})},
			{When: `configuration == "development"`, Remove: deps(nil, []string{"Renderer"})},
			{When: `in_group("Unix")`, Add: deps(nil, []string{"Renderer"})},
			{When: `platform == "Win64"`, Add: deps(nil, []string{"D3D12"})},
		},
	}
	got, err := Resolve(desc, linux())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.Join(got.Private, ",") != "Json,Pthread,Renderer" {
		t.Fatalf("private = %v", got.Private)
	}
	if strings.Join(got.HardDependencies(), ",") != "Core,Json,Pthread,Renderer" {
		t.Fatalf("hard deps = %v", got.HardDependencies())
	}
}

func TestAddAppliesBeforeRemoveWithinRule(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name: "Launch",
		Rules: []descriptor.ConditionalRule{{
			Add:    deps(nil, []string{"Slate"}),
			Remove: deps(nil, []string{"Slate"}),
		}},
	}
	got, err := Resolve(desc, linux())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Private) != 0 {
		t.Fatalf("remove should win inside one rule, got %v", got.Private)
	}
}

func TestFlagsAndTargetAttributes(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name: "Launch",
		Rules: []descriptor.ConditionalRule{
			{When: `flags.with_editor`, Add: deps(nil, []string{"UnrealEd"})},
			{When: `target_type == "server" || target == "Client"`, Add: deps(nil, []string{"NetCore"})},
		},
	}
	ctx := linux().WithFlags(map[string]bool{"with_editor": true})
	ctx.Target = "Server"
	ctx.TargetType = "server"
	got, err := Resolve(desc, ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.Join(got.Private, ",") != "UnrealEd,NetCore" {
		t.Fatalf("private = %v", got.Private)
	}
}

func TestUndefinedAttributeFailsWithConditionEvaluationError(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name: "Audio",
		Rules: []descriptor.ConditionalRule{
			{When: `architecture == "arm64"`, Add: deps(nil, []string{"Neon"})},
			{When: `flags.with_audio`, Add: deps(nil, []string{"Mixer"})},
			{When: `platform == "Linux"`, Add: deps(nil, []string{"Alsa"})},
		},
	}
	got, err := Resolve(desc, linux())
	if err == nil {
		t.Fatalf("expected condition errors")
	}
	var cond *ConditionEvaluationError
	if !errors.As(err, &cond) || cond.Module != "Audio" || cond.Rule != 0 {
		t.Fatalf("expected ConditionEvaluationError for rule 0, got %v", err)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected both failing rules to be reported, got %v", err)
	}
	if strings.Join(got.Private, ",") != "Alsa" {
		t.Fatalf("valid rules should still apply, got %v", got.Private)
	}
}

func TestNonBoolConditionFails(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name:  "Core",
		Rules: []descriptor.ConditionalRule{{When: `platform`, Add: deps(nil, []string{"X"})}},
	}
	var cond *ConditionEvaluationError
	if _, err := Resolve(desc, linux()); !errors.As(err, &cond) {
		t.Fatalf("expected ConditionEvaluationError, got %v", err)
	}
}

func TestPublicWinsOverPrivate(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name:          "Slate",
		DependencySet: descriptor.DependencySet{Public: []string{"Core"}, Dynamic: []string{"Json"}},
		Rules: []descriptor.ConditionalRule{
			{Add: descriptor.DependencySet{Private: []string{"Core", "Json"}}},
		},
	}
	got, err := Resolve(desc, linux())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Private) != 1 || got.Private[0] != "Json" {
		t.Fatalf("private = %v", got.Private)
	}
	if len(got.Dynamic) != 0 {
		t.Fatalf("hard dependency should be removed from dynamic, got %v", got.Dynamic)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("expected ambiguity warning, got %v", got.Warnings)
	}
}

func TestRuleAddingSelfFails(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name:  "Core",
		Rules: []descriptor.ConditionalRule{{Add: deps([]string{"Core"}, nil)}},
	}
	var self *SelfDependencyError
	if _, err := Resolve(desc, linux()); !errors.As(err, &self) {
		t.Fatalf("expected SelfDependencyError, got %v", err)
	}
}

func TestPlatformAllowListExcludes(t *testing.T) {
	desc := descriptor.ModuleDescriptor{
		Name:      "D3D12RHI",
		Platforms: []string{"Win64"},
		Rules:     []descriptor.ConditionalRule{{When: `undefined_thing`, Add: deps(nil, []string{"X"})}},
	}
	got, err := Resolve(desc, linux())
	if err != nil {
		t.Fatalf("excluded module should not evaluate rules: %v", err)
	}
	if !got.Excluded || got.ExcludedReason != "not available on Linux" {
		t.Fatalf("expected exclusion, got %+v", got)
	}
}

func TestEngineCompatibility(t *testing.T) {
	desc := descriptor.ModuleDescriptor{Name: "Niagara", Kind: descriptor.KindPlugin, EngineVersion: ">= 5.2, < 6"}
	ctx := linux()
	ctx.EngineVersion = "5.3.1"
	if _, err := Resolve(desc, ctx); err != nil {
		t.Fatalf("5.3.1 should satisfy constraint: %v", err)
	}
	ctx.EngineVersion = "4.27.0"
	var incompatible *IncompatibleEngineError
	if _, err := Resolve(desc, ctx); !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleEngineError, got %v", err)
	}
	ctx.EngineVersion = ""
	if _, err := Resolve(desc, ctx); err != nil {
		t.Fatalf("constraint should be skipped without engine version: %v", err)
	}
}

func TestContextValidate(t *testing.T) {
	if _, err := NewFilter(Context{}); err == nil {
		t.Fatalf("expected error for empty platform")
	}
	if _, err := NewFilter(Context{Platform: "Linux", Configuration: "profile"}); err == nil {
		t.Fatalf("expected error for unknown configuration")
	}
	if _, err := NewFilter(Context{Platform: "Linux", EngineVersion: "five"}); err == nil {
		t.Fatalf("expected error for bad engine version")
	}
}

func TestParseConfigurationAliases(t *testing.T) {
	cfg, err := ParseConfiguration("Release")
	if err != nil || cfg != ConfigDevelopment {
		t.Fatalf("release should alias development, got %q %v", cfg, err)
	}
	desc := descriptor.ModuleDescriptor{
		Name:  "Core",
		Rules: []descriptor.ConditionalRule{{When: `configuration == "development"`, Add: deps(nil, []string{"Dev"})}},
	}
	ctx := linux()
	ctx.Configuration = "release"
	got, err := Resolve(desc, ctx)
	if err != nil || len(got.Private) != 1 {
		t.Fatalf("release context should evaluate as development: %v %v", got.Private, err)
	}
}

func TestContextKeyAndWithFlags(t *testing.T) {
	ctx := Context{Platform: "Win64", Configuration: ConfigShipping, Target: "Game", Flags: map[string]bool{"b": true, "a": true, "off": false}}
	if ctx.Key() != "Win64/shipping/Game [a,b]" {
		t.Fatalf("key = %q", ctx.Key())
	}
	merged := ctx.WithFlags(map[string]bool{"a": false})
	if merged.Flags["a"] || !ctx.Flags["a"] {
		t.Fatalf("WithFlags should override on a copy")
	}
}
