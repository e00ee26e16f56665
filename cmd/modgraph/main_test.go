package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/modgraph/internal/config"
)

func writeDescriptor(t *testing.T, project, name, body string) {
	t.Helper()
	path := filepath.Join(project, "descriptors", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	project := t.TempDir()
	writeDescriptor(t, project, "Runtime/Core.module.yaml", "name: Core\n")
	writeDescriptor(t, project, "Runtime/Engine.hcl", `
module "Engine" {
  public  = ["Core"]
  dynamic = ["Niagara"]

  rule {
    when = platform == "Win64"
    add {
      private = ["D3D12RHI"]
    }
  }
}

module "Niagara" {
  kind    = "plugin"
  private = ["Core"]
}

module "D3D12RHI" {
  platforms = ["Win64"]
  private   = ["Core"]
}

target "Game" {
  modules = ["Engine"]
}
`)
	return project
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t); code != exitUsage {
		t.Fatalf("no args: exit %d, want %d", code, exitUsage)
	}
	if code, _, stderr := runCLI(t, "explode"); code != exitUsage || !strings.Contains(stderr, "unknown command") {
		t.Fatalf("unknown command: exit %d, stderr %q", code, stderr)
	}
	project := newProject(t)
	if code, _, _ := runCLI(t, "resolve", "-project", project, "-format", "xml"); code != exitUsage {
		t.Fatalf("bad format: exit %d", code)
	}
	if code, _, _ := runCLI(t, "resolve", "-project", project, "-flag", "with_editor=maybe"); code != exitUsage {
		t.Fatalf("bad flag value: exit %d", code)
	}
	if code, _, _ := runCLI(t, "resolve", "-project", project, "-config", "turbo"); code != exitUsage {
		t.Fatalf("bad configuration: exit %d", code)
	}
	if code, _, _ := runCLI(t, "why", "-project", project, "Engine"); code != exitUsage {
		t.Fatalf("why with one argument: exit %d", code)
	}
}

func TestResolveText(t *testing.T) {
	project := newProject(t)
	code, stdout, stderr := runCLI(t, "resolve", "-project", project, "-no-color")
	if code != exitOK {
		t.Fatalf("resolve: exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	for _, want := range []string{"Linux/development: 3 modules", "1. Core", "2. Engine", "3. Niagara"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("output missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stdout, "excluded D3D12RHI") {
		t.Fatalf("excluded module not listed:\n%s", stdout)
	}
}

func TestResolveJSONMultiplePlatforms(t *testing.T) {
	project := newProject(t)
	code, stdout, stderr := runCLI(t, "resolve", "-project", project, "-platform", "Linux,Win64", "-format", "json")
	if code != exitOK {
		t.Fatalf("resolve: exit %d\n%s", code, stderr)
	}
	var docs []resultDocument
	if err := json.Unmarshal([]byte(stdout), &docs); err != nil {
		t.Fatalf("decode json: %v\n%s", err, stdout)
	}
	if len(docs) != 2 {
		t.Fatalf("expected two documents, got %d", len(docs))
	}
	if got := strings.Join(docs[1].Order, ","); got != "Core,D3D12RHI,Engine,Niagara" {
		t.Fatalf("Win64 order = %s", got)
	}
	if !docs[0].OK || !docs[1].OK {
		t.Fatalf("both resolutions should succeed: %+v", docs)
	}
}

func TestResolveCycleFails(t *testing.T) {
	project := newProject(t)
	writeDescriptor(t, project, "Loop.module.yaml", "name: LoopA\nprivate: [LoopB]\n---\nname: LoopB\nprivate: [LoopA]\n")
	code, stdout, _ := runCLI(t, "resolve", "-project", project, "-no-color")
	if code != exitFailure {
		t.Fatalf("cycle: exit %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stdout, "cycle: LoopA -> LoopB -> LoopA") {
		t.Fatalf("cycle path missing:\n%s", stdout)
	}
}

func TestResolveBrokenDescriptorFails(t *testing.T) {
	project := newProject(t)
	writeDescriptor(t, project, "Broken.module.yaml", "name: [\n")
	code, _, stderr := runCLI(t, "resolve", "-project", project, "-no-color")
	if code != exitFailure {
		t.Fatalf("broken descriptor: exit %d", code)
	}
	if !strings.Contains(stderr, "invalid-descriptor") {
		t.Fatalf("load diagnostic missing:\n%s", stderr)
	}
}

func TestWhyAndWaves(t *testing.T) {
	project := newProject(t)
	code, stdout, stderr := runCLI(t, "why", "-project", project, "-platform", "Win64", "D3D12RHI", "Core")
	if code != exitOK {
		t.Fatalf("why: exit %d\n%s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "D3D12RHI -> Core" {
		t.Fatalf("why output = %q", stdout)
	}
	if code, stdout, _ = runCLI(t, "why", "-project", project, "Core", "Engine"); code != exitFailure || !strings.Contains(stdout, "does not depend") {
		t.Fatalf("reverse why: exit %d output %q", code, stdout)
	}

	code, stdout, stderr = runCLI(t, "waves", "-project", project, "-platform", "Win64", "-max-parallel", "1")
	if code != exitOK {
		t.Fatalf("waves: exit %d\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "4 modules in 4 waves") || !strings.Contains(stdout, "wave 1: Core") {
		t.Fatalf("waves output:\n%s", stdout)
	}
}

func TestGraphTargetAndMetrics(t *testing.T) {
	project := newProject(t)
	metricsPath := filepath.Join(t.TempDir(), "modgraph.prom")
	code, stdout, stderr := runCLI(t, "graph", "-project", project, "-target", "Game", "-metrics-file", metricsPath)
	if code != exitOK {
		t.Fatalf("graph: exit %d\n%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, `digraph "modules" {`) || !strings.Contains(stdout, `"Engine" -> "Core"`) {
		t.Fatalf("unexpected DOT:\n%s", stdout)
	}
	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "modgraph_resolutions_total") {
		t.Fatalf("metrics file missing counter:\n%s", data)
	}
}

func TestInitThenValidate(t *testing.T) {
	project := newProject(t)
	code, stdout, stderr := runCLI(t, "init", "-project", project, "-platform", "Win64")
	if code != exitOK {
		t.Fatalf("init: exit %d\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Initialized .modgraph") {
		t.Fatalf("init output = %q", stdout)
	}
	cfg, err := config.NewConfig(project, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Project.Defaults.Platform != "Win64" {
		t.Fatalf("default platform = %s, want Win64", cfg.Project.Defaults.Platform)
	}

	code, stdout, stderr = runCLI(t, "validate", "-project", project)
	if code != exitOK {
		t.Fatalf("validate: exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	for _, platformName := range cfg.Platforms() {
		if !strings.Contains(stdout, platformName+"/development: ok") {
			t.Fatalf("validate output missing %s:\n%s", platformName, stdout)
		}
	}
	if _, err := os.Stat(cfg.JournalPath()); err != nil {
		t.Fatalf("journal should be written: %v", err)
	}
}

func TestKnownFlagsAndTargetFlagPrecedence(t *testing.T) {
	project := t.TempDir()
	writeDescriptor(t, project, "Launch.hcl", `
module "Launch" {
  rule {
    when = flags.with_editor
    add {
      private = ["UnrealEd"]
    }
  }
}

module "UnrealEd" {}

target "Game" {
  modules = ["Launch"]
}

target "Editor" {
  modules = ["Launch"]
  flags   = { with_editor = true }
}
`)
	stateDir := filepath.Join(project, config.ProjectDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("known_flags: [with_editor]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resolveTarget := func(args ...string) resultDocument {
		t.Helper()
		base := []string{"resolve", "-project", project, "-platform", "Linux", "-format", "json"}
		code, stdout, stderr := runCLI(t, append(base, args...)...)
		if code != exitOK {
			t.Fatalf("resolve %v: exit %d\nstdout:\n%s\nstderr:\n%s", args, code, stdout, stderr)
		}
		var doc resultDocument
		if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
			t.Fatalf("decode json: %v\n%s", err, stdout)
		}
		return doc
	}
	contains := func(order []string, name string) bool {
		for _, item := range order {
			if item == name {
				return true
			}
		}
		return false
	}

	if doc := resolveTarget("-target", "Game"); contains(doc.Order, "UnrealEd") || !contains(doc.Order, "Launch") {
		t.Fatalf("known flag without a value should be false: %v", doc.Order)
	}
	if doc := resolveTarget("-target", "Editor"); !contains(doc.Order, "UnrealEd") {
		t.Fatalf("target flag should beat the known-flag default: %v", doc.Order)
	}
	if doc := resolveTarget("-target", "Editor", "-flag", "with_editor=false"); contains(doc.Order, "UnrealEd") {
		t.Fatalf("-flag should beat the target flag: %v", doc.Order)
	}
	if doc := resolveTarget("-target", "Game", "-flag", "with_editor"); !contains(doc.Order, "UnrealEd") {
		t.Fatalf("bare -flag should switch the flag on: %v", doc.Order)
	}
}

func TestKeyValueFlagStoresParsedBools(t *testing.T) {
	var kv keyValueFlag
	for _, value := range []string{"with_editor", "with_server=FALSE", " with_tools = 1 "} {
		if err := kv.Set(value); err != nil {
			t.Fatalf("set %q: %v", value, err)
		}
	}
	got := kv.bools()
	if !got["with_editor"] || got["with_server"] || !got["with_tools"] {
		t.Fatalf("bools = %v", got)
	}
	if kv.String() != "with_editor=true, with_server=false, with_tools=true" {
		t.Fatalf("string = %q", kv.String())
	}
	if err := kv.Set("with_editor=maybe"); err == nil {
		t.Fatalf("expected an error for a non-boolean value")
	}
	if !kv["with_editor"] {
		t.Fatalf("rejected value must not overwrite the stored flag")
	}
	if err := kv.Set("=true"); err == nil {
		t.Fatalf("expected an error for an empty name")
	}
}
