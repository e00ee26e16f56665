package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type missingErr struct {
	module string
	dep    string
}

func (e *missingErr) Error() string {
	return fmt.Sprintf("%s: missing %s", e.module, e.dep)
}

func (e *missingErr) Diagnostic() Diagnostic {
	return Diagnostic{Kind: KindUnresolvedDependency, Module: e.module, Dependency: e.dep}
}

type cycleErr struct{ path []string }

func (e *cycleErr) Error() string { return "cycle " + strings.Join(e.path, ",") }

func (e *cycleErr) Diagnostic() Diagnostic {
	return Diagnostic{Kind: KindCyclicDependency, Path: e.path}
}

func TestAddFlattensJoinedErrors(t *testing.T) {
	r := New()
	r.Add(errors.Join(&missingErr{"B", "Z"}, &missingErr{"A", "Y"}))
	r.Add(nil)
	if got := len(r.Errors()); got != 2 {
		t.Fatalf("errors = %d, want 2", got)
	}
	diags := r.Diagnostics()
	if diags[0].Module != "A" || diags[1].Module != "B" {
		t.Fatalf("diagnostics not sorted by module: %+v", diags)
	}
	if diags[0].Message != "A: missing Y" {
		t.Fatalf("message should default to the error text, got %q", diags[0].Message)
	}
	if diags[0].Severity != SeverityError {
		t.Fatalf("severity should default to error")
	}
}

func TestErrSupportsErrorsAs(t *testing.T) {
	r := New()
	r.Add(&missingErr{"A", "B"})
	var target *missingErr
	if !errors.As(r.Err(), &target) || target.dep != "B" {
		t.Fatalf("errors.As failed on %v", r.Err())
	}
	if New().Err() != nil {
		t.Fatalf("empty report should have nil Err")
	}
}

func TestSetFatalReplacesCollectedErrors(t *testing.T) {
	r := New()
	r.Add(&missingErr{"A", "B"})
	r.Warn(KindAmbiguousDependency, "A", "public wins")
	r.SetFatal(&cycleErr{path: []string{"X", "Y", "X"}})
	r.Add(&missingErr{"C", "D"})
	r.Warn(KindAmbiguousDependency, "C", "ignored")

	diags := r.Diagnostics()
	if len(diags) != 1 || diags[0].Kind != KindCyclicDependency {
		t.Fatalf("expected only the cycle, got %+v", diags)
	}
	if len(r.Errors()) != 1 || r.Fatal() == nil {
		t.Fatalf("fatal error not retained alone")
	}
}

func TestWarningsDoNotCountAsErrors(t *testing.T) {
	r := New()
	r.Warn(KindAmbiguousDependency, "Core", "Json declared public and private")
	if r.HasErrors() {
		t.Fatalf("warning should not be an error")
	}
	if r.Count(KindAmbiguousDependency) != 1 {
		t.Fatalf("count = %d", r.Count(KindAmbiguousDependency))
	}
	if r.Summary() != "0 errors, 1 warning" {
		t.Fatalf("summary = %q", r.Summary())
	}
}

func TestMergePropagatesFatal(t *testing.T) {
	a := New()
	a.Add(&missingErr{"A", "B"})
	b := New()
	b.Warn(KindAmbiguousDependency, "W", "warn")
	b.Add(&missingErr{"C", "D"})
	a.Merge(b)
	if len(a.Errors()) != 2 || a.Count(KindAmbiguousDependency) != 1 {
		t.Fatalf("merge lost findings: %+v", a.Diagnostics())
	}
	c := New()
	c.SetFatal(&cycleErr{path: []string{"X", "X"}})
	a.Merge(c)
	if a.Fatal() == nil || len(a.Errors()) != 1 {
		t.Fatalf("fatal not propagated")
	}
}

func TestNilReportIsSafe(t *testing.T) {
	var r *Report
	r.Add(errors.New("x"))
	r.Warn(KindGeneric, "", "x")
	if r.HasErrors() || r.Err() != nil || len(r.Diagnostics()) != 0 {
		t.Fatalf("nil report should be empty")
	}
}

func TestPlainErrorsBecomeGenericDiagnostics(t *testing.T) {
	r := New()
	r.Add(fmt.Errorf("loader: bad file"))
	diag := r.Diagnostics()[0]
	if diag.Kind != KindGeneric || diag.Message != "loader: bad file" {
		t.Fatalf("unexpected diagnostic %+v", diag)
	}
}

func TestWriteTextWithoutColor(t *testing.T) {
	r := New()
	r.SetFatal(&cycleErr{path: []string{"X", "Y", "X"}})
	var buf bytes.Buffer
	if err := r.WriteText(&buf, TextOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "error [cyclic-dependency]") {
		t.Fatalf("missing label: %s", out)
	}
	if !strings.Contains(out, "cycle: X -> Y -> X") {
		t.Fatalf("missing cycle path: %s", out)
	}
	if !strings.Contains(out, "1 error, 0 warnings") {
		t.Fatalf("missing summary: %s", out)
	}
}

func TestWriteJSONAndYAML(t *testing.T) {
	r := New()
	r.Add(&missingErr{"Engine", "Renderer"})

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("json: %v", err)
	}
	var doc struct {
		OK          bool         `json:"ok"`
		Diagnostics []Diagnostic `json:"diagnostics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if doc.OK || len(doc.Diagnostics) != 1 || doc.Diagnostics[0].Dependency != "Renderer" {
		t.Fatalf("unexpected json document %+v", doc)
	}

	buf.Reset()
	if err := New().WriteYAML(&buf); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var ydoc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &ydoc); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if ydoc["ok"] != true {
		t.Fatalf("empty report should be ok: %v", ydoc)
	}
}
