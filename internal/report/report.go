package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind names the failure class behind a diagnostic.
type Kind string

const (
	KindDuplicateModule      Kind = "duplicate-module"
	KindUnknownModule        Kind = "unknown-module"
	KindConditionEvaluation  Kind = "condition-evaluation"
	KindUnresolvedDependency Kind = "unresolved-dependency"
	KindCyclicDependency     Kind = "cyclic-dependency"
	KindSelfDependency       Kind = "self-dependency"
	KindIncompatibleEngine   Kind = "incompatible-engine"
	KindUnknownTarget        Kind = "unknown-target"
	KindTargetPlatform       Kind = "target-platform"
	KindAmbiguousDependency  Kind = "ambiguous-dependency"
	KindInvalidDescriptor    Kind = "invalid-descriptor"
	KindGeneric              Kind = "error"
)

// Diagnostic is one actionable finding of a resolution pass.
type Diagnostic struct {
	Severity   Severity `json:"severity" yaml:"severity"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Module     string   `json:"module,omitempty" yaml:"module,omitempty"`
	Dependency string   `json:"dependency,omitempty" yaml:"dependency,omitempty"`
	Path       []string `json:"path,omitempty" yaml:"path,omitempty"`
	Message    string   `json:"message" yaml:"message"`
}

// Diagnoser is implemented by typed errors that know how to describe
// themselves as a Diagnostic.
type Diagnoser interface {
	Diagnostic() Diagnostic
}

// Report aggregates the failures of a resolution pass so callers see every
// problem at once. A fatal error (a dependency cycle) replaces everything
// collected before it and blocks further additions.
type Report struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
	errs        []error
	fatal       error
}

// New returns an empty report.
func New() *Report {
	return &Report{}
}

// Add records err. Joined errors are flattened so each typed error gets its
// own diagnostic. Nil errors are ignored, as is anything added after a fatal
// error.
func (r *Report) Add(err error) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fatal != nil {
		return
	}
	for _, single := range flatten(err) {
		r.errs = append(r.errs, single)
		r.diagnostics = append(r.diagnostics, diagnose(single))
	}
}

// Warn records a non-fatal finding that does not block the build order.
func (r *Report) Warn(kind Kind, module, message string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fatal != nil {
		return
	}
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Severity: SeverityWarning,
		Kind:     kind,
		Module:   module,
		Message:  message,
	})
}

// SetFatal discards every collected diagnostic and records err as the only
// finding of the report.
func (r *Report) SetFatal(err error) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = err
	r.errs = []error{err}
	r.diagnostics = []Diagnostic{diagnose(err)}
}

// Merge appends other's findings to r. A fatal error in other becomes fatal
// in r.
func (r *Report) Merge(other *Report) {
	if r == nil || other == nil {
		return
	}
	if fatal := other.Fatal(); fatal != nil {
		r.SetFatal(fatal)
		return
	}
	other.mu.Lock()
	errs := append([]error(nil), other.errs...)
	warnings := make([]Diagnostic, 0)
	for _, diag := range other.diagnostics {
		if diag.Severity == SeverityWarning {
			warnings = append(warnings, diag)
		}
	}
	other.mu.Unlock()
	for _, err := range errs {
		r.Add(err)
	}
	for _, diag := range warnings {
		r.Warn(diag.Kind, diag.Module, diag.Message)
	}
}

// Fatal returns the fatal error, if any.
func (r *Report) Fatal() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// HasErrors reports whether any error-severity finding was recorded.
func (r *Report) HasErrors() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs) > 0
}

// Errors returns the typed errors in the order they were recorded.
func (r *Report) Errors() []error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Err joins every recorded error, or returns nil for a clean report. The
// result supports errors.As for each typed error.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Diagnostics returns the findings sorted by severity, kind, module and
// dependency.
func (r *Report) Diagnostics() []Diagnostic {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity == SeverityError
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.Dependency < b.Dependency
	})
	return out
}

// Count returns how many diagnostics of kind were recorded.
func (r *Report) Count(kind Kind) int {
	count := 0
	for _, diag := range r.Diagnostics() {
		if diag.Kind == kind {
			count++
		}
	}
	return count
}

// Summary renders a one-line description such as "2 errors, 1 warning".
func (r *Report) Summary() string {
	var errCount, warnCount int
	for _, diag := range r.Diagnostics() {
		if diag.Severity == SeverityError {
			errCount++
		} else {
			warnCount++
		}
	}
	return fmt.Sprintf("%s, %s", plural(errCount, "error"), plural(warnCount, "warning"))
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, inner := range joined.Unwrap() {
			if inner == nil {
				continue
			}
			out = append(out, flatten(inner)...)
		}
		return out
	}
	return []error{err}
}

func diagnose(err error) Diagnostic {
	var d Diagnoser
	if errors.As(err, &d) {
		diag := d.Diagnostic()
		if diag.Severity == "" {
			diag.Severity = SeverityError
		}
		if diag.Message == "" {
			diag.Message = err.Error()
		}
		return diag
	}
	return Diagnostic{
		Severity: SeverityError,
		Kind:     KindGeneric,
		Message:  strings.TrimSpace(err.Error()),
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
