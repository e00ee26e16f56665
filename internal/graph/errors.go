package graph

import (
	"fmt"
	"strings"

	"github.com/kingrea/modgraph/internal/report"
)

// UnresolvedDependencyError reports a dependency name that is neither a
// registered module nor a known external library.
type UnresolvedDependencyError struct {
	Module     string
	Dependency string
	Reason     string
	Advisory   bool
}

func (e *UnresolvedDependencyError) Error() string {
	kind := "dependency"
	if e.Advisory {
		kind = "dynamic dependency"
	}
	msg := fmt.Sprintf("graph: %s %s of %s is unresolved", kind, e.Dependency, e.Module)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Diagnostic implements report.Diagnoser.
func (e *UnresolvedDependencyError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindUnresolvedDependency, Module: e.Module, Dependency: e.Dependency, Message: e.Error()}
}

// CyclicDependencyError carries the modules of a dependency cycle. Path
// begins and ends with the same module.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("graph: dependency cycle %s", strings.Join(e.Path, " -> "))
}

// Diagnostic implements report.Diagnoser.
func (e *CyclicDependencyError) Diagnostic() report.Diagnostic {
	module := ""
	if len(e.Path) > 0 {
		module = e.Path[0]
	}
	return report.Diagnostic{
		Kind:    report.KindCyclicDependency,
		Module:  module,
		Path:    append([]string(nil), e.Path...),
		Message: e.Error(),
	}
}
