package registry

import (
	"fmt"

	"github.com/kingrea/modgraph/internal/report"
)

// DuplicateModuleError reports a second declaration of an existing module.
type DuplicateModuleError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateModuleError) Error() string {
	msg := fmt.Sprintf("registry: module %s already registered", e.Name)
	if e.First != "" || e.Second != "" {
		msg += fmt.Sprintf(" (first in %s, again in %s)", orUnknown(e.First), orUnknown(e.Second))
	}
	return msg
}

// Diagnostic implements report.Diagnoser.
func (e *DuplicateModuleError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindDuplicateModule, Module: e.Name, Message: e.Error()}
}

// UnknownModuleError reports a lookup of a module that was never registered.
// Referrer is set when the lookup was made on behalf of a target or module.
type UnknownModuleError struct {
	Name     string
	Referrer string
}

func (e *UnknownModuleError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("registry: unknown module %s (referenced by %s)", e.Name, e.Referrer)
	}
	return fmt.Sprintf("registry: unknown module %s", e.Name)
}

// Diagnostic implements report.Diagnoser.
func (e *UnknownModuleError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindUnknownModule, Module: e.Referrer, Dependency: e.Name, Message: e.Error()}
}

// DuplicateTargetError reports a second declaration of an existing target.
type DuplicateTargetError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateTargetError) Error() string {
	msg := fmt.Sprintf("registry: target %s already registered", e.Name)
	if e.First != "" || e.Second != "" {
		msg += fmt.Sprintf(" (first in %s, again in %s)", orUnknown(e.First), orUnknown(e.Second))
	}
	return msg
}

// Diagnostic implements report.Diagnoser.
func (e *DuplicateTargetError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindDuplicateModule, Module: e.Name, Message: e.Error()}
}

// UnknownTargetError reports a lookup of a target that was never registered.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("registry: unknown target %s", e.Name)
}

// Diagnostic implements report.Diagnoser.
func (e *UnknownTargetError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindUnknownTarget, Module: e.Name, Message: e.Error()}
}

func orUnknown(source string) string {
	if source == "" {
		return "<unknown>"
	}
	return source
}
