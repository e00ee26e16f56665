package platform

import (
	"fmt"

	"github.com/kingrea/modgraph/internal/report"
)

// ConditionEvaluationError reports a rule whose condition could not be
// evaluated, typically because it references an undefined attribute or flag.
type ConditionEvaluationError struct {
	Module string
	Rule   int
	When   string
	Err    error
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("platform: %s rule[%d] condition %q: %v", e.Module, e.Rule, e.When, e.Err)
}

func (e *ConditionEvaluationError) Unwrap() error { return e.Err }

// Diagnostic implements report.Diagnoser.
func (e *ConditionEvaluationError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindConditionEvaluation, Module: e.Module, Message: e.Error()}
}

// SelfDependencyError reports a module whose resolved dependencies name the
// module itself.
type SelfDependencyError struct {
	Module string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("platform: %s depends on itself after applying rules", e.Module)
}

// Diagnostic implements report.Diagnoser.
func (e *SelfDependencyError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindSelfDependency, Module: e.Module, Dependency: e.Module, Message: e.Error()}
}

// IncompatibleEngineError reports a module whose engine_version constraint
// rejects the engine version of the context.
type IncompatibleEngineError struct {
	Module        string
	Constraint    string
	EngineVersion string
}

func (e *IncompatibleEngineError) Error() string {
	return fmt.Sprintf("platform: %s requires engine %s, context provides %s", e.Module, e.Constraint, e.EngineVersion)
}

// Diagnostic implements report.Diagnoser.
func (e *IncompatibleEngineError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindIncompatibleEngine, Module: e.Module, Message: e.Error()}
}
