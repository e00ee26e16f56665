package resolver

import (
	"fmt"
	"strings"

	"github.com/kingrea/modgraph/internal/report"
)

// TargetPlatformError reports a target requested for a platform or
// configuration outside its allow lists.
type TargetPlatformError struct {
	Target        string
	Platform      string
	Configuration string
	Allowed       []string
}

func (e *TargetPlatformError) Error() string {
	if e.Configuration != "" {
		return fmt.Sprintf("resolver: target %s does not support configuration %s (allowed: %s)", e.Target, e.Configuration, strings.Join(e.Allowed, ", "))
	}
	return fmt.Sprintf("resolver: target %s does not support platform %s (allowed: %s)", e.Target, e.Platform, strings.Join(e.Allowed, ", "))
}

// Diagnostic implements report.Diagnoser.
func (e *TargetPlatformError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Kind: report.KindTargetPlatform, Module: e.Target, Message: e.Error()}
}
