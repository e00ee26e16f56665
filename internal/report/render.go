package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// TextOptions controls WriteText output.
type TextOptions struct {
	// Color enables lipgloss styling. Disable it for files and pipes.
	Color bool
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	summaryStyle = lipgloss.NewStyle().Faint(true)
)

// WriteText renders one line per diagnostic followed by a summary line.
func (r *Report) WriteText(w io.Writer, opts TextOptions) error {
	render := func(style lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return style.Render(text)
	}
	for _, diag := range r.Diagnostics() {
		label := render(errorStyle, "error")
		if diag.Severity == SeverityWarning {
			label = render(warningStyle, "warning")
		}
		line := fmt.Sprintf("%s [%s] %s", label, render(kindStyle, string(diag.Kind)), diag.Message)
		if len(diag.Path) > 0 {
			line += "\n    cycle: " + render(pathStyle, strings.Join(diag.Path, " -> "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, render(summaryStyle, r.Summary()))
	return err
}

type document struct {
	OK          bool         `json:"ok" yaml:"ok"`
	Summary     string       `json:"summary" yaml:"summary"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func (r *Report) document() document {
	diags := r.Diagnostics()
	if diags == nil {
		diags = []Diagnostic{}
	}
	return document{OK: !r.HasErrors(), Summary: r.Summary(), Diagnostics: diags}
}

// WriteJSON renders the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.document())
}

// WriteYAML renders the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.document()); err != nil {
		return err
	}
	return enc.Close()
}
