package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/modgraph/internal/report"
	"github.com/kingrea/modgraph/internal/resolver"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}

// resultDocument is the structured form of one resolution.
type resultDocument struct {
	Context     string              `json:"context" yaml:"context"`
	Target      string              `json:"target,omitempty" yaml:"target,omitempty"`
	OK          bool                `json:"ok" yaml:"ok"`
	Summary     string              `json:"summary" yaml:"summary"`
	Order       []string            `json:"order,omitempty" yaml:"order,omitempty"`
	Waves       [][]string          `json:"waves,omitempty" yaml:"waves,omitempty"`
	Excluded    map[string]string   `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Diagnostics []report.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func newResultDocument(result resolver.Result) resultDocument {
	diags := result.Report.Diagnostics()
	if diags == nil {
		diags = []report.Diagnostic{}
	}
	return resultDocument{
		Context:     result.Context.Key(),
		Target:      result.Request.Target,
		OK:          result.OK(),
		Summary:     result.Report.Summary(),
		Order:       []string(result.Order),
		Excluded:    result.Excluded,
		Diagnostics: diags,
	}
}

func (c *cli) encode(value any) error {
	switch c.opts.format {
	case formatJSON:
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case formatYAML:
		enc := yaml.NewEncoder(c.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	}
	return usagef("unknown format %q", c.opts.format)
}

func (c *cli) writeReport(rep *report.Report) error {
	switch c.opts.format {
	case formatJSON:
		return rep.WriteJSON(c.stdout)
	case formatYAML:
		return rep.WriteYAML(c.stdout)
	}
	return rep.WriteText(c.stderr, report.TextOptions{Color: c.color()})
}

func (c *cli) writeResults(results []resolver.Result) error {
	if c.opts.format != formatText {
		docs := make([]resultDocument, 0, len(results))
		for _, result := range results {
			docs = append(docs, newResultDocument(result))
		}
		if len(docs) == 1 {
			return c.encode(docs[0])
		}
		return c.encode(docs)
	}
	for idx, result := range results {
		if idx > 0 {
			fmt.Fprintln(c.stdout)
		}
		if err := c.writeResultText(result); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) writeResultText(result resolver.Result) error {
	header := resultHeader(result)
	if !result.OK() {
		fmt.Fprintf(c.stdout, "%s: resolution failed\n", header)
		return result.Report.WriteText(c.stdout, report.TextOptions{Color: c.color()})
	}
	fmt.Fprintf(c.stdout, "%s: %d modules\n", header, len(result.Order))
	width := len(fmt.Sprint(len(result.Order)))
	for idx, name := range result.Order {
		fmt.Fprintf(c.stdout, "  %*d. %s\n", width, idx+1, name)
	}
	writeExcluded(c.stdout, result.Excluded)
	if len(result.Report.Diagnostics()) > 0 {
		return result.Report.WriteText(c.stdout, report.TextOptions{Color: c.color()})
	}
	return nil
}

func (c *cli) writeWaves(result resolver.Result, waves [][]string) error {
	if c.opts.format != formatText {
		doc := newResultDocument(result)
		doc.Waves = waves
		return c.encode(doc)
	}
	fmt.Fprintf(c.stdout, "%s: %d modules in %d waves\n", resultHeader(result), len(result.Order), len(waves))
	for idx, wave := range waves {
		fmt.Fprintf(c.stdout, "  wave %d: %s\n", idx+1, strings.Join(wave, ", "))
	}
	writeExcluded(c.stdout, result.Excluded)
	return nil
}

func (c *cli) writeValidation(loadRep *report.Report, results []resolver.Result) error {
	if c.opts.format != formatText {
		loadDiags := loadRep.Diagnostics()
		if loadDiags == nil {
			loadDiags = []report.Diagnostic{}
		}
		doc := struct {
			Descriptors []report.Diagnostic `json:"descriptors" yaml:"descriptors"`
			Results     []resultDocument    `json:"results" yaml:"results"`
		}{Descriptors: loadDiags}
		for _, result := range results {
			rd := newResultDocument(result)
			rd.Order = nil
			doc.Results = append(doc.Results, rd)
		}
		return c.encode(doc)
	}
	fmt.Fprintf(c.stdout, "descriptors: %s\n", loadRep.Summary())
	if len(loadRep.Diagnostics()) > 0 {
		if err := loadRep.WriteText(c.stdout, report.TextOptions{Color: c.color()}); err != nil {
			return err
		}
	}
	for _, result := range results {
		status := "ok"
		if !result.OK() {
			status = "failed"
		}
		fmt.Fprintf(c.stdout, "%s: %s (%s)\n", resultHeader(result), status, result.Report.Summary())
		for _, diag := range result.Report.Diagnostics() {
			fmt.Fprintf(c.stdout, "  %s [%s] %s\n", diag.Severity, diag.Kind, diag.Message)
		}
	}
	return nil
}

func resultHeader(result resolver.Result) string {
	header := result.Context.Key()
	if target := result.Request.Target; target != "" && !strings.Contains(header, target) {
		header = target + " " + header
	}
	return header
}

func writeExcluded(w io.Writer, excluded map[string]string) {
	if len(excluded) == 0 {
		return
	}
	names := make([]string, 0, len(excluded))
	for name := range excluded {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  excluded %s: %s\n", name, excluded[name])
	}
}
