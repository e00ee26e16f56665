// internal/tui/app.go
//
// Interactive browser for one resolution result. It follows The Elm
// Architecture like every bubbletea program:
//
// 1. Model: the result being browsed plus cursor and focus state
// 2. Update: key presses move the cursor, switch panes and mark anchors
// 3. View: the build order, the selected module and the diagnostics

package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/report"
	"github.com/kingrea/modgraph/internal/resolver"
)

const logPanelLines = 8

type paneFocus int

const (
	focusOrder paneFocus = iota
	focusDiagnostics
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithLogbook shows the tail of book below the panes.
func WithLogbook(book *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = book
	}
}

// App is the bubbletea model of the browser.
type App struct {
	result  resolver.Result
	logbook *logbook.Logbook

	order       list.Model
	focus       paneFocus
	diagnostics []report.Diagnostic
	diagCursor  int
	// anchor is the module "why" paths are traced from.
	anchor    string
	statusMsg string
	logLines  []logbook.Entry

	width  int
	height int
}

// moduleItem implements list.Item for one entry of the build order.
type moduleItem struct {
	name     string
	position int
	kind     string
	deps     int
}

func (i moduleItem) Title() string {
	if i.position <= 0 {
		return i.name
	}
	return fmt.Sprintf("%3d  %s", i.position, i.name)
}

func (i moduleItem) Description() string {
	return fmt.Sprintf("%s · %d dependencies", i.kind, i.deps)
}

func (i moduleItem) FilterValue() string { return i.name }

// NewApp creates the browser for result.
func NewApp(result resolver.Result, opts ...AppOption) *App {
	a := &App{result: result, diagnostics: result.Report.Diagnostics()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	items := buildOrderItems(result)
	order := list.New(items, list.NewDefaultDelegate(), 0, 0)
	order.Title = "Build order"
	if result.Order == nil {
		order.Title = "Modules (no build order)"
	}
	order.SetShowStatusBar(false)
	order.SetFilteringEnabled(false)
	order.SetShowHelp(false)
	a.order = order
	a.refreshLog()
	if result.OK() {
		a.statusMsg = fmt.Sprintf("%d modules ordered · %s", len(result.Order), result.Report.Summary())
	} else {
		a.statusMsg = result.Report.Summary()
	}
	return a
}

// buildOrderItems lists the ordered modules, or every graphed module sorted
// by name when the resolution failed.
func buildOrderItems(result resolver.Result) []list.Item {
	names := []string(result.Order)
	numbered := true
	if names == nil && result.Graph != nil {
		names = result.Graph.Names()
		numbered = false
	}
	items := make([]list.Item, 0, len(names))
	for idx, name := range names {
		item := moduleItem{name: name}
		if numbered {
			item.position = idx + 1
		}
		if result.Graph != nil {
			if node, ok := result.Graph.Node(name); ok {
				item.kind = string(node.Module.Kind)
				item.deps = len(node.Dependencies)
			}
		}
		items = append(items, item)
	}
	return items
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update handles key presses and window resizes.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.order.SetSize(max(20, msg.Width/3), max(5, msg.Height-14))
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "tab":
			if a.focus == focusOrder && len(a.diagnostics) > 0 {
				a.focus = focusDiagnostics
			} else {
				a.focus = focusOrder
			}
			return a, nil
		case "w":
			name := a.SelectedModule()
			if name == "" {
				return a, nil
			}
			a.anchor = name
			a.statusMsg = fmt.Sprintf("Tracing dependency paths from %s", name)
			return a, nil
		case "esc":
			if a.anchor != "" {
				a.anchor = ""
				a.statusMsg = "Cleared path anchor"
			}
			return a, nil
		case "r":
			a.refreshLog()
			a.statusMsg = "Reloaded journal"
			return a, nil
		case "up", "k":
			if a.focus == focusDiagnostics {
				if a.diagCursor > 0 {
					a.diagCursor--
				}
				return a, nil
			}
		case "down", "j":
			if a.focus == focusDiagnostics {
				if a.diagCursor < len(a.diagnostics)-1 {
					a.diagCursor++
				}
				return a, nil
			}
		}
	}

	if a.focus != focusOrder {
		return a, nil
	}
	var cmd tea.Cmd
	a.order, cmd = a.order.Update(msg)
	return a, cmd
}

// SelectedModule returns the name under the cursor of the build order.
func (a *App) SelectedModule() string {
	item, ok := a.order.SelectedItem().(moduleItem)
	if !ok {
		return ""
	}
	return item.name
}

// WhyPath returns the dependency path from the anchor to the selected module,
// or nil when no anchor is set or the selected module is not reachable.
func (a *App) WhyPath() []string {
	if a.anchor == "" || a.result.Graph == nil {
		return nil
	}
	return a.result.Graph.Path(a.anchor, a.SelectedModule())
}

func (a *App) refreshLog() {
	if a.logbook == nil {
		return
	}
	a.logLines = a.logbook.Entries(logPanelLines)
}

// View renders the panes.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 120
	}
	leftWidth := max(24, width/3)
	rightWidth := max(24, width-leftWidth-6)

	left := boxStyle.Width(leftWidth).Render(a.order.View())
	right := boxStyle.Width(rightWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		a.renderDetail(),
		"",
		a.renderDiagnostics(),
	))
	sections := []string{
		headerStyle.Render(fmt.Sprintf("⬡ MODGRAPH · %s", a.contextLabel())),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
	}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections,
		mutedStyle.Render(a.statusMsg),
		hintStyle.Render("↑/↓ move    tab switch pane    w trace from here    esc clear    r reload log    q quit"),
	)
	return strings.Join(sections, "\n")
}

func (a *App) contextLabel() string {
	label := a.result.Context.Key()
	if target := strings.TrimSpace(a.result.Request.Target); target != "" && !strings.Contains(label, target) {
		label = target + " · " + label
	}
	return label
}

func (a *App) renderDetail() string {
	name := a.SelectedModule()
	if name == "" {
		return mutedStyle.Render("No modules resolved.")
	}
	lines := []string{titleStyle.Render(name)}
	if a.result.Graph == nil {
		return strings.Join(lines, "\n")
	}
	node, ok := a.result.Graph.Node(name)
	if !ok {
		return strings.Join(lines, "\n")
	}
	if node.Module.Source != "" {
		lines = append(lines, mutedStyle.Render(node.Module.Source))
	}
	lines = append(lines,
		fmt.Sprintf("Kind: %s", node.Module.Kind),
		listLine("Depends on", node.Dependencies),
		listLine("Needed by", node.Dependents),
		listLine("Dynamic", node.Advisory),
		listLine("System", node.Externals),
	)
	if pos := a.result.Order.Index(name); pos >= 0 {
		lines = append(lines, fmt.Sprintf("Position: %d of %d", pos+1, len(a.result.Order)))
	}
	for _, warning := range node.Module.Warnings {
		lines = append(lines, warningStyle.Render("⚠ "+warning))
	}
	if a.anchor != "" && a.anchor != name {
		if path := a.WhyPath(); len(path) > 0 {
			lines = append(lines, fmt.Sprintf("Why: %s", strings.Join(path, " → ")))
		} else {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("Why: %s does not depend on %s", a.anchor, name)))
		}
	}
	return strings.Join(lines, "\n")
}

func listLine(label string, names []string) string {
	if len(names) == 0 {
		return fmt.Sprintf("%s: none", label)
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s: %s", label, strings.Join(sorted, ", "))
}

func (a *App) renderDiagnostics() string {
	title := titleStyle.Render(fmt.Sprintf("Diagnostics (%d)", len(a.diagnostics)))
	if len(a.diagnostics) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, okStyle.Render("✓ clean"))
	}
	rows := make([]string, 0, len(a.diagnostics))
	for idx, diag := range a.diagnostics {
		style := warningStyle
		if diag.Severity == report.SeverityError {
			style = errorStyle
		}
		marker := "  "
		if a.focus == focusDiagnostics && idx == a.diagCursor {
			marker = "› "
		}
		rows = append(rows, marker+style.Render(string(diag.Severity))+" "+diagnosticText(diag))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"))
}

func diagnosticText(diag report.Diagnostic) string {
	if len(diag.Path) > 0 {
		return fmt.Sprintf("[%s] cycle: %s", diag.Kind, strings.Join(diag.Path, " → "))
	}
	return fmt.Sprintf("[%s] %s", diag.Kind, diag.Message)
}

func (a *App) renderLogPanel() string {
	if len(a.logLines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	rows := make([]string, 0, len(a.logLines))
	for _, entry := range a.logLines {
		line := fmt.Sprintf("%s %s", entry.Time.Format("15:04:05"), entry.Message)
		if entry.Scope != "" {
			line = fmt.Sprintf("%s [%s] %s", entry.Time.Format("15:04:05"), entry.Scope, entry.Message)
		}
		switch entry.Level {
		case logbook.LevelError:
			line = errorStyle.Render(line)
		case logbook.LevelWarn:
			line = warningStyle.Render(line)
		}
		rows = append(rows, line)
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s", fileName))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, mutedStyle.Render(strings.Join(rows, "\n"))))
}

// Run starts the browser on the terminal and blocks until the user quits.
func Run(result resolver.Result, opts ...AppOption) error {
	_, err := tea.NewProgram(NewApp(result, opts...), tea.WithAltScreen()).Run()
	return err
}
