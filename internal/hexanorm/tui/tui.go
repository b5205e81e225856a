package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
)

var (
	focusedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	normalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	violationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true)

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true)
)

type item struct {
	unit       *domain.Unit
	violations int
}

func (i item) Title() string {
	if i.violations > 0 {
		return fmt.Sprintf("%s (%d)", i.unit.SimpleName(), i.violations)
	}
	return i.unit.SimpleName()
}
func (i item) Description() string { return fmt.Sprintf("%s %s", i.unit.Visibility, i.unit.Kind) }
func (i item) FilterValue() string { return i.unit.Name }

// ResultMsg delivers a fresh check result, typically from the file watcher.
type ResultMsg struct {
	Result *checker.Result
	Err    error
}

// Model is a board with one column per layer (plus UNASSIGNED) and a detail pane for the
// selected unit.
type Model struct {
	result *checker.Result
	err    error

	columns  []string
	lists    []list.Model
	focused  int
	viewport viewport.Model

	ready  bool
	width  int
	height int
}

func NewModel(res *checker.Result) Model {
	m := Model{}
	m.load(res)
	return m
}

func (m *Model) load(res *checker.Result) {
	m.result = res
	m.columns = append(res.Layers.Registry().Names(), domain.Unassigned)

	perUnit := make(map[string]int)
	for _, v := range res.Report.Violations {
		if v.Unit != "" {
			perUnit[v.Unit]++
		}
		if v.Edge != nil {
			perUnit[v.Edge.From]++
		}
	}

	lists := make([]list.Model, len(m.columns))
	for i, layer := range m.columns {
		names := res.Layers.Members(layer)
		items := make([]list.Item, 0, len(names))
		for _, n := range names {
			u, ok := res.Catalog.Get(n)
			if !ok {
				continue
			}
			items = append(items, item{unit: u, violations: perUnit[n]})
		}
		l := list.New(items, list.NewDefaultDelegate(), 0, 0)
		l.Title = fmt.Sprintf("%s (%d)", layer, len(items))
		l.SetShowHelp(false)
		if i < len(m.lists) {
			l.SetSize(m.lists[i].Width(), m.lists[i].Height())
		}
		lists[i] = l
	}
	m.lists = lists
	if m.focused >= len(m.lists) {
		m.focused = 0
	}
	if m.ready {
		m.resize()
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			m.focused--
			if m.focused < 0 {
				m.focused = len(m.lists) - 1
			}
		case "right", "l":
			m.focused++
			if m.focused >= len(m.lists) {
				m.focused = 0
			}
		}
	case ResultMsg:
		m.err = msg.Err
		if msg.Err == nil && msg.Result != nil {
			m.load(msg.Result)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height/3)
			m.viewport.YPosition = msg.Height - msg.Height/3
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height / 3
		}
		m.resize()
	}

	m.lists[m.focused], cmd = m.lists[m.focused].Update(msg)
	cmds = append(cmds, cmd)

	if it, ok := m.lists[m.focused].SelectedItem().(item); ok {
		m.viewport.SetContent(m.renderDetails(it.unit))
	} else {
		m.viewport.SetContent("No units in this layer.")
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	colWidth := m.width / max(len(m.lists), 1)
	listHeight := m.height - m.viewport.Height - 6
	for i := range m.lists {
		m.lists[i].SetSize(colWidth-2, listHeight)
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	cols := make([]string, len(m.lists))
	for i, l := range m.lists {
		style := normalStyle
		if i == m.focused {
			style = focusedStyle
		}
		cols[i] = style.Render(l.View())
	}

	board := lipgloss.JoinHorizontal(lipgloss.Left, cols...)
	details := detailStyle.Width(m.width - 4).Render(m.viewport.View())

	return lipgloss.JoinVertical(lipgloss.Left, m.header(), board, details)
}

func (m Model) header() string {
	summary := report.Summary(m.result.Report)
	style := passStyle
	if m.result.Report.Failed() {
		style = failStyle
	}
	h := style.Render(summary)
	if n := len(m.result.Report.RuleErrors); n > 0 {
		h += failStyle.Render(fmt.Sprintf("  %d rule errors", n))
	}
	if m.err != nil {
		h += failStyle.Render("  last re-check failed: " + m.err.Error())
	}
	return h
}

func (m Model) renderDetails(u *domain.Unit) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Unit: %s\n", u.Name)
	fmt.Fprintf(&sb, "Kind: %s  Visibility: %s  Top-level: %t\n", u.Kind, u.Visibility, u.TopLevel)
	fmt.Fprintf(&sb, "Layer: %s\n", m.result.Layers.LayerOf(u.Name))
	if u.Source != "" {
		fmt.Fprintf(&sb, "Source: %s\n", u.Source)
	}

	sb.WriteString("\nViolations:\n")
	vs := m.result.Report.For(u.Name)
	for _, v := range vs {
		sb.WriteString(violationStyle.Render(fmt.Sprintf("- [%s] %s: %s", v.Severity, v.Rule, v.Message)) + "\n")
	}
	if len(vs) == 0 {
		sb.WriteString("No violations found.\n")
	}

	sb.WriteString("\nOutgoing Edges:\n")
	for _, e := range m.result.Edges.From(u.Name) {
		fmt.Fprintf(&sb, "-> %s (%s)\n", e.To, e.Kind)
	}

	sb.WriteString("\nIncoming Edges:\n")
	for _, e := range m.result.Edges.To(u.Name) {
		fmt.Fprintf(&sb, "<- %s (%s)\n", e.From, e.Kind)
	}

	return sb.String()
}
