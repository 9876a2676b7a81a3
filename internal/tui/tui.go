// Package tui implements the full-screen plan pager used by the review
// checkpoint's View option.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// Model is the Bubble Tea model for the plan pager.
type Model struct {
	plan     *model.ImplementationPlan
	sections []Section

	// UI state
	width  int
	height int

	scrollOffset int
	viewHeight   int // visible lines in the plan area

	lines   []renderedLine
	anchors []int // indexes into lines

	jsonView bool
	showHelp bool
}

// New creates a pager model for p.
func New(p *model.ImplementationPlan) Model {
	m := Model{plan: p, sections: Sections(p)}
	m.updateLines()
	return m
}

func (m *Model) updateLines() {
	if m.jsonView {
		m.lines = renderJSON(m.plan)
	} else {
		m.lines = renderFormatted(m.sections)
	}
	m.anchors = nil
	for i, l := range m.lines {
		if l.Anchor {
			m.anchors = append(m.anchors, i)
		}
	}
	m.scrollOffset = 0
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = max(m.height-5, 1) // status bar, borders, title
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Down):
			m.scrollTo(m.scrollOffset + 1)
		case key.Matches(msg, keys.Up):
			m.scrollTo(m.scrollOffset - 1)
		case key.Matches(msg, keys.PageDown):
			m.scrollTo(m.scrollOffset + m.viewHeight)
		case key.Matches(msg, keys.PageUp):
			m.scrollTo(m.scrollOffset - m.viewHeight)
		case key.Matches(msg, keys.Top):
			m.scrollTo(0)
		case key.Matches(msg, keys.Bottom):
			m.scrollTo(len(m.lines) - 1)
		case key.Matches(msg, keys.NextSection):
			m.jumpToNextAnchor()
		case key.Matches(msg, keys.PrevSection):
			m.jumpToPrevAnchor()
		case key.Matches(msg, keys.Toggle):
			m.jsonView = !m.jsonView
			m.updateLines()
		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}
	return m, nil
}

func (m *Model) scrollTo(i int) {
	m.scrollOffset = max(0, min(i, len(m.lines)-1))
}

func (m *Model) jumpToNextAnchor() {
	for _, a := range m.anchors {
		if a > m.scrollOffset {
			m.scrollOffset = a
			return
		}
	}
}

func (m *Model) jumpToPrevAnchor() {
	for i := len(m.anchors) - 1; i >= 0; i-- {
		if m.anchors[i] < m.scrollOffset {
			m.scrollOffset = m.anchors[i]
			return
		}
	}
}

// currentAnchor is the index in anchors of the section holding the top
// visible line, or -1.
func (m Model) currentAnchor() int {
	cur := -1
	for i, a := range m.anchors {
		if a <= m.scrollOffset {
			cur = i
		}
	}
	return cur
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	listWidth := m.sectionListWidth()
	planWidth := m.width - listWidth - 1

	list := m.renderSectionList(listWidth, m.height-2)
	body := m.renderPlanView(planWidth, m.height-2)
	main := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", body)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) sectionListWidth() int {
	w := 20
	for _, a := range m.anchors {
		w = max(w, len(m.lines[a].Label)+6)
	}
	return max(min(w, m.width/3), 20)
}

func (m Model) renderSectionList(width, height int) string {
	cur := m.currentAnchor()
	var b strings.Builder
	for i, a := range m.anchors {
		style := sectionItemStyle
		if i == cur {
			style = sectionItemSelectedStyle
		}
		b.WriteString(style.Width(width - 4).Render(truncate(m.lines[a].Label, width-4)))
		if i < len(m.anchors)-1 {
			b.WriteByte('\n')
		}
	}
	return sectionListStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderPlanView(width, height int) string {
	inner := height - 2
	if len(m.lines) == 0 {
		return planViewStyle.Width(width).Height(inner).Render("No plan")
	}
	title := "Implementation Plan"
	if m.plan != nil && m.plan.TaskID != "" {
		title += ": " + m.plan.TaskID
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteByte('\n')
	end := min(m.scrollOffset+m.viewHeight, len(m.lines))
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], width-4))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return planViewStyle.Width(width).Height(inner).Render(b.String())
}

func (m Model) renderStatusBar() string {
	left := fmt.Sprintf(" Line %d/%d", m.scrollOffset+1, len(m.lines))
	if cur := m.currentAnchor(); cur >= 0 {
		left += fmt.Sprintf("  %s", m.lines[m.anchors[cur]].Label)
	}
	mode := "formatted"
	if m.jsonView {
		mode = "json"
	}
	right := fmt.Sprintf("%s  ? help  q back ", mode)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Plan Viewer Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, k := range []key.Binding{
		keys.Up, keys.Down, keys.PageDown, keys.PageUp, keys.Top, keys.Bottom,
		keys.NextSection, keys.PrevSection, keys.Toggle, keys.Help, keys.Quit,
	} {
		h := k.Help()
		fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc)
	}
	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))
	return b.String()
}
