package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprite-ai/reviewgate/internal/model"
)

func testPlan() *model.ImplementationPlan {
	return &model.ImplementationPlan{
		TaskID:               "TASK-9",
		FilesToCreate:        []string{"auth/login.go", "auth/login_test.go"},
		ExternalDependencies: []string{"golang-jwt"},
		EstimatedDuration:    "4 hours",
		EstimatedLOC:         240,
		Phases:               []string{"Scaffold", "Wire handlers"},
		Risks: []model.Risk{
			{Description: "token leakage", Level: model.RiskHigh, Mitigation: "short expiry"},
		},
		RawPlan: "Add login.\nBack it with jwt.",
	}
}

func press(m Model, r rune) Model {
	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return newM.(Model)
}

func setupModel(t *testing.T) Model {
	t.Helper()
	m := New(testPlan())
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return newM.(Model)
}

func TestSections(t *testing.T) {
	var titles []string
	for _, s := range Sections(testPlan()) {
		titles = append(titles, s.Title)
	}
	want := "Overview,Files to Create,Dependencies,Phases,Risks,Plan"
	if got := strings.Join(titles, ","); got != want {
		t.Errorf("sections = %s, want %s", got, want)
	}
	if Sections(nil) != nil {
		t.Error("expected no sections for a nil plan")
	}
}

func TestFormatPlan(t *testing.T) {
	got := FormatPlan(testPlan())
	for _, want := range []string{
		"Overview\n--------\nTask: TASK-9\n",
		"  - auth/login.go\n",
		"1. Scaffold\n2. Wire handlers\n",
		"[HIGH] token leakage\n    Mitigation: short expiry\n",
		"Add login.\nBack it with jwt.\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatPlan missing %q:\n%s", want, got)
		}
	}
	if FormatPlan(nil) != "(empty plan)\n" {
		t.Error("unexpected output for nil plan")
	}
}

func TestSectionNavigation(t *testing.T) {
	m := setupModel(t)
	if m.currentAnchor() != 0 {
		t.Fatalf("expected first section, got %d", m.currentAnchor())
	}

	m = press(m, 'n')
	if m.currentAnchor() != 1 || m.lines[m.scrollOffset].Label != "Files to Create" {
		t.Errorf("expected Files to Create, got %q", m.lines[m.scrollOffset].Label)
	}

	for range 10 {
		m = press(m, 'n')
	}
	if got := m.lines[m.scrollOffset].Label; got != "Plan" {
		t.Errorf("expected to stop at last section, got %q", got)
	}

	m = press(m, 'N')
	if got := m.lines[m.scrollOffset].Label; got != "Risks" {
		t.Errorf("expected Risks after prev, got %q", got)
	}
}

func TestScrolling(t *testing.T) {
	m := setupModel(t)

	m = press(m, 'j')
	if m.scrollOffset != 1 {
		t.Errorf("expected scrollOffset 1, got %d", m.scrollOffset)
	}
	m = press(m, 'k')
	m = press(m, 'k')
	if m.scrollOffset != 0 {
		t.Errorf("expected scrollOffset 0 at top, got %d", m.scrollOffset)
	}
	m = press(m, 'G')
	if m.scrollOffset != len(m.lines)-1 {
		t.Errorf("expected bottom, got %d of %d", m.scrollOffset, len(m.lines))
	}
	m = press(m, 'g')
	if m.scrollOffset != 0 {
		t.Errorf("expected top, got %d", m.scrollOffset)
	}
}

func TestToggleJSON(t *testing.T) {
	m := setupModel(t)
	m = press(m, 'j')

	m = press(m, 'v')
	if !m.jsonView || m.scrollOffset != 0 {
		t.Fatalf("expected json view from the top, got json=%v offset=%d", m.jsonView, m.scrollOffset)
	}
	var labels []string
	for _, a := range m.anchors {
		labels = append(labels, m.lines[a].Label)
	}
	if !strings.Contains(strings.Join(labels, ","), "files_to_create") {
		t.Errorf("expected json keys as anchors, got %v", labels)
	}
	if !strings.Contains(m.View(), "json") {
		t.Error("expected status bar to show json mode")
	}

	m = press(m, 'v')
	if m.jsonView {
		t.Error("expected formatted view after second toggle")
	}
}

func TestViewRenders(t *testing.T) {
	view := setupModel(t).View()
	for _, want := range []string{"Implementation Plan: TASK-9", "Overview", "Estimated LOC: 240", "formatted"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if New(testPlan()).View() != "Loading..." {
		t.Error("expected loading view before size is known")
	}
}

func TestHelpToggle(t *testing.T) {
	m := press(setupModel(t), '?')
	if !m.showHelp {
		t.Fatal("expected help to be shown")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("expected help view to contain shortcuts")
	}
}

func TestQuit(t *testing.T) {
	_, cmd := setupModel(t).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestPagerNeedsTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "in"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	err = NewPager(f, os.Stdout).Show(context.Background(), testPlan())
	if !errors.Is(err, ErrNoTerminal) {
		t.Errorf("Show = %v, want ErrNoTerminal", err)
	}
}

func joinTokens(toks []token) string {
	var b strings.Builder
	for _, tok := range toks {
		b.WriteString(tok.Text)
	}
	return b.String()
}

func TestHighlightJSONKeepsLines(t *testing.T) {
	lines := []string{"{", `  "a": 1,`, `  "b": "x"`, "}"}
	got := highlightJSON(lines)
	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	if joinTokens(got[1]) != lines[1] {
		t.Errorf("tokens = %q, want %q", joinTokens(got[1]), lines[1])
	}
}

func TestHighlightFences(t *testing.T) {
	lines := []string{
		"Add a handler:",
		"```go",
		"func Login() error {",
		"\treturn nil",
		"}",
		"```",
		"```nosuchlang",
		"plain text",
		"```",
		"Then wire it.",
	}
	got := highlightFences(lines)
	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	for _, i := range []int{0, 1, 5, 6, 7, 8, 9} {
		if got[i] != nil {
			t.Errorf("line %d %q should not be highlighted", i, lines[i])
		}
	}
	for _, i := range []int{2, 3, 4} {
		if joinTokens(got[i]) != lines[i] {
			t.Errorf("line %d tokens = %q, want %q", i, joinTokens(got[i]), lines[i])
		}
	}
	colored := false
	for _, tok := range got[2] {
		if tok.Color != "" {
			colored = true
		}
	}
	if !colored {
		t.Error("expected go keywords to be colored")
	}
}

func TestFenceOpen(t *testing.T) {
	tests := []struct {
		line string
		lang string
		ok   bool
	}{
		{"```go", "go", true},
		{"  ```YAML title", "yaml", true},
		{"```", "", true},
		{"code", "", false},
	}
	for _, tt := range tests {
		lang, ok := fenceOpen(tt.line)
		if lang != tt.lang || ok != tt.ok {
			t.Errorf("fenceOpen(%q) = %q, %v, want %q, %v", tt.line, lang, ok, tt.lang, tt.ok)
		}
	}
	if lexerFor("golang") == nil || lexerFor("tsx") == nil {
		t.Error("expected lexers for alias and extension tags")
	}
	if lexerFor("") != nil {
		t.Error("empty tag should have no lexer")
	}
}

func TestRenderFormattedHighlightsFencedPlan(t *testing.T) {
	p := testPlan()
	p.RawPlan = "Steps:\n```go\npackage auth\n```"
	var code *renderedLine
	lines := renderFormatted(Sections(p))
	for i := range lines {
		if lines[i].Content == "package auth" {
			code = &lines[i]
		}
	}
	if code == nil {
		t.Fatal("fenced line missing from formatted view")
	}
	if len(code.Tokens) == 0 {
		t.Error("fenced go line should carry tokens")
	}
	for _, l := range lines {
		if l.Content == "Steps:" && l.Tokens != nil {
			t.Error("prose line should not carry tokens")
		}
	}
}
