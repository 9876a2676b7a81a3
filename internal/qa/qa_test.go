package qa

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/task"
)

var fixedNow = time.Date(2025, 10, 10, 10, 0, 0, 0, time.UTC)

func samplePlan() *model.ImplementationPlan {
	return &model.ImplementationPlan{
		TaskID:               "TASK-7",
		FilesToCreate:        []string{"auth/login.go", "auth/login_test.go"},
		ExternalDependencies: []string{"golang-jwt"},
		PatternsUsed:         []string{"Strategy"},
		EstimatedDuration:    "4 hours",
		EstimatedLOC:         240,
		RawPlan:              "Add oauth login backed by jwt tokens",
		Risks: []model.Risk{
			{Description: "token leakage", Level: model.RiskHigh, Mitigation: "short expiry"},
			{Description: "clock skew", Level: model.RiskLow},
		},
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		question string
		want     Category
		matched  []string
	}{
		{"Why was this chosen?", CategoryRationale, []string{"why", "chose", "chosen"}},
		{"What are the risks?", CategoryRisks, []string{"risk", "risks"}},
		{"How long will this take?", CategoryDuration, []string{"long", "how long"}},
		{"Which library is used?", CategoryDependencies, []string{"library"}},
		{"Tell me more", CategoryGeneral, nil},
		// one keyword each: the earlier table entry wins
		{"test the file", CategoryTesting, []string{"test"}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, matched := Matcher{}.Match(tt.question)
			assert.Equal(t, tt.want, got)
			if tt.matched != nil {
				assert.Equal(t, tt.matched, matched)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	m := NewManager(Deps{}, "TASK-7", samplePlan())
	assert.Equal(t, 4, m.Ask("hello there").Confidence)
	assert.Equal(t, 6, m.Ask("which library?").Confidence)
	assert.Equal(t, 8, m.Ask("what are the risks?").Confidence)
}

func TestAskFormatsAnswer(t *testing.T) {
	a := NewManager(Deps{}, "TASK-7", samplePlan()).Ask("What are the risks?")
	assert.Equal(t, CategoryRisks, a.Category)
	assert.True(t, strings.HasPrefix(a.Text, "**Risk Assessment** (from Implementation Plan)\n\n"))
	assert.Contains(t, a.Text, "**HIGH**: token leakage\n  Mitigation: short expiry")
	assert.Contains(t, a.Text, "Mitigation: No mitigation specified")
	assert.Contains(t, a.Text, "**Security Sensitive**")
	assert.True(t, strings.HasSuffix(a.Text, answerNote))
}

func TestExtractFallbacks(t *testing.T) {
	empty := &model.ImplementationPlan{TaskID: "T"}
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryRationale, "No specific rationale documented in plan."},
		{CategoryTesting, "No explicit test strategy documented. Standard unit and integration tests recommended."},
		{CategoryRisks, "No specific risks identified in plan."},
		{CategoryDuration, "No time estimates provided in plan."},
		{CategoryFiles, "No files specified in plan."},
		{CategoryDependencies, "No external dependencies specified in plan."},
		{CategoryPhases, "No explicit phases defined in plan."},
	}
	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Extractor{}.Extract(empty, tt.category).Content)
		})
	}
}

func TestExtractFilesTruncates(t *testing.T) {
	p := &model.ImplementationPlan{}
	for i := 0; i < 12; i++ {
		p.FilesToCreate = append(p.FilesToCreate, filepath.Join("pkg", string(rune('a'+i))+".go"))
	}
	sec := Extractor{}.Extract(p, CategoryFiles)
	assert.Contains(t, sec.Content, "**Files to Create/Modify**: 12 files\n")
	assert.Contains(t, sec.Content, "  10. pkg/j.go")
	assert.NotContains(t, sec.Content, "pkg/k.go")
	assert.Contains(t, sec.Content, "  ... and 2 more files")
}

func TestExtractComplexity(t *testing.T) {
	p := samplePlan()
	sec := Extractor{}.Extract(p, CategoryComplexity)
	assert.Equal(t, sourcePlan, sec.Source)
	assert.Equal(t, "**Files to Create**: 2\n**Dependencies**: 1\n**Estimated LOC**: 240", sec.Content)

	p.Complexity = &model.ComplexityScore{
		TotalScore: 6,
		Factors:    []model.FactorScore{{Name: "file_complexity", Score: 1, MaxScore: 3, Justification: "Simple change (2 files)"}},
	}
	sec = Extractor{}.Extract(p, CategoryComplexity)
	assert.Equal(t, sourceComplexity, sec.Source)
	assert.Contains(t, sec.Content, "  - file_complexity: 1/3\n    Simple change (2 files)")

	dur := Extractor{}.Extract(p, CategoryDuration)
	assert.Contains(t, dur.Content, "Medium complexity, moderate time investment")
}

func newConsole(t *testing.T, script ...string) (*input.Console, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	c := input.NewConsole(strings.NewReader(strings.Join(script, "\n")+"\n"), out)
	t.Cleanup(c.Close)
	return c, out
}

func TestRunRecordsExchanges(t *testing.T) {
	con, out := newConsole(t, "help", "", "What are the risks?", "Which library?", "back", "ignored")
	m := NewManager(Deps{Console: con, Logger: zaptest.NewLogger(t), Now: func() time.Time { return fixedNow }}, "TASK-7", samplePlan())

	s, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitBack, s.ExitReason)
	require.Len(t, s.Exchanges, 2)
	assert.Equal(t, "What are the risks?", s.Exchanges[0].Question)
	assert.Equal(t, 8, s.Exchanges[0].Confidence)
	assert.True(t, strings.HasPrefix(s.ID, "qa-TASK-7-"))
	require.NotNil(t, s.EndedAt)

	text := out.String()
	assert.Contains(t, text, "EXAMPLE QUESTIONS BY CATEGORY:")
	assert.Contains(t, text, "**Matched Keywords**: risk, risks")
	assert.Contains(t, text, "Asked 2 questions.")
}

func TestRunEOFEndsAsBack(t *testing.T) {
	con, _ := newConsole(t, "what files?")
	s, err := NewManager(Deps{Console: con}, "TASK-7", samplePlan()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitBack, s.ExitReason)
	assert.Len(t, s.Exchanges, 1)
}

func TestRunInterrupted(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	out := &bytes.Buffer{}
	con := input.NewConsole(r, out)
	defer con.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := NewManager(Deps{Console: con}, "TASK-7", samplePlan()).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, ExitInterrupt, s.ExitReason)
	assert.Contains(t, out.String(), "Q&A session interrupted.")
}

func TestSaveToTaskKeepsQASessionKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TASK-7.md")
	existing := "---\nid: TASK-7\nstatus: in_progress\nqa_session:\n  session_id: qa-old\n---\n# Body\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	for i := 0; i < 2; i++ {
		con, _ := newConsole(t, "why?", "back")
		m := NewManager(Deps{Console: con, Now: func() time.Time { return fixedNow }}, "TASK-7", samplePlan())
		_, err := m.Run(context.Background())
		require.NoError(t, err)
		require.NoError(t, m.SaveToTask(path))
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\nqa_session:\n")

	f, err := task.Load(path)
	require.NoError(t, err)
	current, ok := f.Meta.QASession.(map[string]any)
	require.True(t, ok, "qa_session should decode as a map, got %T", f.Meta.QASession)
	assert.Equal(t, "back", current["exit_reason"])
	assert.NotEqual(t, "qa-old", current["session_id"])

	require.Len(t, f.Meta.QAHistory, 2)
	first, ok := f.Meta.QAHistory[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "qa-old", first["session_id"])
	assert.Equal(t, "2025-10-10T10:00:00Z", f.Meta.Updated)
	assert.Equal(t, "# Body\n", f.Body)
}
