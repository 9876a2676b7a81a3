package review

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/task"
)

var fixedNow = time.Date(2025, 10, 12, 9, 30, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// keys delivers key on the nth poll, or fails to open.
type keys struct {
	key     rune
	at      int
	polls   int
	openErr error
}

func (k *keys) Open() (func() error, error) {
	if k.openErr != nil {
		return nil, k.openErr
	}
	return func() error { return nil }, nil
}

func (k *keys) Poll() (rune, bool, error) {
	k.polls++
	if k.at > 0 && k.polls == k.at {
		return k.key, true, nil
	}
	return 0, false, nil
}

type recorder struct{ events []metrics.Event }

func (r *recorder) Record(_ context.Context, e metrics.Event) error {
	r.events = append(r.events, e)
	return nil
}

func samplePlan() *model.ImplementationPlan {
	return &model.ImplementationPlan{
		TaskID:                     "TASK-1",
		FilesToCreate:              []string{"a.go", "b.go"},
		ExternalDependencies:       []string{"zap"},
		PatternsUsed:               []string{"Repository", "Strategy", "Observer", "Factory"},
		EstimatedLOC:               180,
		EstimatedDuration:          "3 hours",
		ImplementationInstructions: strings.Repeat("x", 250),
		Risks:                      []model.Risk{{Description: "data loss", Level: model.RiskHigh, Mitigation: "backups"}},
	}
}

func sampleScore(total int) model.ComplexityScore {
	return model.ComplexityScore{
		TotalScore: total,
		Mode:       model.ModeFor(total, nil),
		Factors: []model.FactorScore{
			{Name: "file_complexity", Score: 1, MaxScore: 3, Justification: "2 files"},
		},
		Metadata: map[string]any{"warnings": []any{"w1", "w2", "w3"}},
	}
}

func quick(t *testing.T, k *keys) (*QuickHandler, *bytes.Buffer, *recorder) {
	t.Helper()
	out := &bytes.Buffer{}
	rec := &recorder{}
	h := NewQuickHandler(QuickDeps{
		Keys:    k,
		Out:     out,
		Logger:  zaptest.NewLogger(t),
		Clock:   &fakeClock{now: fixedNow},
		Results: NewResultStore(t.TempDir()),
		Metrics: rec,
	})
	return h, out, rec
}

func TestQuickTimeoutAutoApproves(t *testing.T) {
	h, out, rec := quick(t, &keys{})
	res, err := h.Run(context.Background(), sampleScore(5), samplePlan(), "TASK-1")
	require.NoError(t, err)

	assert.Equal(t, QuickTimeout, res.Action)
	assert.True(t, res.AutoApproved)
	assert.Equal(t, "auto_approved", res.MetadataUpdates["review_action"])
	assert.Equal(t, 50, res.MetadataUpdates["complexity_score"])

	got := out.String()
	assert.Contains(t, got, "ARCHITECTURAL REVIEW - QUICK MODE")
	assert.Contains(t, got, "[SCORE: 50/100 - Needs Revision]")
	assert.Contains(t, got, "Files to Create: 2 files (180 lines)")
	assert.Contains(t, got, strings.Repeat("x", 197)+"...")
	assert.Contains(t, got, "Key Patterns: Repository, Strategy, Observer\n")
	assert.Contains(t, got, "Warnings: 3 issue(s) detected")
	assert.NotContains(t, got, "  - w3")

	require.Len(t, rec.events, 1)
	assert.Equal(t, "timeout", rec.events[0].Action)

	path, err := h.SaveResult(res, "TASK-1")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action": "timeout"`)
	assert.Contains(t, string(data), `"auto_approved": true`)
	assert.Equal(t, "TASK-1_review_result.json", filepath.Base(path))
}

func TestQuickKeys(t *testing.T) {
	tests := []struct {
		name   string
		key    rune
		action QuickAction
		review string
	}{
		{"enter", '\n', QuickEnter, "escalated_to_full"},
		{"cancel", 'C', QuickCancel, "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := quick(t, &keys{key: tt.key, at: 3})
			res, err := h.Run(context.Background(), sampleScore(4), samplePlan(), "TASK-1")
			require.NoError(t, err)
			assert.Equal(t, tt.action, res.Action)
			assert.False(t, res.AutoApproved)
			assert.Equal(t, tt.review, res.MetadataUpdates["review_action"])
		})
	}
}

func TestQuickErrorEscalates(t *testing.T) {
	h, out, _ := quick(t, &keys{openErr: errors.New("no tty")})
	res, err := h.Run(context.Background(), sampleScore(5), nil, "TASK-1")
	require.NoError(t, err)
	assert.Equal(t, QuickEnter, res.Action)
	assert.Contains(t, out.String(), "Escalating to full review for safety...")
}

func TestQuickInterrupt(t *testing.T) {
	h, _, rec := quick(t, &keys{key: 0x03, at: 1})
	_, err := h.Run(context.Background(), sampleScore(5), samplePlan(), "TASK-1")
	assert.ErrorIs(t, err, input.ErrInterrupted)
	assert.Empty(t, rec.events)
}

func TestBadge(t *testing.T) {
	assert.Equal(t, "[SCORE: 90/100 - Excellent]", Badge(90))
	assert.Equal(t, "[SCORE: 60/100 - Acceptable]", Badge(60))
	assert.Equal(t, "[SCORE: 30/100 - Needs Revision]", Badge(30))
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", instructionsLimit))

	long := strings.Repeat("é", instructionsLimit+10)
	got := truncate(long, instructionsLimit)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, instructionsLimit, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSeparatorWidth(t *testing.T) {
	assert.Equal(t, 70, separatorWidth(40))
	assert.Equal(t, 100, separatorWidth(100))
	assert.Equal(t, 120, separatorWidth(300))
}

type fakePager struct {
	err   error
	shown int
}

func (p *fakePager) Show(context.Context, *model.ImplementationPlan) error {
	p.shown++
	return p.err
}

type fullHarness struct {
	h     *FullHandler
	out   *bytes.Buffer
	tasks *task.Store
	plans *plan.Store
	file  *task.File
	rec   *recorder
	pager *fakePager
}

func newFull(t *testing.T, script ...string) *fullHarness {
	t.Helper()
	dir := t.TempDir()
	now := func() time.Time { return fixedNow }
	tasks := task.NewStore(filepath.Join(dir, "tasks")).WithClock(now)
	f := &task.File{
		Path: filepath.Join(tasks.Dir(task.StateInProgress), "TASK-1.md"),
		Meta: task.Meta{ID: "TASK-1", Title: "Add login", Status: task.StateInProgress},
		Body: "# Add login\n",
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path), 0o755))
	require.NoError(t, f.Save())

	plans := plan.NewStore(filepath.Join(dir, "state")).WithClock(now)
	require.NoError(t, plans.Save("TASK-1", samplePlan(), nil))

	out := &bytes.Buffer{}
	con := input.NewConsole(strings.NewReader(strings.Join(script, "\n")+"\n"), out)
	t.Cleanup(con.Close)

	rec := &recorder{}
	pager := &fakePager{}
	h := NewFullHandler(FullDeps{
		Console: con,
		Pager:   pager,
		Tasks:   tasks,
		Plans:   plans,
		Metrics: rec,
		Logger:  zaptest.NewLogger(t),
		Now:     now,
	})
	return &fullHarness{h: h, out: out, tasks: tasks, plans: plans, file: f, rec: rec, pager: pager}
}

func (fh *fullHarness) run(t *testing.T) *FullResult {
	t.Helper()
	res, err := fh.h.Run(context.Background(), FullRequest{
		TaskID:   "TASK-1",
		TaskFile: fh.file,
		Score:    sampleScore(8),
		Plan:     samplePlan(),
	})
	require.NoError(t, err)
	return res
}

func TestFullApprove(t *testing.T) {
	fh := newFull(t, "approve")
	res := fh.run(t)

	assert.Equal(t, ActionApprove, res.Action)
	assert.True(t, res.ProceedToImplementation)
	got := fh.out.String()
	assert.Contains(t, got, "IMPLEMENTATION PLAN REVIEW")
	assert.Contains(t, got, "Task: TASK-1 - Add login")
	assert.Contains(t, got, "Complexity: 🔴 8/10")
	assert.Contains(t, got, "✅ Plan approved!")

	saved, err := task.Load(fh.file.Path)
	require.NoError(t, err)
	require.NotNil(t, saved.Meta.ImplementationPlan)
	assert.True(t, saved.Meta.ImplementationPlan.Approved)
	assert.Equal(t, "full_required", saved.Meta.ImplementationPlan.ReviewMode)
	assert.Equal(t, 8, saved.Meta.ImplementationPlan.ComplexityScore)

	md := res.MetadataUpdates["implementation_plan"].(map[string]any)
	assert.Equal(t, "user", md["approved_by"])
	assert.Equal(t, 0, md["review_duration_seconds"])
	require.Len(t, fh.rec.events, 1)
	assert.Equal(t, "approve", fh.rec.events[0].Action)
}

func TestFullEscalatedApprovalMode(t *testing.T) {
	fh := newFull(t, "a")
	res, err := fh.h.Run(context.Background(), FullRequest{
		TaskID: "TASK-1", TaskFile: fh.file, Score: sampleScore(5), Plan: samplePlan(), Escalated: true,
	})
	require.NoError(t, err)
	md := res.MetadataUpdates["implementation_plan"].(map[string]any)
	assert.Equal(t, "escalated", md["review_mode"])
	assert.Contains(t, fh.out.String(), "Escalated from quick review")
}

func TestFullCancelConfirmed(t *testing.T) {
	fh := newFull(t, "c", "yes")
	res := fh.run(t)

	assert.Equal(t, ActionCancel, res.Action)
	assert.Equal(t, "user_requested", res.MetadataUpdates["cancellation_reason"])
	backlog := filepath.Join(fh.tasks.Dir(task.StateBacklog), "TASK-1.md")
	moved, err := task.Load(backlog)
	require.NoError(t, err)
	assert.True(t, moved.Meta.Cancelled)
	assert.Equal(t, task.StateBacklog, moved.Meta.Status)
	_, err = os.Stat(filepath.Join(fh.tasks.Dir(task.StateInProgress), "TASK-1.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestFullCancelDeclinedReturnsToCheckpoint(t *testing.T) {
	fh := newFull(t, "c", "n", "a")
	res := fh.run(t)
	assert.Equal(t, ActionApprove, res.Action)
	assert.Contains(t, fh.out.String(), "Cancellation aborted. Returning to checkpoint...")
}

func TestFullEOFCancels(t *testing.T) {
	fh := newFull(t)
	res := fh.run(t)
	assert.Equal(t, ActionCancel, res.Action)
	assert.Contains(t, fh.out.String(), "Interrupt detected. Treating as cancellation request...")
}

func TestFullInvalidChoices(t *testing.T) {
	fh := newFull(t, "", "x", "zz", "9", "a")
	res := fh.run(t)
	assert.Equal(t, ActionApprove, res.Action)
	got := fh.out.String()
	assert.Contains(t, got, "Please enter a choice (A/M/V/Q/C)")
	assert.Contains(t, got, "❌ Invalid choice: 'zz'")
	assert.Contains(t, got, "4 invalid attempts. Please review options carefully.")
	assert.NotContains(t, got, "5 invalid attempts")
}

func TestFullBlankInputCountsAsInvalid(t *testing.T) {
	fh := newFull(t, "", "", "", "a")
	res := fh.run(t)
	assert.Equal(t, ActionApprove, res.Action)
	got := fh.out.String()
	assert.Equal(t, 3, strings.Count(got, "Please enter a choice (A/M/V/Q/C)"))
	assert.Contains(t, got, "3 invalid attempts. Please review options carefully.")
}

func TestFullViewFallsBackInline(t *testing.T) {
	fh := newFull(t, "v", "a")
	fh.pager.err = errors.New("no terminal")
	fh.run(t)
	assert.Equal(t, 1, fh.pager.shown)
	assert.Contains(t, fh.out.String(), "Could not open pager, displaying inline instead:")
}

func TestFullModifyCreatesVersion(t *testing.T) {
	fh := newFull(t,
		"m",
		"1", "1", "new.go", "6", // add a file
		"7", "y", // save
		"a",
	)
	res := fh.run(t)
	assert.Equal(t, ActionApprove, res.Action)
	assert.Contains(t, res.Plan.FilesToCreate, "new.go")
	require.NotNil(t, res.Plan.Complexity)

	got := fh.out.String()
	assert.Contains(t, got, "✅ Changes applied successfully!")
	assert.Contains(t, got, "Created plan version 2")
	assert.Contains(t, got, "New complexity score:")

	vm := fh.plans.Versions("TASK-1", nil)
	assert.Equal(t, 2, vm.Count())
	v2, err := vm.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Modified in review (1 changes)", v2.ChangeReason)
}

func TestFullQuestionSavesSession(t *testing.T) {
	fh := newFull(t, "q", "What are the risks?", "back", "a")
	res := fh.run(t)
	assert.Equal(t, ActionApprove, res.Action)

	saved, err := task.Load(fh.file.Path)
	require.NoError(t, err)
	require.NotNil(t, saved.Meta.QASession)
	assert.Empty(t, saved.Meta.QAHistory)
	require.NotNil(t, saved.Meta.ImplementationPlan)
	assert.Contains(t, fh.out.String(), "Q&A session saved to task metadata")
}

func TestCheckpointAutoProceedSkipsPrompt(t *testing.T) {
	fh := newFull(t)
	cp := &Checkpoint{Full: fh.h, Tasks: fh.tasks}
	out, err := cp.Review(context.Background(), CheckpointRequest{
		FullRequest: FullRequest{TaskID: "TASK-1", TaskFile: fh.file, Score: sampleScore(2), Plan: samplePlan()},
	})
	require.NoError(t, err)
	assert.Equal(t, "auto", out.Handler)
	assert.True(t, out.Approved)
	assert.Empty(t, fh.out.String())
}

func TestCheckpointMandatoryRunsFull(t *testing.T) {
	fh := newFull(t, "a")
	cp := &Checkpoint{Full: fh.h, Tasks: fh.tasks}
	out, err := cp.Review(context.Background(), CheckpointRequest{
		FullRequest: FullRequest{TaskID: "TASK-1", TaskFile: fh.file, Score: sampleScore(2), Plan: samplePlan()},
		Mandatory:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "full", out.Handler)
	assert.True(t, out.Approved)
}

func TestCheckpointQuickEscalatesToFull(t *testing.T) {
	fh := newFull(t, "a")
	qh, _, _ := quick(t, &keys{key: '\n', at: 2})
	cp := &Checkpoint{Quick: qh, Full: fh.h, Tasks: fh.tasks}
	out, err := cp.Review(context.Background(), CheckpointRequest{
		FullRequest: FullRequest{TaskID: "TASK-1", TaskFile: fh.file, Score: sampleScore(5), Plan: samplePlan()},
	})
	require.NoError(t, err)
	assert.Equal(t, "full", out.Handler)
	assert.True(t, out.Approved)

	saved, err := task.Load(fh.file.Path)
	require.NoError(t, err)
	assert.Equal(t, "escalated", saved.Meta.ImplementationPlan.ReviewMode)
}

func TestCheckpointQuickCancelMovesTask(t *testing.T) {
	fh := newFull(t)
	qh, _, _ := quick(t, &keys{key: 'c', at: 2})
	cp := &Checkpoint{Quick: qh, Full: fh.h, Tasks: fh.tasks}
	out, err := cp.Review(context.Background(), CheckpointRequest{
		FullRequest: FullRequest{TaskID: "TASK-1", TaskFile: fh.file, Score: sampleScore(5), Plan: samplePlan()},
	})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)

	moved, err := fh.tasks.Find("TASK-1")
	require.NoError(t, err)
	assert.Equal(t, task.StateBacklog, moved.Meta.Status)
	assert.True(t, moved.Meta.Cancelled)
}
