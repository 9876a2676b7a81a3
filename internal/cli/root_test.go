package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/task"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"evaluate", "review", "modify", "ask", "versions", "work", "audit", "stats", "serve", "mcp", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{&ExitError{Code: 2}, 2},
		{fmt.Errorf("wrapped: %w", &ExitError{Code: 1}), 1},
		{fmt.Errorf("evaluating: %w", input.ErrInterrupted), 130},
		{errors.New("boom"), 1},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAuditExit(t *testing.T) {
	if err := auditExit(&audit.Report{}); err != nil {
		t.Errorf("clean report should exit 0, got %v", err)
	}
	medium := &audit.Report{Severity: audit.SeverityMedium, Discrepancies: []audit.Discrepancy{{Kind: audit.KindExtraDeps}}}
	if got := ExitCode(auditExit(medium)); got != 1 {
		t.Errorf("medium report: exit %d, want 1", got)
	}
	high := &audit.Report{Severity: audit.SeverityHigh, Discrepancies: []audit.Discrepancy{{Kind: audit.KindMissingFile}}}
	if got := ExitCode(auditExit(high)); got != 2 {
		t.Errorf("high report: exit %d, want 2", got)
	}
}

func TestAuditExclude(t *testing.T) {
	if got := auditExclude(nil, nil); got != nil {
		t.Errorf("expected nil to keep defaults, got %v", got)
	}
	got := auditExclude([]string{"gen/**"}, []string{"*.pb.go"})
	if len(got) != len(audit.DefaultExclude)+2 || got[len(got)-1] != "*.pb.go" {
		t.Errorf("unexpected merged globs %v", got)
	}
}

func TestOutputFormats(t *testing.T) {
	r := &audit.Report{
		TaskID:   "TASK-1",
		Severity: audit.SeverityHigh,
		Discrepancies: []audit.Discrepancy{
			{Kind: audit.KindMissingFile, Severity: audit.SeverityHigh, Message: "1 planned file(s) not created", Items: []string{"<main>.go"}},
		},
		Recommendations: []string{"Create the missing files"},
	}

	var text, md, html bytes.Buffer
	outputText(&text, r)
	outputMarkdown(&md, r)
	outputHTML(&html, r)

	if !strings.Contains(text.String(), "\n  ! [missing_files] 1 planned file(s) not created\n") {
		t.Errorf("text output missing discrepancy:\n%s", text.String())
	}
	if !strings.Contains(md.String(), "| high | missing_files |") {
		t.Errorf("markdown output missing row:\n%s", md.String())
	}
	if !strings.Contains(html.String(), "&lt;main&gt;.go") {
		t.Errorf("html output not escaped:\n%s", html.String())
	}
}

// setupWorkspace writes a config, a task and its plan under a temp dir.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reviewgate.yaml")
	yaml := fmt.Sprintf(`paths:
  tasks_dir: %[1]s/tasks
  state_dir: %[1]s/state
  modifications_dir: %[1]s/tasks/modifications
metrics:
  enabled: true
  db_path: %[1]s/metrics.db
logging:
  level: error
`, dir)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks := task.NewStore(filepath.Join(dir, "tasks"))
	f := &task.File{
		Path: filepath.Join(tasks.Dir(task.StateBacklog), "TASK-8.md"),
		Meta: task.Meta{ID: "TASK-8", Title: "Add export", Status: task.StateBacklog},
		Body: "# Add export\n",
	}
	if err := f.Save(); err != nil {
		t.Fatal(err)
	}
	p := &model.ImplementationPlan{TaskID: "TASK-8", FilesToCreate: []string{"export.go"}, EstimatedLOC: 40}
	if err := plan.NewStore(filepath.Join(dir, "state")).Save("TASK-8", p, nil); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEvaluateAndStats(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := execute(t, "--config", cfgPath, "evaluate", "TASK-8", "--json", "--save")
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	var res evaluateOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode evaluate output: %v\n%s", err, out)
	}
	if res.Score.Mode != model.AutoProceed || res.Decision.Action != model.ActionProceed {
		t.Errorf("expected auto-proceed, got %s/%s", res.Score.Mode, res.Decision.Action)
	}
	if !strings.HasPrefix(res.Compact, "Complexity: ") {
		t.Errorf("unexpected compact summary %q", res.Compact)
	}

	rec, err := plan.NewStore(filepath.Join(filepath.Dir(cfgPath), "state")).Load("TASK-8")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Plan.Complexity == nil || rec.Plan.Complexity.TotalScore != res.Score.TotalScore {
		t.Errorf("score not saved on plan: %+v", rec.Plan.Complexity)
	}

	out, err = execute(t, "--config", cfgPath, "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	var stats struct {
		Decisions int            `json:"decisions"`
		ByMode    map[string]int `json:"by_mode"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.Decisions != 1 || stats.ByMode["auto_proceed"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestEvaluateMissingTask(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := execute(t, "--config", cfgPath, "evaluate", "TASK-404")
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("expected task.ErrNotFound, got %v", err)
	}
}

func TestVersionsEmpty(t *testing.T) {
	cfgPath := setupWorkspace(t)
	out, err := execute(t, "--config", cfgPath, "versions", "TASK-8")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if !strings.Contains(out, "No plan versions recorded for TASK-8") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCommandEnvIsPerRun(t *testing.T) {
	first := setupWorkspace(t)
	second := setupWorkspace(t)

	if out, err := execute(t, "--config", first, "evaluate", "TASK-8", "--save"); err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	out, err := execute(t, "--config", second, "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	var stats struct {
		Decisions int `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.Decisions != 0 {
		t.Errorf("second workspace saw %d decisions from the first run", stats.Decisions)
	}

	env := envFrom(statsCmd.Context())
	if env.cfg == nil || env.logger == nil {
		t.Fatal("stats ran without a config and logger in its context")
	}
	want := filepath.Join(filepath.Dir(second), "metrics.db")
	if env.cfg.Metrics.DBPath != want {
		t.Errorf("metrics db %q, want %q", env.cfg.Metrics.DBPath, want)
	}
}
