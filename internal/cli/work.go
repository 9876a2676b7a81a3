package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/diff"
	"github.com/sprite-ai/reviewgate/internal/phase"
)

var workCmd = &cobra.Command{
	Use:   "work <task-id>",
	Short: "Run a task through the design and implementation phases",
	Long: `Drive a task through the phased workflow: load context, plan,
architectural review, complexity evaluation, human checkpoint,
implementation, testing, fix loop, code review and plan audit.

Quality gates are shell commands configured under "gates:" in the config
file (architectural_review, implementation, testing, fix_loop,
code_review). A phase without a gate passes.

Modes:
  reviewgate work TASK-042                   # full workflow
  reviewgate work TASK-042 --design-only     # stop at design approval
  reviewgate work TASK-042 --implement-only  # start from an approved design`,
	Args: cobra.ExactArgs(1),
	RunE: runWork,
}

func init() {
	workCmd.Flags().Bool("design-only", false, "run design phases and stop at approval")
	workCmd.Flags().Bool("implement-only", false, "implement a design_approved task")
	workCmd.Flags().Bool("review", false, "force a full review at the checkpoint")
	workCmd.Flags().String("stack", "", "technology stack (default: task stack or \"default\")")
	workCmd.Flags().Bool("json", false, "print the workflow result as JSON")
}

func runWork(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	designOnly, _ := cmd.Flags().GetBool("design-only")
	implementOnly, _ := cmd.Flags().GetBool("implement-only")
	force, _ := cmd.Flags().GetBool("review")
	stack, _ := cmd.Flags().GetString("stack")
	asJSON, _ := cmd.Flags().GetBool("json")

	con := a.console(cmd)
	defer con.Close()

	git := phase.NewGit(".", a.cfg.Paths.TasksDir, a.cfg.Paths.StateDir)
	repo := "."
	if root, err := git.Root(ctx); err == nil {
		repo = root
	}

	orch := phase.New(phase.Deps{
		Tasks:        a.tasks,
		Plans:        a.plans,
		Calculator:   a.calc,
		Router:       a.router,
		Reviewer:     a.checkpoint(cmd, con),
		Auditor:      audit.New(a.plans, diff.GitSource{Dir: repo, Base: a.cfg.Audit.Base}, auditExclude(a.cfg.Audit.Exclude, nil), a.logger),
		Gates:        phase.CommandGates(a.cfg.Gates, repo),
		Git:          git,
		Console:      con,
		Metrics:      a.recorder,
		Logger:       a.logger,
		AuditTimeout: time.Duration(a.cfg.Review.AuditTimeoutSeconds) * time.Second,
	})

	res, err := orch.Execute(ctx, phase.ExecuteRequest{
		TaskID:        args[0],
		DesignOnly:    designOnly,
		ImplementOnly: implementOnly,
		Stack:         stack,
		ForceReview:   force,
	})
	if err != nil {
		return err
	}

	if asJSON {
		if err := writeJSON(cmd, res); err != nil {
			return err
		}
	} else {
		printWorkResult(cmd, res)
	}
	if !res.Success {
		return &ExitError{Code: 1}
	}
	return nil
}

func printWorkResult(cmd *cobra.Command, res *phase.ExecuteResult) {
	out := cmd.OutOrStdout()
	rule := strings.Repeat("═", 55)
	fmt.Fprintf(out, "\n%s\n", rule)
	if res.Success {
		fmt.Fprintf(out, "✅ %s workflow complete for %s\n", res.WorkflowMode, res.TaskID)
	} else {
		fmt.Fprintf(out, "❌ %s workflow stopped for %s at %s\n", res.WorkflowMode, res.TaskID, res.FailedPhase)
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Final state: %s\n", res.FinalState)
	fmt.Fprintf(out, "Duration: %s\n", res.Duration.Round(time.Second))
	if res.Score != nil {
		fmt.Fprintf(out, "Complexity: %d/10 (%s)\n", res.Score.TotalScore, res.Score.Mode)
	}
	if res.Audit != nil {
		fmt.Fprintf(out, "Plan audit: %s (%d discrepancies), decision %s\n",
			res.Audit.Severity, len(res.Audit.Discrepancies), res.AuditDecision)
	}
	if res.Followup != "" {
		fmt.Fprintf(out, "Follow-up task: %s\n", res.Followup)
	}
	fmt.Fprintln(out, "\nPhases:")
	for _, p := range res.PhasesExecuted {
		fmt.Fprintf(out, "  • %s\n", p)
	}
}
