package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/router"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <task-id>",
	Short: "Score a task's implementation plan and print the routing decision",
	Long: `Score the saved implementation plan of a task (docs/state/<task>/implementation_plan.json)
and print the review routing decision. Nothing is prompted.

Examples:
  reviewgate evaluate TASK-042
  reviewgate evaluate TASK-042 --review       # force full review
  reviewgate evaluate TASK-042 --json --save  # machine readable, store score`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("stack", "", "technology stack (default: task stack or \"default\")")
	evaluateCmd.Flags().Bool("review", false, "force a full review")
	evaluateCmd.Flags().Bool("json", false, "print score and decision as JSON")
	evaluateCmd.Flags().Bool("save", false, "store the score on the saved plan")
}

type evaluateOutput struct {
	Score    model.ComplexityScore `json:"complexity_score"`
	Decision model.ReviewDecision  `json:"review_decision"`
	Compact  string                `json:"compact_summary"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	stack, _ := cmd.Flags().GetString("stack")
	force, _ := cmd.Flags().GetBool("review")
	asJSON, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("save")

	f, rec, err := a.loadTask(args[0])
	if err != nil {
		return err
	}
	ec := evaluationContext(f, rec, stack, force)

	score, err := a.calc.Calculate(ctx, ec)
	if err != nil {
		if complexity.IsInterrupt(err) {
			return fmt.Errorf("evaluating %s: %w", ec.TaskID, input.ErrInterrupted)
		}
		a.logger.Warn("complexity calculation failed, using fail-safe score", zap.Error(err))
	}
	decision, err := a.router.Route(score, ec)
	if err != nil {
		a.logger.Warn("routing failed, using fail-safe decision", zap.Error(err))
	}
	compact := router.CompactSummary(score)
	a.logger.Info(compact, zap.String("task_id", ec.TaskID))

	if save {
		rec.Plan.Complexity = &score
		if err := a.plans.Save(ec.TaskID, rec.Plan, rec.ArchitecturalReview); err != nil {
			return err
		}
		f.Meta.ComplexitySummary = compact
		if err := a.tasks.Save(f); err != nil {
			return err
		}
	}
	if err := a.recorder.Record(ctx, metrics.Event{
		TaskID: ec.TaskID,
		Kind:   metrics.KindDecision,
		Score:  score.TotalScore,
		Mode:   score.Mode.String(),
		Action: decision.Action.String(),
	}); err != nil {
		a.logger.Debug("recording decision", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(evaluateOutput{Score: score, Decision: decision, Compact: compact})
	}
	fmt.Fprintln(out, decision.Summary)
	fmt.Fprintf(out, "\n%s\n", compact)
	return nil
}
