package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review <task-id>",
	Short: "Score a plan and run the review checkpoint it calls for",
	Long: `Score the task's saved implementation plan and open the checkpoint the
score selects. Low scores auto-proceed, medium scores show a countdown
that can be escalated, high scores and forced triggers open the full
review checkpoint (approve, modify, view, question, cancel).

Examples:
  reviewgate review TASK-042
  reviewgate review TASK-042 --review        # always open full review
  reviewgate review TASK-042 --stack python`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("stack", "", "technology stack (default: task stack or \"default\")")
	reviewCmd.Flags().Bool("review", false, "force a full review")
}

func runReview(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	stack, _ := cmd.Flags().GetString("stack")
	force, _ := cmd.Flags().GetBool("review")

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

	con := a.console(cmd)
	defer con.Close()

	out, err := a.checkpoint(cmd, con).Review(ctx, review.CheckpointRequest{
		FullRequest: review.FullRequest{
			TaskID:   ec.TaskID,
			TaskFile: f,
			Score:    score,
			Plan:     rec.Plan,
			Metadata: ec.Metadata,
			Stack:    ec.TechnologyStack,
			Flags:    ec.Flags,
		},
		Mandatory: force,
	})
	if err != nil {
		return err
	}

	switch {
	case out.Cancelled:
		con.Warn("\n⚠️ Task %s cancelled", ec.TaskID)
	case out.Approved:
		con.Success("\n✅ Plan approved (%s review, score %d/10)", out.Handler, out.Score.TotalScore)
	default:
		con.Warn("\n⚠️ Plan not approved")
		return &ExitError{Code: 1}
	}
	return nil
}
