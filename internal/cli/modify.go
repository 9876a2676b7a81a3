package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/modify"
)

var modifyCmd = &cobra.Command{
	Use:   "modify <task-id>",
	Short: "Interactively edit a task's implementation plan",
	Long: `Open a modification session on the task's saved plan. Files,
dependencies, risks, effort and phases can be edited; every change can be
undone. Saved changes are rescored and stored as a new plan version.`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

func runModify(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	f, rec, err := a.loadTask(args[0])
	if err != nil {
		return err
	}
	con := a.console(cmd)
	defer con.Close()

	m := modify.NewModifier(modify.Deps{
		Console:  con,
		Plans:    a.plans,
		Sessions: a.sessions,
		Logger:   a.logger,
	})
	out, err := m.Edit(ctx, f.Meta.ID, rec.Plan)
	if err != nil {
		return err
	}
	if out == nil || !out.Saved {
		return nil
	}

	modified := out.Plan
	ec := evaluationContext(f, rec, "", false)
	ec.Plan = modified
	score, err := a.calc.Calculate(ctx, ec)
	if err != nil && complexity.IsInterrupt(err) {
		return fmt.Errorf("rescoring modified plan: %w", input.ErrInterrupted)
	}
	modified.Complexity = &score

	v, err := a.plans.Versions(f.Meta.ID, a.logger).
		Record(rec.Plan, modified, fmt.Sprintf("Plan modification session (%d changes)", len(out.Changes)), "user")
	if err != nil {
		return fmt.Errorf("recording plan version: %w", err)
	}
	if err := a.plans.Save(f.Meta.ID, modified, rec.ArchitecturalReview); err != nil {
		return err
	}
	a.logger.Info("plan modified",
		zap.String("task_id", f.Meta.ID),
		zap.Int("version", v.Number),
		zap.Int("score", score.TotalScore))
	con.Success("\n✅ Saved plan version %d", v.Number)
	con.Printf("New complexity score: %d/10 (%s)\n", score.TotalScore, score.Mode)
	return nil
}
