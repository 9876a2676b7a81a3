package cli

import (
	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/qa"
)

var askCmd = &cobra.Command{
	Use:   "ask <task-id>",
	Short: "Ask questions about a task's implementation plan",
	Long: `Start a keyword-matched Q&A session over the task's saved plan. Ask
about files, dependencies, risks, effort, testing or architecture; type
"back" to finish. The session is saved under the task's qa_session key
and earlier sessions move to qa_history.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("no-save", false, "do not record the session in the task file")
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	m := qa.NewManager(qa.Deps{Console: con, Logger: a.logger}, f.Meta.ID, rec.Plan)
	sess, err := m.Run(ctx)
	if err != nil {
		return err
	}
	if noSave, _ := cmd.Flags().GetBool("no-save"); noSave || sess == nil || len(sess.Exchanges) == 0 {
		return nil
	}
	if err := m.SaveToTask(f.Path); err != nil {
		return err
	}
	con.Success("✅ Q&A session saved to task metadata")
	return nil
}
