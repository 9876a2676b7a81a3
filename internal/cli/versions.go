package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/tui"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <task-id> [<a> <b>]",
	Short: "List plan versions, or compare two of them",
	Long: `Without version numbers, list every recorded version of the task's
implementation plan. With two numbers, print what changed between them.

Examples:
  reviewgate versions TASK-042
  reviewgate versions TASK-042 1 3
  reviewgate versions TASK-042 --show 2`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("expected <task-id> or <task-id> <a> <b>, got %d args", len(args))
		}
		return nil
	},
	RunE: runVersions,
}

func init() {
	versionsCmd.Flags().Int("show", 0, "print one version's plan")
	versionsCmd.Flags().Bool("json", false, "print JSON")
}

func runVersions(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()

	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	vm := a.plans.Versions(args[0], a.logger)

	if n, _ := cmd.Flags().GetInt("show"); n > 0 {
		v, err := vm.Get(n)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, v)
		}
		fmt.Fprintln(out, v.Summary())
		fmt.Fprintln(out)
		fmt.Fprintln(out, tui.FormatPlan(v.Plan))
		return nil
	}

	if len(args) == 3 {
		from, errA := strconv.Atoi(args[1])
		to, errB := strconv.Atoi(args[2])
		if errA != nil || errB != nil {
			return fmt.Errorf("version numbers must be integers: %q %q", args[1], args[2])
		}
		cmp, err := vm.Compare(from, to)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, cmp)
		}
		text, err := vm.Diff(from, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Plan changes v%d → v%d\n", from, to)
		for _, f := range cmp.FilesAdded {
			fmt.Fprintf(out, "  + %s\n", f)
		}
		for _, f := range cmp.FilesRemoved {
			fmt.Fprintf(out, "  - %s\n", f)
		}
		for _, d := range cmp.DependenciesAdded {
			fmt.Fprintf(out, "  + dep %s\n", d)
		}
		for _, d := range cmp.DependenciesRemoved {
			fmt.Fprintf(out, "  - dep %s\n", d)
		}
		if cmp.LOCChange != 0 {
			fmt.Fprintf(out, "  LOC %+d\n", cmp.LOCChange)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, text)
		return nil
	}

	history, err := vm.History()
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, history)
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No plan versions recorded for %s.\n", args[0])
		return nil
	}
	for i, v := range history {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, v.Summary())
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
