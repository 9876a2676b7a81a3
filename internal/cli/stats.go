package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats [task-id]",
	Short: "Show review history statistics",
	Long: `Summarize recorded complexity decisions, review outcomes and plan
audits from the metrics database. With a task ID, list that task's most
recent events instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Int("limit", 20, "events to list for a task")
	statsCmd.Flags().Bool("json", false, "print JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	if a.store == nil {
		return errors.New("metrics are disabled (metrics.enabled: false) or the database could not be opened")
	}
	ctx := cmd.Context()
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := a.store.Recent(ctx, args[0], limit)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, events)
		}
		printEvents(out, args[0], events)
		return nil
	}

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, stats)
	}
	fmt.Fprintf(out, "Events recorded: %d\n", stats.TotalEvents)
	fmt.Fprintf(out, "Complexity decisions: %d (average score %.1f/10)\n", stats.Decisions, stats.AverageScore)
	printCounts(out, "By review mode", stats.ByMode)
	printCounts(out, "By review action", stats.ByAction)
	printCounts(out, "Audits by severity", stats.AuditsBySeverity)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
	}
}

func printEvents(w io.Writer, taskID string, events []metrics.Event) {
	if len(events) == 0 {
		fmt.Fprintf(w, "No events recorded for %s.\n", taskID)
		return
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-8s", e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Kind)
		if e.Score > 0 {
			line += fmt.Sprintf(" score=%d", e.Score)
		}
		for _, kv := range [][2]string{{"mode", e.Mode}, {"action", e.Action}, {"severity", e.Severity}} {
			if kv[1] != "" {
				line += fmt.Sprintf(" %s=%s", kv[0], kv[1])
			}
		}
		if e.DurationSeconds > 0 {
			line += fmt.Sprintf(" duration=%.0fs", e.DurationSeconds)
		}
		fmt.Fprintln(w, line)
	}
}
