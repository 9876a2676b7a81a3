package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/diff"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/phase"
)

var auditCmd = &cobra.Command{
	Use:   "audit <task-id>",
	Short: "Compare a task's plan with the working tree diff (non-interactive)",
	Long: `Compare the saved implementation plan with what was actually changed
(git diff against --base) and report file, dependency, LOC and duration
discrepancies. Useful for CI and pre-commit hooks.

Exit codes:
  0 — implementation matches the plan
  1 — low or medium severity discrepancies
  2 — high severity discrepancies`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown, html")
	auditCmd.Flags().String("base", "", "git revision to diff against (default: audit.base from config)")
	auditCmd.Flags().StringSlice("exclude", nil, "extra doublestar globs to leave out of the comparison")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	base, _ := cmd.Flags().GetString("base")
	if base == "" {
		base = a.cfg.Audit.Base
	}
	extra, _ := cmd.Flags().GetStringSlice("exclude")
	exclude := auditExclude(a.cfg.Audit.Exclude, extra)

	repo := "."
	if root, err := phase.NewGit(".", a.cfg.Paths.TasksDir, a.cfg.Paths.StateDir).Root(ctx); err == nil {
		repo = root
	}
	auditor := audit.New(a.plans, diff.GitSource{Dir: repo, Base: base}, exclude, a.logger)
	report, err := auditor.Audit(ctx, audit.Request{TaskID: args[0]})
	if err != nil {
		return err
	}

	if err := a.recorder.Record(ctx, metrics.Event{
		TaskID:          report.TaskID,
		Kind:            metrics.KindAudit,
		Severity:        report.Severity.String(),
		DurationSeconds: report.DurationSeconds,
	}); err != nil {
		a.logger.Debug("recording audit", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		err = writeJSON(cmd, report)
	case "markdown":
		outputMarkdown(out, report)
	case "html":
		outputHTML(out, report)
	case "text":
		outputText(out, report)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	return auditExit(report)
}

// auditExclude merges configured and flag globs on top of the defaults.
// nil keeps the auditor's defaults.
func auditExclude(configured, extra []string) []string {
	if len(configured) == 0 && len(extra) == 0 {
		return nil
	}
	out := append([]string{}, audit.DefaultExclude...)
	out = append(out, configured...)
	return append(out, extra...)
}

// auditExit maps the report onto the documented exit codes.
func auditExit(r *audit.Report) error {
	switch {
	case len(r.Discrepancies) == 0:
		return nil
	case r.Severity >= audit.SeverityHigh:
		return &ExitError{Code: 2}
	default:
		return &ExitError{Code: 1}
	}
}

func outputText(w io.Writer, r *audit.Report) {
	fmt.Fprintf(w, "Plan audit for %s\n", r.TaskID)
	fmt.Fprintf(w, "Planned: %d file(s), %d dependencies, %d LOC\n", r.Plan.Files, r.Plan.Dependencies, r.Plan.EstimatedLOC)
	fmt.Fprintf(w, "Actual:  %d file(s), %d dependencies, %d LOC\n",
		len(r.Actual.FilesCreated)+len(r.Actual.FilesModified), len(r.Actual.Dependencies), r.Actual.TotalLOC)
	fmt.Fprintf(w, "Severity: %s\n\n", r.Severity)

	if len(r.Discrepancies) == 0 {
		fmt.Fprintln(w, "No discrepancies found.")
		return
	}
	for _, d := range r.Discrepancies {
		fmt.Fprintf(w, "  %s [%s] %s\n", severityIcon(d.Severity), d.Kind, d.Message)
		for _, item := range d.Items {
			fmt.Fprintf(w, "       %s\n", item)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}

func outputMarkdown(w io.Writer, r *audit.Report) {
	fmt.Fprintf(w, "## Plan Audit: %s\n\n", r.TaskID)
	fmt.Fprintf(w, "**Severity:** %s | **Discrepancies:** %d\n\n", r.Severity, len(r.Discrepancies))
	fmt.Fprintln(w, "| | Planned | Actual |")
	fmt.Fprintln(w, "|---|---|---|")
	fmt.Fprintf(w, "| Files | %d | %d |\n", r.Plan.Files, len(r.Actual.FilesCreated)+len(r.Actual.FilesModified))
	fmt.Fprintf(w, "| Dependencies | %d | %d |\n", r.Plan.Dependencies, len(r.Actual.Dependencies))
	fmt.Fprintf(w, "| LOC | %d | %d |\n\n", r.Plan.EstimatedLOC, r.Actual.TotalLOC)

	if len(r.Discrepancies) == 0 {
		fmt.Fprintln(w, "No discrepancies found.")
		return
	}
	fmt.Fprintln(w, "| Severity | Kind | Message |")
	fmt.Fprintln(w, "|----------|------|---------|")
	for _, d := range r.Discrepancies {
		msg := d.Message
		if len(d.Items) > 0 {
			msg += ": `" + strings.Join(d.Items, "`, `") + "`"
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", d.Severity, d.Kind, msg)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\n### Recommendations")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "- %s\n", rec)
		}
	}
}

func outputHTML(w io.Writer, r *audit.Report) {
	fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>reviewgate Plan Audit</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 900px; margin: 40px auto; padding: 0 20px; background: #282a36; color: #f8f8f2; }
  h1 { color: #bd93f9; }
  .summary { background: #343746; padding: 16px; border-radius: 8px; margin-bottom: 24px; }
  .summary span { margin-right: 24px; }
  .severity-high { color: #ff5555; font-weight: bold; }
  .severity-medium { color: #f1fa8c; }
  .severity-low { color: #8be9fd; }
  table { width: 100%; border-collapse: collapse; }
  th { text-align: left; padding: 8px 12px; background: #44475a; color: #f8f8f2; }
  td { padding: 8px 12px; border-bottom: 1px solid #44475a; }
  tr:hover { background: #343746; }
  .kind { color: #bd93f9; }
  code { background: #343746; padding: 2px 6px; border-radius: 4px; font-size: 0.9em; }
  .clean { color: #50fa7b; font-size: 1.2em; }
  footer { margin-top: 32px; color: #6272a4; font-size: 0.85em; }
</style>
</head>
<body>
`)
	fmt.Fprintf(w, "<h1>Plan Audit: %s</h1>\n", htmlEscape(r.TaskID))
	fmt.Fprintf(w, `<div class="summary">
  <span>Planned <strong>%d</strong> file(s), <strong>%d</strong> LOC</span>
  <span>Actual <strong>%d</strong> file(s), <strong>%d</strong> LOC</span>
  <span>Severity: <span class="severity-%s">%s</span></span>
</div>
`, r.Plan.Files, r.Plan.EstimatedLOC, len(r.Actual.FilesCreated)+len(r.Actual.FilesModified), r.Actual.TotalLOC, r.Severity, r.Severity)

	if len(r.Discrepancies) == 0 {
		fmt.Fprintln(w, `<p class="clean">No discrepancies found.</p>`)
	} else {
		fmt.Fprintln(w, `<table>
<thead><tr><th>Severity</th><th>Kind</th><th>Message</th><th>Items</th></tr></thead>
<tbody>`)
		for _, d := range r.Discrepancies {
			items := make([]string, 0, len(d.Items))
			for _, it := range d.Items {
				items = append(items, "<code>"+htmlEscape(it)+"</code>")
			}
			fmt.Fprintf(w, `<tr><td class="severity-%s">%s</td><td class="kind">%s</td><td>%s</td><td>%s</td></tr>
`, d.Severity, d.Severity, d.Kind, htmlEscape(d.Message), strings.Join(items, " "))
		}
		fmt.Fprintln(w, `</tbody></table>`)
	}

	fmt.Fprintln(w, `<footer>Generated by <strong>reviewgate</strong></footer>
</body>
</html>`)
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

func severityIcon(s audit.Severity) string {
	switch s {
	case audit.SeverityHigh:
		return "!"
	case audit.SeverityMedium:
		return "*"
	default:
		return "-"
	}
}
