package audit

import (
	"fmt"
	"strings"
)

const maxItems = 5

var severityIcon = map[Severity]string{
	SeverityLow:    "🟢",
	SeverityMedium: "🟡",
	SeverityHigh:   "🔴",
}

// Format renders r for the terminal, ending with the decision options.
func Format(r *Report) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(&b, "%s\nPLAN AUDIT - %s\n%s\n\n", rule, r.TaskID, rule)

	b.WriteString("PLANNED IMPLEMENTATION:\n")
	fmt.Fprintf(&b, "  Files: %d files (%d lines)\n", r.Plan.Files, r.Plan.EstimatedLOC)
	fmt.Fprintf(&b, "  Dependencies: %d\n", r.Plan.Dependencies)
	fmt.Fprintf(&b, "  Duration: %s\n\n", r.Plan.EstimatedDuration)

	b.WriteString("ACTUAL IMPLEMENTATION:\n")
	fmt.Fprintf(&b, "  Files: %d files (%d lines)\n", len(r.Actual.FilesCreated), r.Actual.TotalLOC)
	fmt.Fprintf(&b, "  Dependencies: %d\n", len(r.Actual.Dependencies))
	fmt.Fprintf(&b, "  Duration: %.1f hours\n\n", r.Actual.DurationHours)

	if len(r.Discrepancies) == 0 {
		b.WriteString("DISCREPANCIES: None\n\n")
	} else {
		b.WriteString("DISCREPANCIES:\n")
		for _, d := range r.Discrepancies {
			fmt.Fprintf(&b, "  %s %s\n", severityIcon[d.Severity], d.Message)
			for _, it := range d.Items[:min(len(d.Items), maxItems)] {
				fmt.Fprintf(&b, "      - %s\n", it)
			}
			if len(d.Items) > maxItems {
				fmt.Fprintf(&b, "      ... and %d more\n", len(d.Items)-maxItems)
			}
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "SEVERITY: %s %s\n\n", severityIcon[r.Severity], strings.ToUpper(r.Severity.String()))

	b.WriteString("RECOMMENDATIONS:\n")
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
	}
	b.WriteString("\nOPTIONS:\n")
	b.WriteString("  [A]pprove - Accept implementation as-is, update plan retroactively\n")
	b.WriteString("  [R]evise - Request removal of scope creep items\n")
	b.WriteString("  [E]scalate - Mark as complex, create follow-up task\n")
	b.WriteString("  [C]ancel - Block task completion\n")
	return b.String()
}
