package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/sprite-ai/reviewgate/internal/model"
)

const (
	minSeparator = 70
	maxSeparator = 120
	maxFiles     = 10
	maxDeps      = 5
)

// checkpoint renders the full review screen.
type checkpoint struct {
	out       io.Writer
	st        styles
	width     int
	taskID    string
	title     string
	escalated bool
}

// separatorWidth clamps the terminal width into the readable range.
func separatorWidth(w int) int {
	return max(minSeparator, min(w, maxSeparator))
}

func scoreIndicator(total int) string {
	switch {
	case total >= 7:
		return "🔴"
	case total >= 4:
		return "🟡"
	default:
		return "🟢"
	}
}

func factorIndicator(f model.FactorScore) string {
	if f.MaxScore <= 0 {
		return "🟢"
	}
	switch r := f.Score / f.MaxScore; {
	case r >= 0.9:
		return "🔴"
	case r >= 0.5:
		return "🟡"
	default:
		return "🟢"
	}
}

func riskIndicator(l model.RiskLevel) string {
	switch l {
	case model.RiskHigh:
		return "🔴"
	case model.RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

func (c checkpoint) render(score model.ComplexityScore, p *model.ImplementationPlan) {
	sep := c.st.rule.Render(strings.Repeat("=", separatorWidth(c.width)))
	fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", sep, c.st.title.Render("IMPLEMENTATION PLAN REVIEW"), sep)

	c.header(score, p)
	c.breakdown(score)
	c.changes(p)
	c.risks(p)
	c.order(p)

	fmt.Fprintf(c.out, "\n%s\n", sep)
	c.options()
}

func (c checkpoint) header(score model.ComplexityScore, p *model.ImplementationPlan) {
	title := c.title
	if title == "" {
		title = "No title"
	}
	fmt.Fprintf(c.out, "\nTask: %s - %s\n", c.taskID, title)
	fmt.Fprintf(c.out, "Complexity: %s %d/10\n", scoreIndicator(score.TotalScore), score.TotalScore)
	if c.escalated {
		fmt.Fprintln(c.out, "⬆️ Escalated from quick review")
	}
	duration := p.EstimatedDuration
	if duration == "" {
		duration = "Not estimated"
	}
	fmt.Fprintf(c.out, "Estimated Time: ~%s\n", duration)
}

func (c checkpoint) breakdown(score model.ComplexityScore) {
	fmt.Fprintf(c.out, "\n%s\n", c.st.heading.Render("📊 COMPLEXITY BREAKDOWN:"))
	for _, f := range score.Factors {
		fmt.Fprintf(c.out, "\n  %s %s: %s/%s points\n", factorIndicator(f), f.Name, num(f.Score), num(f.MaxScore))
		fmt.Fprintf(c.out, "     → %s\n", f.Justification)
	}
	if score.HasTriggers() {
		fmt.Fprintln(c.out, "\n  ⚡ FORCE-REVIEW TRIGGERS:")
		for _, t := range score.Triggers {
			fmt.Fprintf(c.out, "     - %s\n", t.Title())
		}
	}
}

func (c checkpoint) changes(p *model.ImplementationPlan) {
	fmt.Fprintf(c.out, "\n%s\n", c.st.heading.Render("📁 CHANGES SUMMARY:"))
	files := p.AllFiles()
	fmt.Fprintf(c.out, "\n  Files to Create/Modify: %d\n", len(files))
	for _, f := range files[:min(len(files), maxFiles)] {
		fmt.Fprintf(c.out, "    - %s\n", f)
	}
	if len(files) > maxFiles {
		fmt.Fprintf(c.out, "    ... and %d more\n", len(files)-maxFiles)
	}
	if deps := p.ExternalDependencies; len(deps) > 0 {
		fmt.Fprintf(c.out, "\n  External Dependencies: %d\n", len(deps))
		for _, d := range deps[:min(len(deps), maxDeps)] {
			fmt.Fprintf(c.out, "    - %s\n", d)
		}
	}
	if p.TestSummary != "" {
		fmt.Fprintf(c.out, "\n  Test Strategy:\n    %s\n", p.TestSummary)
	}
}

func (c checkpoint) risks(p *model.ImplementationPlan) {
	fmt.Fprintf(c.out, "\n%s\n", c.st.heading.Render("⚠️ RISK ASSESSMENT:"))
	switch {
	case len(p.Risks) > 0:
		for _, r := range p.Risks {
			mitigation := r.Mitigation
			if mitigation == "" {
				mitigation = "No mitigation specified"
			}
			fmt.Fprintf(c.out, "\n  %s %s: %s\n", riskIndicator(r.Level), strings.ToUpper(r.Level.String()), r.Description)
			fmt.Fprintf(c.out, "     Mitigation: %s\n", mitigation)
		}
	case len(p.RiskIndicators) > 0:
		fmt.Fprintln(c.out, "\n  Risk Indicators Detected:")
		for _, ind := range p.RiskIndicators {
			fmt.Fprintf(c.out, "    - %s\n", ind)
		}
	default:
		fmt.Fprintln(c.out, "\n  No specific risks identified")
	}
}

func (c checkpoint) order(p *model.ImplementationPlan) {
	fmt.Fprintf(c.out, "\n%s\n", c.st.heading.Render("📋 IMPLEMENTATION ORDER:"))
	if len(p.Phases) == 0 {
		fmt.Fprintln(c.out, "\n  Implementation phases not detailed in plan")
	}
	for i, ph := range p.Phases {
		fmt.Fprintf(c.out, "\n  %d. %s\n", i+1, ph)
	}
	if p.EstimatedLOC > 0 {
		fmt.Fprintf(c.out, "\n  Estimated Lines of Code: ~%d\n", p.EstimatedLOC)
	}
}

func (c checkpoint) options() {
	fmt.Fprintf(c.out, "\n%s\n", c.st.heading.Render("DECISION OPTIONS:"))
	fmt.Fprint(c.out, ""+
		"  [A] Approve  - Proceed with this plan as-is\n"+
		"  [M] Modify   - Interactively edit the plan\n"+
		"  [V] View     - See full implementation plan in pager\n"+
		"  [Q] Question - Ask questions about the plan\n"+
		"  [C] Cancel   - Return task to backlog\n\n")
}
