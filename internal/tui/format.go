package tui

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// Section is one titled block of a formatted plan.
type Section struct {
	Title string
	Lines []string
	// Risks parallels Lines for the risk section so lines can be colored by
	// level. It is nil elsewhere.
	Risks []model.RiskLevel
}

// Sections splits a plan into the blocks shown by the pager. Empty blocks
// are left out.
func Sections(p *model.ImplementationPlan) []Section {
	if p == nil {
		return nil
	}
	var out []Section
	add := func(s Section) {
		if len(s.Lines) > 0 {
			out = append(out, s)
		}
	}

	overview := Section{Title: "Overview"}
	overview.Lines = append(overview.Lines, "Task: "+p.TaskID)
	if p.EstimatedDuration != "" {
		overview.Lines = append(overview.Lines, "Estimated Duration: "+p.EstimatedDuration)
	}
	if p.EstimatedLOC > 0 {
		overview.Lines = append(overview.Lines, fmt.Sprintf("Estimated LOC: %d", p.EstimatedLOC))
	}
	if c := p.Complexity; c != nil {
		overview.Lines = append(overview.Lines, fmt.Sprintf("Complexity: %d/10 (%s)", c.TotalScore, c.Mode))
	} else if p.EstimatedComplexity > 0 {
		overview.Lines = append(overview.Lines, fmt.Sprintf("Estimated Complexity: %d/10", p.EstimatedComplexity))
	}
	add(overview)

	add(Section{Title: "Files to Create", Lines: bullets(p.FilesToCreate)})
	add(Section{Title: "Files to Modify", Lines: bullets(p.FilesToModify)})
	add(Section{Title: "Dependencies", Lines: bullets(p.ExternalDependencies)})
	add(Section{Title: "Patterns", Lines: bullets(p.PatternsUsed)})

	phases := Section{Title: "Phases"}
	for i, ph := range p.Phases {
		phases.Lines = append(phases.Lines, fmt.Sprintf("%d. %s", i+1, ph))
	}
	add(phases)

	risks := Section{Title: "Risks"}
	for _, r := range p.Risks {
		risks.Lines = append(risks.Lines, fmt.Sprintf("[%s] %s", strings.ToUpper(r.Level.String()), r.Description))
		risks.Risks = append(risks.Risks, r.Level)
		if r.Mitigation != "" {
			risks.Lines = append(risks.Lines, "    Mitigation: "+r.Mitigation)
			risks.Risks = append(risks.Risks, r.Level)
		}
	}
	add(risks)

	add(Section{Title: "Testing", Lines: paragraph(p.TestSummary)})
	add(Section{Title: "Instructions", Lines: paragraph(p.ImplementationInstructions)})
	add(Section{Title: "Plan", Lines: paragraph(p.RawPlan)})
	return out
}

// FormatPlan renders the plan as plain text for inline display.
func FormatPlan(p *model.ImplementationPlan) string {
	var b strings.Builder
	for i, s := range Sections(p) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\n%s\n", s.Title, strings.Repeat("-", len(s.Title)))
		for _, l := range s.Lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	if b.Len() == 0 {
		return "(empty plan)\n"
	}
	return b.String()
}

func bullets(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, "  - "+it)
	}
	return out
}

func paragraph(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
