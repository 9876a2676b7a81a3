package qa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sprite-ai/reviewgate/internal/model"
)

const (
	sourcePlan       = "Implementation Plan"
	sourceComplexity = "Complexity Score"

	excerptLimit = 500
	fileLimit    = 10
)

// Section is the slice of a plan that answers a category.
type Section struct {
	Title   string
	Content string
	Source  string
}

// Extractor renders plan sections by category.
type Extractor struct{}

// Extract returns the section for c. A nil plan yields an empty overview.
func (Extractor) Extract(p *model.ImplementationPlan, c Category) Section {
	if p == nil {
		p = &model.ImplementationPlan{}
	}
	switch c {
	case CategoryRationale:
		return rationale(p)
	case CategoryTesting:
		return testStrategy(p)
	case CategoryRisks:
		return risks(p)
	case CategoryDuration:
		return duration(p)
	case CategoryFiles:
		return files(p)
	case CategoryDependencies:
		return dependencies(p)
	case CategoryPhases:
		return phases(p)
	case CategoryComplexity:
		return complexityDetails(p)
	default:
		return general(p)
	}
}

func section(title, source, fallback string, parts []string) Section {
	content := fallback
	if len(parts) > 0 {
		content = strings.Join(parts, "\n")
	}
	return Section{Title: title, Content: content, Source: source}
}

func excerpt(s string) string {
	if len(s) > excerptLimit {
		s = s[:excerptLimit]
	}
	return s + "..."
}

func rationale(p *model.ImplementationPlan) Section {
	var parts []string
	if len(p.PatternsUsed) > 0 {
		parts = append(parts, "**Design Patterns Used**: "+strings.Join(p.PatternsUsed, ", "))
	}
	switch {
	case p.ImplementationInstructions != "":
		parts = append(parts, "\n**Approach**: "+excerpt(p.ImplementationInstructions))
	case p.RawPlan != "":
		parts = append(parts, "\n**Plan Details**: "+excerpt(p.RawPlan))
	}
	return section("Rationale & Approach", sourcePlan, "No specific rationale documented in plan.", parts)
}

func testStrategy(p *model.ImplementationPlan) Section {
	var parts []string
	if p.TestSummary != "" {
		parts = append(parts, "**Test Strategy**: "+p.TestSummary)
	}
	if len(p.PatternsUsed) > 0 {
		parts = append(parts, "\n**Patterns to Test**: "+strings.Join(p.PatternsUsed, ", "))
	}
	return section("Test Strategy", sourcePlan,
		"No explicit test strategy documented. Standard unit and integration tests recommended.", parts)
}

func risks(p *model.ImplementationPlan) Section {
	var parts []string
	switch {
	case len(p.Risks) > 0:
		for _, r := range p.Risks {
			desc := r.Description
			if desc == "" {
				desc = "No description"
			}
			mitigation := r.Mitigation
			if mitigation == "" {
				mitigation = "No mitigation specified"
			}
			parts = append(parts, fmt.Sprintf("\n**%s**: %s\n  Mitigation: %s",
				strings.ToUpper(r.Level.String()), desc, mitigation))
		}
	case len(p.RiskIndicators) > 0:
		parts = append(parts, "**Risk Indicators Detected**: "+strings.Join(p.RiskIndicators, ", "))
	}
	if p.HasSecurityKeywords() {
		parts = append(parts, "\n**Security Sensitive**: This plan involves authentication, "+
			"authorization, or security-related functionality.")
	}
	if p.HasSchemaChanges() {
		parts = append(parts, "\n**Schema Changes**: This plan modifies database schema. "+
			"Ensure proper migration and rollback strategies.")
	}
	return section("Risk Assessment", sourcePlan, "No specific risks identified in plan.", parts)
}

func duration(p *model.ImplementationPlan) Section {
	var parts []string
	if p.EstimatedDuration != "" {
		parts = append(parts, "**Estimated Duration**: "+p.EstimatedDuration)
	}
	if p.EstimatedLOC > 0 {
		parts = append(parts, fmt.Sprintf("**Estimated Lines of Code**: ~%d", p.EstimatedLOC))
	}
	total := p.EstimatedComplexity
	if p.Complexity != nil {
		total = p.Complexity.TotalScore
	}
	if total > 0 {
		var estimate string
		switch {
		case total <= 3:
			estimate = "Low complexity, quick implementation expected"
		case total <= 6:
			estimate = "Medium complexity, moderate time investment"
		default:
			estimate = "High complexity, significant time investment"
		}
		parts = append(parts, "\n**Complexity Assessment**: "+estimate)
	}
	return section("Time Estimates", sourcePlan, "No time estimates provided in plan.", parts)
}

func files(p *model.ImplementationPlan) Section {
	all := p.AllFiles()
	var parts []string
	if len(all) > 0 {
		parts = append(parts, fmt.Sprintf("**Files to Create/Modify**: %d files\n", len(all)))
		for i, f := range all[:min(len(all), fileLimit)] {
			parts = append(parts, fmt.Sprintf("  %d. %s", i+1, f))
		}
		if len(all) > fileLimit {
			parts = append(parts, fmt.Sprintf("  ... and %d more files", len(all)-fileLimit))
		}
	}
	return section("Files", sourcePlan, "No files specified in plan.", parts)
}

func numbered(header string, items []string) []string {
	parts := []string{header}
	for i, it := range items {
		parts = append(parts, fmt.Sprintf("  %d. %s", i+1, it))
	}
	return parts
}

func dependencies(p *model.ImplementationPlan) Section {
	var parts []string
	if n := len(p.ExternalDependencies); n > 0 {
		parts = numbered(fmt.Sprintf("**External Dependencies**: %d dependencies\n", n), p.ExternalDependencies)
	}
	return section("Dependencies", sourcePlan, "No external dependencies specified in plan.", parts)
}

func phases(p *model.ImplementationPlan) Section {
	var parts []string
	if n := len(p.Phases); n > 0 {
		parts = numbered(fmt.Sprintf("**Implementation Phases**: %d phases\n", n), p.Phases)
	}
	return section("Implementation Order", sourcePlan, "No explicit phases defined in plan.", parts)
}

func complexityDetails(p *model.ImplementationPlan) Section {
	if p.Complexity == nil {
		parts := []string{
			fmt.Sprintf("**Files to Create**: %d", p.FileCount()),
			fmt.Sprintf("**Dependencies**: %d", p.DependencyCount()),
		}
		if p.EstimatedLOC > 0 {
			parts = append(parts, fmt.Sprintf("**Estimated LOC**: %d", p.EstimatedLOC))
		}
		return section("Complexity Analysis", sourcePlan, "", parts)
	}
	score := p.Complexity
	parts := []string{fmt.Sprintf("**Complexity Score**: %d/10\n", score.TotalScore)}
	if len(score.Factors) > 0 {
		parts = append(parts, "**Factor Breakdown**:")
		for _, f := range score.Factors {
			parts = append(parts,
				fmt.Sprintf("  - %s: %s/%s", f.Name, formatScore(f.Score), formatScore(f.MaxScore)),
				"    "+f.Justification)
		}
	}
	return section("Complexity Analysis", sourceComplexity, "", parts)
}

func general(p *model.ImplementationPlan) Section {
	parts := []string{
		"**Task**: " + p.TaskID,
		fmt.Sprintf("**Files**: %d files to create/modify", len(p.AllFiles())),
	}
	if n := len(p.ExternalDependencies); n > 0 {
		parts = append(parts, fmt.Sprintf("**Dependencies**: %d external", n))
	}
	if p.EstimatedDuration != "" {
		parts = append(parts, "**Duration**: "+p.EstimatedDuration)
	}
	parts = append(parts, "\n💡 **Tip**: Ask more specific questions about:\n"+
		"  - 'Why was this approach chosen?' (rationale)\n"+
		"  - 'What are the risks?' (risk assessment)\n"+
		"  - 'How is this tested?' (test strategy)\n"+
		"  - 'What files are created?' (file details)")
	return section("Plan Overview", sourcePlan, "", parts)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
