package tui

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// renderedLine is one line of pager output ready for display.
type renderedLine struct {
	Content string
	// Anchor lines are the targets of section navigation. Label names the
	// anchor in the section list.
	Anchor  bool
	Label   string
	Heading bool

	// Tokens holds highlighting for JSON lines and fenced code.
	Tokens []token

	HasRisk bool
	Risk    model.RiskLevel
}

// renderFormatted lays the plan's sections out one after another with a
// blank line between them.
func renderFormatted(sections []Section) []renderedLine {
	var lines []renderedLine
	for i, s := range sections {
		lines = append(lines, renderedLine{Content: s.Title, Anchor: true, Label: s.Title, Heading: true})
		var code [][]token
		if s.Risks == nil {
			code = highlightFences(s.Lines)
		}
		for j, l := range s.Lines {
			rl := renderedLine{Content: l}
			if code != nil {
				rl.Tokens = code[j]
			}
			if j < len(s.Risks) {
				rl.HasRisk = true
				rl.Risk = s.Risks[j]
			}
			lines = append(lines, rl)
		}
		if i < len(sections)-1 {
			lines = append(lines, renderedLine{})
		}
	}
	return lines
}

// renderJSON renders the plan's JSON form with syntax highlighting. Each
// top-level key is an anchor.
func renderJSON(p *model.ImplementationPlan) []renderedLine {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return []renderedLine{{Content: "error encoding plan: " + err.Error()}}
	}
	raw := strings.Split(string(data), "\n")
	highlighted := highlightJSON(raw)

	lines := make([]renderedLine, len(raw))
	for i, l := range raw {
		lines[i] = renderedLine{Content: l, Tokens: highlighted[i]}
		if key, ok := topLevelKey(l); ok {
			lines[i].Anchor = true
			lines[i].Label = key
		}
	}
	return lines
}

// topLevelKey reports the key of a line like `  "files_to_create": [`.
func topLevelKey(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, `  "`)
	if !ok {
		return "", false
	}
	key, _, ok := strings.Cut(rest, `"`)
	return key, ok
}

// styleLine applies styling to a rendered line.
func styleLine(rl renderedLine, width int) string {
	text := truncate(rl.Content, width)
	switch {
	case rl.Heading:
		return headingStyle.Render(text)
	case rl.HasRisk:
		return riskStyle(rl.Risk).Render(text)
	case len(rl.Tokens) > 0 && lipgloss.Width(rl.Content) <= width:
		var b strings.Builder
		for _, t := range rl.Tokens {
			if t.Color == "" {
				b.WriteString(t.Text)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render(t.Text))
		}
		return b.String()
	default:
		return textStyle.Render(text)
	}
}

func riskStyle(l model.RiskLevel) lipgloss.Style {
	switch l {
	case model.RiskHigh:
		return riskHighStyle
	case model.RiskMedium:
		return riskMediumStyle
	default:
		return riskLowStyle
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
