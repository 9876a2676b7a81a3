package qa

import "strings"

// Category is a plan topic a question can be about.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryRationale
	CategoryTesting
	CategoryRisks
	CategoryDuration
	CategoryFiles
	CategoryDependencies
	CategoryPhases
	CategoryComplexity
)

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryRationale:
		return "rationale"
	case CategoryTesting:
		return "testing"
	case CategoryRisks:
		return "risks"
	case CategoryDuration:
		return "duration"
	case CategoryFiles:
		return "files"
	case CategoryDependencies:
		return "dependencies"
	case CategoryPhases:
		return "phases"
	case CategoryComplexity:
		return "complexity"
	default:
		return "unknown"
	}
}

type keywordSet struct {
	category Category
	keywords []string
}

// Table order breaks ties.
var keywordTable = []keywordSet{
	{CategoryRationale, []string{"why", "rationale", "reason", "because", "chose", "chosen"}},
	{CategoryTesting, []string{"test", "testing", "tested", "tests", "verify", "validation"}},
	{CategoryRisks, []string{"risk", "risks", "concern", "danger", "problem", "fail", "what if"}},
	{CategoryDuration, []string{"time", "duration", "long", "hours", "estimate", "how long"}},
	{CategoryFiles, []string{"file", "files", "create", "modify", "change", "touch"}},
	{CategoryDependencies, []string{"depend", "dependency", "library", "package", "import"}},
	{CategoryPhases, []string{"phase", "order", "step", "sequence", "first", "next"}},
	{CategoryComplexity, []string{"complex", "score", "difficult", "simple", "simplify"}},
}

// Matcher maps a question to a category by keyword substring counts.
type Matcher struct{}

// Match returns the best category and the keywords that matched it.
func (Matcher) Match(question string) (Category, []string) {
	q := strings.ToLower(question)
	best := CategoryGeneral
	var bestKeywords []string
	for _, set := range keywordTable {
		var matched []string
		for _, kw := range set.keywords {
			if strings.Contains(q, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > len(bestKeywords) {
			best, bestKeywords = set.category, matched
		}
	}
	return best, bestKeywords
}

// confidence scores how trustworthy a keyword answer is on a 0..10 scale.
func confidence(c Category, matched []string) int {
	switch {
	case c == CategoryGeneral:
		return 4
	case len(matched) >= 2:
		return 8
	case len(matched) == 1:
		return 6
	default:
		return 5
	}
}
