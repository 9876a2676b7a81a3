package complexity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// Factor scores one complexity dimension.
type Factor interface {
	Name() string
	MaxScore() float64
	Evaluate(ec EvaluationContext) (model.FactorScore, error)
}

var errNoPlan = errors.New("evaluation context has no plan")

// DefaultFactors returns the standard factor set in evaluation order.
func DefaultFactors() []Factor {
	return []Factor{
		FileComplexity{},
		PatternFamiliarity{},
		RiskLevel{},
	}
}

// FileComplexity scores the number of files a plan creates.
type FileComplexity struct{}

func (FileComplexity) Name() string      { return "file_complexity" }
func (FileComplexity) MaxScore() float64 { return 3 }

func (f FileComplexity) Evaluate(ec EvaluationContext) (model.FactorScore, error) {
	if ec.Plan == nil {
		return model.FactorScore{}, errNoPlan
	}
	n := ec.Plan.FileCount()

	var score float64
	var justification string
	switch {
	case n <= 2:
		score = 0
		justification = fmt.Sprintf("Simple change (%d files) - minimal complexity", n)
	case n <= 5:
		score = 1
		justification = fmt.Sprintf("Moderate change (%d files) - multi-file coordination", n)
	case n <= 8:
		score = 2
		justification = fmt.Sprintf("Complex change (%d files) - multiple components", n)
	default:
		score = 3
		justification = fmt.Sprintf("Very complex change (%d files) - cross-cutting concerns", n)
	}

	files := ec.Plan.FilesToCreate
	if len(files) > 5 {
		files = files[:5]
	}

	return model.FactorScore{
		Name:          f.Name(),
		Score:         score,
		MaxScore:      f.MaxScore(),
		Justification: justification,
		Details: map[string]any{
			"file_count": n,
			"files":      append([]string(nil), files...),
		},
	}, nil
}

// Pattern complexity tiers.
var (
	moderatePatterns = []string{"strategy", "observer", "decorator", "command", "chain"}
	advancedPatterns = []string{"saga", "cqrs", "event sourcing", "mediator", "specification"}
)

// PatternFamiliarity scores the sophistication of the design patterns used.
type PatternFamiliarity struct{}

func (PatternFamiliarity) Name() string      { return "pattern_familiarity" }
func (PatternFamiliarity) MaxScore() float64 { return 2 }

func (f PatternFamiliarity) Evaluate(ec EvaluationContext) (model.FactorScore, error) {
	if ec.Plan == nil {
		return model.FactorScore{}, errNoPlan
	}

	patterns := make([]string, 0, len(ec.Plan.PatternsUsed))
	for _, p := range ec.Plan.PatternsUsed {
		patterns = append(patterns, strings.ToLower(p))
	}

	var (
		score         float64
		justification string
		category      string
	)
	if advanced := matchingPatterns(patterns, advancedPatterns); len(advanced) > 0 {
		score = 2
		category = "advanced"
		justification = fmt.Sprintf("Advanced patterns detected: %s - high complexity", strings.Join(advanced, ", "))
	} else if len(patterns) > 0 {
		if moderate := matchingPatterns(patterns, moderatePatterns); len(moderate) > 0 {
			score = 1
			category = "moderate"
			justification = fmt.Sprintf("Moderate patterns: %s - familiar complexity", strings.Join(moderate, ", "))
		} else {
			category = "simple"
			justification = fmt.Sprintf("Simple patterns: %s - low complexity", strings.Join(patterns, ", "))
		}
	} else {
		category = "none"
		justification = "No specific patterns mentioned - straightforward implementation"
	}

	return model.FactorScore{
		Name:          f.Name(),
		Score:         score,
		MaxScore:      f.MaxScore(),
		Justification: justification,
		Details: map[string]any{
			"pattern_category": category,
			"patterns":         patterns,
		},
	}, nil
}

func matchingPatterns(patterns, tier []string) []string {
	var found []string
	for _, p := range patterns {
		for _, t := range tier {
			if strings.Contains(p, t) {
				found = append(found, p)
				break
			}
		}
	}
	return found
}

// Risk keyword tables, one per category.
var riskCategories = []struct {
	name     string
	keywords []string
}{
	{
		name: "security",
		keywords: []string{
			"authentication", "authorization", "auth", "security", "permission",
			"password", "token", "jwt", "oauth", "encryption", "crypto", "signing",
		},
	},
	{
		name: "data_integrity",
		keywords: []string{
			"migration", "schema", "alter table", "create table", "drop table",
			"database", "transaction", "acid", "consistency",
		},
	},
	{
		name: "external_integration",
		keywords: []string{
			"api", "external", "third-party", "integration", "webhook",
			"http client", "rest", "graphql", "grpc",
		},
	},
	{
		name: "performance",
		keywords: []string{
			"performance", "optimization", "caching", "scaling", "load",
			"throughput", "latency", "real-time", "streaming",
		},
	},
}

const maxIndicatorsPerCategory = 10

// RiskLevel scores how many risk categories the raw plan touches.
type RiskLevel struct{}

func (RiskLevel) Name() string      { return "risk_level" }
func (RiskLevel) MaxScore() float64 { return 3 }

func (f RiskLevel) Evaluate(ec EvaluationContext) (model.FactorScore, error) {
	if ec.Plan == nil {
		return model.FactorScore{}, errNoPlan
	}
	text := strings.ToLower(ec.Plan.RawPlan)

	details := map[string]any{}
	var hit []string
	for _, cat := range riskCategories {
		n := countKeywords(text, cat.keywords)
		details[cat.name+"_indicators"] = n
		if n > 0 {
			hit = append(hit, fmt.Sprintf("%s (%d indicators)", cat.name, n))
		}
	}
	count := len(hit)

	var (
		score         float64
		level         string
		justification string
	)
	switch {
	case count == 0:
		level = "low"
		justification = "No significant risk indicators - low risk"
	case count <= 2:
		score = 1
		level = "moderate"
		justification = fmt.Sprintf("Moderate risk (%d risk categories) - standard caution", count)
	case count <= 4:
		score = 2
		level = "high"
		justification = fmt.Sprintf("High risk (%d risk categories) - careful review needed", count)
	default:
		score = 3
		level = "critical"
		justification = fmt.Sprintf("Critical risk (%d+ risk categories) - comprehensive review required", count)
	}

	details["risk_level"] = level
	details["risk_count"] = count
	details["risk_categories"] = hit

	return model.FactorScore{
		Name:          f.Name(),
		Score:         score,
		MaxScore:      f.MaxScore(),
		Justification: justification,
		Details:       details,
	}, nil
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return min(n, maxIndicatorsPerCategory)
}
