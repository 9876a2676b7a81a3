package complexity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// FailSafeReason is recorded on every fail-safe score.
const FailSafeReason = "Complexity calculation failed - defaulting to full review for safety"

// defaultEmptyScore is used when no factor could be evaluated.
const defaultEmptyScore = 5

var breakingChangePhrases = []string{
	"breaking change",
	"breaking api",
	"remove endpoint",
	"delete endpoint",
	"rename endpoint",
	"change contract",
	"modify response",
	"modify request",
	"api version",
}

// ErrorKind classifies calculator failures.
type ErrorKind int

const (
	KindCalculation ErrorKind = iota
	KindInvalidContext
)

func (k ErrorKind) String() string {
	switch k {
	case KindCalculation:
		return "calculation"
	case KindInvalidContext:
		return "invalid_context"
	default:
		return "unknown"
	}
}

// Error is returned alongside a fail-safe score.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("complexity %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Calculator runs factors against a context and produces a ComplexityScore.
type Calculator struct {
	factors []Factor
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a calculator with the given factors. A nil logger is replaced
// with a no-op logger.
func New(logger *zap.Logger, factors ...Factor) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		factors: factors,
		logger:  logger,
		now:     time.Now,
	}
}

// NewDefault creates a calculator with the standard factor set.
func NewDefault(logger *zap.Logger) *Calculator {
	return New(logger, DefaultFactors()...)
}

// WithClock overrides the time source. Intended for tests.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Calculate scores the context. The returned score is always usable: on
// failure it is the fail-safe score and err describes why. A cancelled ctx
// yields the fail-safe score and an error wrapping ctx.Err().
func (c *Calculator) Calculate(ctx context.Context, ec EvaluationContext) (score model.ComplexityScore, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.FailSafe(ec, ctxErr), ctxErr
	}
	if ec.Plan == nil {
		e := &Error{Kind: KindInvalidContext, Err: errNoPlan}
		c.logger.Error("complexity calculation failed", zap.String("task_id", ec.TaskID), zap.Error(e))
		return c.FailSafe(ec, e), e
	}

	defer func() {
		if r := recover(); r != nil {
			e := &Error{Kind: KindCalculation, Err: fmt.Errorf("panic: %v", r)}
			c.logger.Error("complexity calculation failed", zap.String("task_id", ec.TaskID), zap.Error(e))
			score, err = c.FailSafe(ec, e), e
		}
	}()

	factors := c.evaluateFactors(ctx, ec)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.FailSafe(ec, ctxErr), ctxErr
	}

	total := aggregate(factors)
	triggers := detectTriggers(ec)

	score = model.ComplexityScore{
		TotalScore:   total,
		Factors:      factors,
		Triggers:     triggers,
		Mode:         model.ModeFor(total, triggers),
		CalculatedAt: c.now().UTC(),
		Metadata: map[string]any{
			"task_id":           ec.TaskID,
			"technology_stack":  ec.TechnologyStack,
			"factors_evaluated": len(factors),
		},
	}

	c.logger.Debug("complexity calculated",
		zap.String("task_id", ec.TaskID),
		zap.Int("total_score", total),
		zap.Stringer("mode", score.Mode),
		zap.Int("triggers", len(triggers)))

	return score, nil
}

// FailSafe returns the maximally conservative score for ec.
func (c *Calculator) FailSafe(ec EvaluationContext, cause error) model.ComplexityScore {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return model.ComplexityScore{
		TotalScore:   model.MaxTotalScore,
		Mode:         model.FullRequired,
		CalculatedAt: c.now().UTC(),
		Metadata: map[string]any{
			"task_id":  ec.TaskID,
			"failsafe": true,
			"error":    msg,
			"reason":   FailSafeReason,
		},
	}
}

func (c *Calculator) evaluateFactors(ctx context.Context, ec EvaluationContext) []model.FactorScore {
	scores := make([]model.FactorScore, 0, len(c.factors))
	for _, f := range c.factors {
		if ctx.Err() != nil {
			break
		}
		fs, err := evaluateOne(f, ec)
		if err != nil {
			c.logger.Warn("factor evaluation failed",
				zap.String("factor", f.Name()),
				zap.String("task_id", ec.TaskID),
				zap.Error(err))
			continue
		}
		scores = append(scores, fs)
	}
	return scores
}

// evaluateOne isolates a single factor so a panic skips only that factor.
func evaluateOne(f Factor, ec EvaluationContext) (fs model.FactorScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factor %s panicked: %v", f.Name(), r)
		}
	}()
	return f.Evaluate(ec)
}

func aggregate(factors []model.FactorScore) int {
	if len(factors) == 0 {
		return defaultEmptyScore
	}
	var sum float64
	for _, f := range factors {
		sum += f.Score
	}
	total := int(math.Round(min(sum, model.MaxTotalScore)))
	return max(total, model.MinTotalScore)
}

func detectTriggers(ec EvaluationContext) []model.ForceTrigger {
	var triggers []model.ForceTrigger
	if ec.UserRequestedReview() {
		triggers = append(triggers, model.TriggerUserFlag)
	}
	if ec.Plan.HasSecurityKeywords() {
		triggers = append(triggers, model.TriggerSecurityKeywords)
	}
	if ec.Plan.HasSchemaChanges() {
		triggers = append(triggers, model.TriggerSchemaChanges)
	}
	if ec.IsHotfix() {
		triggers = append(triggers, model.TriggerHotfix)
	}
	if hasBreakingChanges(ec.Plan.RawPlan) {
		triggers = append(triggers, model.TriggerBreakingChanges)
	}
	return triggers
}

func hasBreakingChanges(raw string) bool {
	text := strings.ToLower(raw)
	for _, phrase := range breakingChangePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// IsInterrupt reports whether err is a cancellation rather than a failure.
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
