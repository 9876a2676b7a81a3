// Package router turns a complexity score into a review decision.
package router

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/model"
)

// Routing recommendations.
const (
	RecommendImplementation = "Phase 3"
	RecommendOptional       = "Phase 2.6 Checkpoint (Optional)"
	RecommendRequired       = "Phase 2.6 Checkpoint (Required)"
	RecommendErrorRecovery  = "Phase 2.6 Checkpoint (Required - Error Recovery)"
)

// criticalRatio marks a factor as critical in summaries.
const criticalRatio = 0.7

// Error is returned with a fail-safe decision when routing fails.
type Error struct {
	TaskID string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("routing %s: %v", e.TaskID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Router builds ReviewDecisions.
type Router struct {
	logger *zap.Logger
	now    func() time.Time
}

// New creates a router.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Route translates score into a decision. It never returns an auto-approved
// decision together with a non-nil error.
func (r *Router) Route(score model.ComplexityScore, ec complexity.EvaluationContext) (decision model.ReviewDecision, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &Error{TaskID: ec.TaskID, Err: fmt.Errorf("panic: %v", p)}
			decision = r.failSafe(score, ec, err.Error())
		}
	}()

	if err := validate(score); err != nil {
		rerr := &Error{TaskID: ec.TaskID, Err: err}
		r.logger.Error("routing failed", zap.String("task_id", ec.TaskID), zap.Error(rerr))
		return r.failSafe(score, ec, rerr.Error()), rerr
	}

	r.logger.Info("routing task",
		zap.String("task_id", ec.TaskID),
		zap.Int("score", score.TotalScore),
		zap.Stringer("mode", score.Mode))

	if score.IsFailSafe() {
		msg, _ := score.Metadata["error"].(string)
		return r.failSafe(score, ec, msg), nil
	}

	switch score.Mode {
	case model.AutoProceed:
		decision = model.ReviewDecision{
			Action:         model.ActionProceed,
			AutoApproved:   true,
			Summary:        autoProceedSummary(score, ec.TaskID),
			Recommendation: RecommendImplementation,
		}
	case model.QuickOptional:
		decision = model.ReviewDecision{
			Action:         model.ActionReviewRequired,
			Summary:        quickOptionalSummary(score, ec.TaskID),
			Recommendation: RecommendOptional,
		}
	case model.FullRequired:
		decision = model.ReviewDecision{
			Action:         model.ActionReviewRequired,
			Summary:        fullRequiredSummary(score, ec.TaskID),
			Recommendation: RecommendRequired,
		}
	}
	decision.Score = score
	decision.Timestamp = r.now().UTC()

	r.logger.Info("routing decision",
		zap.String("task_id", ec.TaskID),
		zap.Stringer("action", decision.Action),
		zap.String("recommendation", decision.Recommendation))

	return decision, nil
}

func validate(score model.ComplexityScore) error {
	if score.TotalScore < model.MinTotalScore || score.TotalScore > model.MaxTotalScore {
		return fmt.Errorf("total score %d out of range", score.TotalScore)
	}
	if want := model.ModeFor(score.TotalScore, score.Triggers); score.Mode != want {
		return fmt.Errorf("mode %s inconsistent with score %d (want %s)", score.Mode, score.TotalScore, want)
	}
	return nil
}

func (r *Router) failSafe(score model.ComplexityScore, ec complexity.EvaluationContext, msg string) model.ReviewDecision {
	r.logger.Warn("fail-safe routing decision", zap.String("task_id", ec.TaskID), zap.String("error", msg))

	summary := fmt.Sprintf("⚠️  Complexity Evaluation Error - %s\n\n"+
		"An error occurred during complexity evaluation:\n%s\n\n"+
		"Defaulting to FULL REVIEW REQUIRED for safety.\n"+
		"Please review the implementation plan before proceeding.\n", ec.TaskID, msg)

	return model.ReviewDecision{
		Action:         model.ActionReviewRequired,
		Summary:        summary,
		Recommendation: RecommendErrorRecovery,
		Timestamp:      r.now().UTC(),
		Score:          score,
	}
}

func autoProceedSummary(score model.ComplexityScore, taskID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Complexity Evaluation - %s\n\n", taskID)
	fmt.Fprintf(&b, "Score: %d/10 (Low Complexity - Auto-Proceed)\n\n", score.TotalScore)
	b.WriteString("Factor Breakdown:\n")
	for _, f := range score.Factors {
		writeFactor(&b, "•", f)
	}
	b.WriteString("\n✅ AUTO-PROCEEDING to Phase 3 (Implementation)\n")
	b.WriteString("   No human review required for this simple task.")
	return b.String()
}

func quickOptionalSummary(score model.ComplexityScore, taskID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️  Complexity Evaluation - %s\n\n", taskID)
	fmt.Fprintf(&b, "Score: %d/10 (Moderate Complexity - Optional Review)\n\n", score.TotalScore)
	b.WriteString("Factor Breakdown:\n")
	for _, f := range score.Factors {
		icon := "•"
		if isCritical(f) {
			icon = "⚠️"
		}
		writeFactor(&b, icon, f)
	}
	b.WriteString("\n⚠️  OPTIONAL CHECKPOINT\n")
	b.WriteString("   You may review the plan before proceeding, but it's not required.\n")
	b.WriteString("   [Enter] to review in detail | [C] to cancel | wait to auto-approve")
	return b.String()
}

func fullRequiredSummary(score model.ComplexityScore, taskID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 Complexity Evaluation - %s\n\n", taskID)
	fmt.Fprintf(&b, "Score: %d/10 (High Complexity - REVIEW REQUIRED)\n\n", score.TotalScore)
	if score.HasTriggers() {
		b.WriteString("Force-Review Triggers:\n")
		for _, t := range score.Triggers {
			fmt.Fprintf(&b, "  🔴 %s\n", t.Title())
		}
		b.WriteByte('\n')
	}
	b.WriteString("Factor Breakdown:\n")
	for _, f := range score.Factors {
		icon := "⚠️"
		if isCritical(f) {
			icon = "🔴"
		}
		writeFactor(&b, icon, f)
	}
	b.WriteString("\n🔴 MANDATORY CHECKPOINT - Phase 2.6 Required\n")
	b.WriteString("   This task requires human review before implementation.\n")
	b.WriteString("   Proceeding to Phase 2.6 human checkpoint...")
	return b.String()
}

func writeFactor(b *strings.Builder, icon string, f model.FactorScore) {
	fmt.Fprintf(b, "  %s %s: %s/%s - %s\n", icon, f.Name, num(f.Score), num(f.MaxScore), f.Justification)
}

func isCritical(f model.FactorScore) bool {
	return f.Score >= f.MaxScore*criticalRatio
}

// CompactSummary renders a single-line summary for logs and task metadata.
func CompactSummary(score model.ComplexityScore) string {
	var triggers string
	if score.HasTriggers() {
		names := make([]string, len(score.Triggers))
		for i, t := range score.Triggers {
			names[i] = t.String()
		}
		triggers = ", triggers: " + strings.Join(names, ", ")
	}
	factors := make([]string, len(score.Factors))
	for i, f := range score.Factors {
		factors[i] = fmt.Sprintf("%s=%s/%s", f.Name, num(f.Score), num(f.MaxScore))
	}
	return fmt.Sprintf("Complexity: %d/10 (%s)%s | Factors: %s",
		score.TotalScore, score.Mode, triggers, strings.Join(factors, ", "))
}

// num formats whole numbers without a decimal point.
func num(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
