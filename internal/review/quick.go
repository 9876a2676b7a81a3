package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/model"
)

// DefaultCountdown is the quick review auto-approve delay.
const DefaultCountdown = 10 * time.Second

const (
	cardWidth         = 60
	instructionsLimit = 200
	maxPatterns       = 3
	maxWarnings       = 2
)

// QuickAction is the outcome of a quick review.
type QuickAction int

const (
	QuickTimeout QuickAction = iota // auto-approved
	QuickEnter                      // escalated to full review
	QuickCancel
)

func (a QuickAction) String() string {
	switch a {
	case QuickTimeout:
		return "timeout"
	case QuickEnter:
		return "enter"
	case QuickCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

func (a QuickAction) MarshalText() ([]byte, error) {
	if a < QuickTimeout || a > QuickCancel {
		return nil, fmt.Errorf("invalid quick action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *QuickAction) UnmarshalText(b []byte) error {
	for _, c := range []QuickAction{QuickTimeout, QuickEnter, QuickCancel} {
		if c.String() == string(b) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown quick action %q", string(b))
}

// QuickResult is the persisted outcome of a quick review.
type QuickResult struct {
	Action          QuickAction    `json:"action"`
	Timestamp       string         `json:"timestamp"`
	AutoApproved    bool           `json:"auto_approved"`
	MetadataUpdates map[string]any `json:"metadata_updates"`
}

// QuickDeps are the QuickHandler's collaborators.
type QuickDeps struct {
	Keys      input.KeySource
	Out       io.Writer
	Logger    *zap.Logger
	Clock     input.Clock
	Results   *ResultStore
	Metrics   metrics.Recorder
	Countdown time.Duration
}

// QuickHandler runs the quick review checkpoint.
type QuickHandler struct {
	keys      input.KeySource
	out       io.Writer
	logger    *zap.Logger
	clock     input.Clock
	results   *ResultStore
	metrics   metrics.Recorder
	countdown time.Duration
	st        styles
}

// NewQuickHandler creates a quick review handler.
func NewQuickHandler(d QuickDeps) *QuickHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = input.SystemClock{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Countdown <= 0 {
		d.Countdown = DefaultCountdown
	}
	return &QuickHandler{
		keys:      d.Keys,
		out:       d.Out,
		logger:    d.Logger,
		clock:     d.Clock,
		results:   d.Results,
		metrics:   d.Metrics,
		countdown: d.Countdown,
		st:        newStyles(lipgloss.NewRenderer(d.Out)),
	}
}

// Run shows the summary card and the countdown. Any countdown failure other
// than an interrupt escalates to full review; input.ErrInterrupted is
// returned as is.
func (h *QuickHandler) Run(ctx context.Context, score model.ComplexityScore, p *model.ImplementationPlan, taskID string) (QuickResult, error) {
	h.renderCard(score, p)

	outcome, err := input.Countdown(ctx, h.keys, h.out, input.CountdownOptions{
		Duration: h.countdown,
		Message:  "Quick review mode active.",
		Options:  "Press [Enter] to see full review, [C] to cancel, or wait to auto-proceed",
		Clock:    h.clock,
	})
	if errors.Is(err, input.ErrInterrupted) {
		return QuickResult{}, err
	}

	var result QuickResult
	switch {
	case err != nil:
		h.logger.Warn("quick review failed, escalating", zap.String("task_id", taskID), zap.Error(err))
		fmt.Fprintf(h.out, "\nError during quick review: %v\n", err)
		fmt.Fprint(h.out, "Escalating to full review for safety...\n\n")
		result = h.escalate()
	case outcome == input.OutcomeTimeout:
		result = h.approve(score)
	case outcome == input.OutcomeCancel:
		result = h.cancel()
	default:
		result = h.escalate()
	}

	h.logger.Info("quick review finished",
		zap.String("task_id", taskID),
		zap.Stringer("action", result.Action),
		zap.Bool("auto_approved", result.AutoApproved))
	if err := h.metrics.Record(ctx, metrics.Event{
		TaskID: taskID,
		Kind:   metrics.KindReview,
		Score:  score.TotalScore,
		Mode:   score.Mode.String(),
		Action: result.Action.String(),
	}); err != nil {
		h.logger.Warn("could not record review metrics", zap.Error(err))
	}
	return result, nil
}

// SaveResult writes r to the task's result file.
func (h *QuickHandler) SaveResult(r QuickResult, taskID string) (string, error) {
	if h.results == nil {
		return "", errors.New("no result store configured")
	}
	return h.results.Save(r, taskID)
}

func (h *QuickHandler) approve(score model.ComplexityScore) QuickResult {
	ts := timestamp(h.clock.Now())
	return QuickResult{
		Action:       QuickTimeout,
		Timestamp:    ts,
		AutoApproved: true,
		MetadataUpdates: map[string]any{
			"review_mode":      "quick_review",
			"review_action":    "auto_approved",
			"review_timestamp": ts,
			"complexity_score": displayScore(score),
			"auto_approved":    true,
		},
	}
}

func (h *QuickHandler) escalate() QuickResult {
	ts := timestamp(h.clock.Now())
	return QuickResult{
		Action:    QuickEnter,
		Timestamp: ts,
		MetadataUpdates: map[string]any{
			"review_mode":          "quick_review",
			"review_action":        "escalated_to_full",
			"escalation_timestamp": ts,
			"auto_approved":        false,
		},
	}
}

func (h *QuickHandler) cancel() QuickResult {
	ts := timestamp(h.clock.Now())
	return QuickResult{
		Action:    QuickCancel,
		Timestamp: ts,
		MetadataUpdates: map[string]any{
			"review_mode":            "quick_review",
			"review_action":          "cancelled",
			"cancellation_timestamp": ts,
			"auto_approved":          false,
		},
	}
}

// displayScore maps the 1-10 total onto the 0-100 badge scale.
func displayScore(score model.ComplexityScore) int {
	return score.TotalScore * 10
}

// Badge renders "[SCORE: N/100 - label]".
func Badge(display int) string {
	label := "Needs Revision"
	switch {
	case display >= 80:
		label = "Excellent"
	case display >= 60:
		label = "Acceptable"
	}
	return fmt.Sprintf("[SCORE: %d/100 - %s]", display, label)
}

func (h *QuickHandler) badgeStyle(display int) lipgloss.Style {
	switch {
	case display >= 80:
		return h.st.excellent
	case display >= 60:
		return h.st.fair
	default:
		return h.st.poor
	}
}

// FileSummary renders "N files (LOC lines)".
func FileSummary(p *model.ImplementationPlan) string {
	n := len(p.FilesToCreate)
	if p.EstimatedLOC > 0 {
		return fmt.Sprintf("%d files (%d lines)", n, p.EstimatedLOC)
	}
	return fmt.Sprintf("%d files", n)
}

func (h *QuickHandler) renderCard(score model.ComplexityScore, p *model.ImplementationPlan) {
	if p == nil {
		p = &model.ImplementationPlan{}
	}
	rule := h.st.rule.Render(strings.Repeat("=", cardWidth))
	fmt.Fprintf(h.out, "\n%s\n%s\n%s\n", rule, h.st.title.Render("ARCHITECTURAL REVIEW - QUICK MODE"), rule)

	display := displayScore(score)
	fmt.Fprintf(h.out, "\nComplexity Score: %s\n", h.badgeStyle(display).Render(Badge(display)))
	fmt.Fprintf(h.out, "Files to Create: %s\n", FileSummary(p))

	instructions := p.ImplementationInstructions
	if instructions == "" {
		instructions = p.RawPlan
	}
	instructions = truncate(instructions, instructionsLimit)
	if instructions != "" {
		fmt.Fprintf(h.out, "\nInstructions: %s\n", instructions)
	}

	patterns := metadataStrings(score.Metadata, "patterns_detected")
	if len(patterns) == 0 {
		patterns = p.PatternsUsed
	}
	if len(patterns) > 0 {
		fmt.Fprintf(h.out, "\nKey Patterns: %s\n", strings.Join(patterns[:min(len(patterns), maxPatterns)], ", "))
	}

	if warnings := metadataStrings(score.Metadata, "warnings"); len(warnings) > 0 {
		fmt.Fprintf(h.out, "\n%s\n", h.st.accent.Render(fmt.Sprintf("Warnings: %d issue(s) detected", len(warnings))))
		for _, w := range warnings[:min(len(warnings), maxWarnings)] {
			fmt.Fprintf(h.out, "  - %s\n", w)
		}
	}
	fmt.Fprintf(h.out, "\n%s\n", rule)
}

// metadataStrings reads a string list from score metadata, accepting both
// []string and the []any produced by JSON decoding.
func metadataStrings(md map[string]any, key string) []string {
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// truncate shortens s to at most limit runes, ending in "...".
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}
