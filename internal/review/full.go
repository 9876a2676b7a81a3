package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/modify"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/qa"
	"github.com/sprite-ai/reviewgate/internal/task"
	"github.com/sprite-ai/reviewgate/internal/tui"
)

// CancellationReason is recorded on tasks cancelled at the checkpoint.
const CancellationReason = "user_requested"

const warnInvalidAfter = 3

// FullAction is the terminal decision of a full review.
type FullAction int

const (
	ActionApprove FullAction = iota
	ActionCancel
)

func (a FullAction) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

func (a FullAction) MarshalText() ([]byte, error) {
	if a < ActionApprove || a > ActionCancel {
		return nil, fmt.Errorf("invalid review action %d", int(a))
	}
	return []byte(a.String()), nil
}

// FullResult is the outcome of a full review.
type FullResult struct {
	Action                  FullAction                `json:"action"`
	Timestamp               string                    `json:"timestamp"`
	Approved                bool                      `json:"approved"`
	MetadataUpdates         map[string]any            `json:"metadata_updates"`
	ProceedToImplementation bool                      `json:"proceed_to_phase_3"`
	Plan                    *model.ImplementationPlan `json:"-"`
	Score                   model.ComplexityScore     `json:"-"`
}

// Pager shows a plan full screen.
type Pager interface {
	Show(ctx context.Context, p *model.ImplementationPlan) error
}

// FullDeps are the FullHandler's collaborators.
type FullDeps struct {
	Console    *input.Console
	Pager      Pager
	Tasks      *task.Store
	Plans      *plan.Store
	Calculator *complexity.Calculator
	Sessions   *modify.SessionStore
	Metrics    metrics.Recorder
	Logger     *zap.Logger
	Now        func() time.Time
}

// FullRequest describes the plan under review.
type FullRequest struct {
	TaskID    string
	TaskFile  *task.File
	Score     model.ComplexityScore
	Plan      *model.ImplementationPlan
	Escalated bool
	Metadata  complexity.TaskMetadata
	Stack     string
	Flags     complexity.UserFlags
}

// FullHandler runs the full review checkpoint loop.
type FullHandler struct {
	con      *input.Console
	pager    Pager
	tasks    *task.Store
	plans    *plan.Store
	calc     *complexity.Calculator
	modifier *modify.Modifier
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
	st       styles
}

// NewFullHandler creates a full review handler.
func NewFullHandler(d FullDeps) *FullHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Calculator == nil {
		d.Calculator = complexity.NewDefault(d.Logger)
	}
	return &FullHandler{
		con:   d.Console,
		pager: d.Pager,
		tasks: d.Tasks,
		plans: d.Plans,
		calc:  d.Calculator,
		modifier: modify.NewModifier(modify.Deps{
			Console:  d.Console,
			Plans:    d.Plans,
			Sessions: d.Sessions,
			Logger:   d.Logger,
			Now:      d.Now,
		}),
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
		st:      newStyles(lipgloss.NewRenderer(d.Console.Out())),
	}
}

// run is the mutable state of one review.
type run struct {
	req     FullRequest
	plan    *model.ImplementationPlan
	score   model.ComplexityScore
	started time.Time
}

// Run renders the checkpoint and loops until the plan is approved or the
// task cancelled. Ctrl+C and end of input cancel without confirmation.
func (h *FullHandler) Run(ctx context.Context, req FullRequest) (*FullResult, error) {
	if req.Plan == nil {
		return nil, errors.New("full review needs a plan")
	}
	r := &run{req: req, plan: req.Plan.Clone(), score: req.Score, started: h.now()}
	h.logger.Info("full review started",
		zap.String("task_id", req.TaskID),
		zap.Int("score", req.Score.TotalScore),
		zap.Bool("escalated", req.Escalated))

	h.render(r)
	invalid := 0
	for {
		line, err := h.con.Prompt(ctx, "Your choice (A/M/V/Q/C): ")
		if err != nil {
			h.con.Warn("\n\n⚠️ Interrupt detected. Treating as cancellation request...")
			return h.cancel(ctx, r), nil
		}
		choice := ""
		if line == "" {
			h.con.Warn("\n⚠️ Please enter a choice (A/M/V/Q/C)\n")
		} else {
			choice = strings.ToLower(line[:1])
		}

		// A blank line counts as an invalid attempt.
		switch choice {
		case "a":
			return h.approve(ctx, r), nil
		case "c":
			ok, err := h.confirmCancel(ctx)
			if err != nil || ok {
				return h.cancel(ctx, r), nil
			}
			h.con.Println("\nCancellation aborted. Returning to checkpoint...")
			h.con.Println()
		case "m":
			if err := h.modify(ctx, r); err != nil {
				return nil, err
			}
			h.render(r)
		case "v":
			h.view(ctx, r)
		case "q":
			h.question(ctx, r)
			h.render(r)
		default:
			invalid++
			h.con.Fail("\n❌ Invalid choice: '%s'", line)
			h.con.Println("Please enter A (Approve), M (Modify), V (View), Q (Question), or C (Cancel)")
			h.con.Println()
			if invalid >= warnInvalidAfter {
				h.con.Warn("⚠️ %d invalid attempts. Please review options carefully.\n", invalid)
			}
		}
	}
}

func (h *FullHandler) render(r *run) {
	title := ""
	if r.req.TaskFile != nil {
		title = r.req.TaskFile.Meta.Title
	}
	checkpoint{
		out:       h.con.Out(),
		st:        h.st,
		width:     h.con.Width(),
		taskID:    r.req.TaskID,
		title:     title,
		escalated: r.req.Escalated,
	}.render(r.score, r.plan)
}

func (h *FullHandler) approve(ctx context.Context, r *run) *FullResult {
	h.con.Success("\n✅ Plan approved!")
	h.con.Println("Proceeding to Phase 3 (Implementation)...")
	h.con.Println()

	now := h.now()
	mode := "full_required"
	if r.req.Escalated {
		mode = "escalated"
	}
	approval := &task.PlanApproval{
		Approved:              true,
		ApprovedBy:            "user",
		ApprovedAt:            timestamp(now),
		ReviewMode:            mode,
		ReviewDurationSeconds: float64(int(now.Sub(r.started).Seconds())),
		ComplexityScore:       r.score.TotalScore,
	}
	if f := r.req.TaskFile; f != nil && h.tasks != nil {
		f.Meta.ImplementationPlan = approval
		if err := h.tasks.Save(f); err != nil {
			h.logger.Warn("could not record plan approval", zap.String("path", f.Path), zap.Error(err))
		}
	}

	res := &FullResult{
		Action:    ActionApprove,
		Timestamp: approval.ApprovedAt,
		Approved:  true,
		MetadataUpdates: map[string]any{
			"implementation_plan": map[string]any{
				"approved":                approval.Approved,
				"approved_by":             approval.ApprovedBy,
				"approved_at":             approval.ApprovedAt,
				"review_mode":             approval.ReviewMode,
				"review_duration_seconds": int(approval.ReviewDurationSeconds),
				"complexity_score":        approval.ComplexityScore,
			},
		},
		ProceedToImplementation: true,
		Plan:                    r.plan,
		Score:                   r.score,
	}
	h.record(ctx, r, res)
	return res
}

func (h *FullHandler) confirmCancel(ctx context.Context) (bool, error) {
	h.con.Warn("\n⚠️ Are you sure you want to cancel this task?")
	h.con.Println("All work completed so far will be saved.")
	h.con.Println()
	return h.con.Confirm(ctx, "Confirm cancellation? [y/N]: ")
}

func (h *FullHandler) cancel(ctx context.Context, r *run) *FullResult {
	h.con.Fail("\n❌ Task cancelled. Moving to backlog...\n")
	ts := timestamp(h.now())

	if f := r.req.TaskFile; f != nil && h.tasks != nil {
		from := f.Meta.Status
		if err := h.tasks.Cancel(f, CancellationReason); err != nil {
			// The cancellation stands even when the file stays put.
			h.logger.Warn("could not move task to backlog", zap.String("path", f.Path), zap.Error(err))
			h.con.Warn("\n⚠️  Warning: Could not move task file to backlog: %v", err)
			h.con.Printf("    Task status updated but file remains in: %s/\n", from)
			h.con.Println("    You can manually move the file later if needed.")
		} else {
			h.con.Success("\n✅ Task moved to backlog: %s", f.Path)
		}
	}

	res := &FullResult{
		Action:    ActionCancel,
		Timestamp: ts,
		MetadataUpdates: map[string]any{
			"status":              task.StateBacklog.String(),
			"cancelled":           true,
			"cancelled_at":        ts,
			"cancellation_reason": CancellationReason,
		},
		Plan:  r.plan,
		Score: r.score,
	}
	h.record(ctx, r, res)
	return res
}

func (h *FullHandler) record(ctx context.Context, r *run, res *FullResult) {
	err := h.metrics.Record(ctx, metrics.Event{
		TaskID:          r.req.TaskID,
		Kind:            metrics.KindReview,
		Score:           r.score.TotalScore,
		Mode:            r.score.Mode.String(),
		Action:          res.Action.String(),
		DurationSeconds: h.now().Sub(r.started).Seconds(),
	})
	if err != nil {
		h.logger.Warn("could not record review metrics", zap.Error(err))
	}
	h.logger.Info("full review finished", zap.String("task_id", r.req.TaskID), zap.Stringer("action", res.Action))
}

func (h *FullHandler) view(ctx context.Context, r *run) {
	h.con.Println("\n📖 Opening implementation plan in pager...")
	if h.pager != nil {
		err := h.pager.Show(ctx, r.plan)
		if err == nil {
			return
		}
		h.logger.Debug("pager unavailable", zap.Error(err))
	}
	h.con.Warn("⚠️ Could not open pager, displaying inline instead:\n")
	h.con.Println(tui.FormatPlan(r.plan))
}

// modify runs a modification session. Applied changes are rescored and
// stored as a new plan version; the checkpoint then shows the new plan.
func (h *FullHandler) modify(ctx context.Context, r *run) error {
	h.con.Println("\n🔧 Entering modification mode...")
	out, err := h.modifier.Edit(ctx, r.req.TaskID, r.plan)
	if err != nil {
		h.con.Fail("\n❌ Error during modification: %v", err)
		h.con.Println("Returning to checkpoint...")
		return nil
	}
	if !out.Saved {
		h.con.Println("Returning to checkpoint...")
		return nil
	}

	modified := out.Plan
	score, err := h.calc.Calculate(ctx, complexity.EvaluationContext{
		TaskID:          r.req.TaskID,
		TechnologyStack: r.req.Stack,
		Plan:            modified,
		Metadata:        r.req.Metadata,
		Flags:           r.req.Flags,
	})
	if err != nil && complexity.IsInterrupt(err) {
		return fmt.Errorf("rescoring modified plan: %w", input.ErrInterrupted)
	}
	modified.Complexity = &score

	if h.plans != nil {
		v, err := h.plans.Versions(r.req.TaskID, h.logger).
			Record(r.plan, modified, fmt.Sprintf("Modified in review (%d changes)", len(out.Changes)), "user")
		if err != nil {
			h.con.Fail("\n❌ Error applying modifications: %v", err)
			h.con.Println("Returning to checkpoint...")
			return nil
		}
		h.con.Success("\n✅ Changes applied successfully!")
		h.con.Printf("Created plan version %d\n", v.Number)
	}
	r.plan = modified
	r.score = score
	h.con.Printf("New complexity score: %d/10\n", score.TotalScore)
	h.con.Println("\nReturning to checkpoint with modified plan...")
	return nil
}

func (h *FullHandler) question(ctx context.Context, r *run) {
	m := qa.NewManager(qa.Deps{Console: h.con, Logger: h.logger, Now: h.now}, r.req.TaskID, r.plan)
	sess, err := m.Run(ctx)
	if err != nil {
		h.logger.Warn("q&a session failed", zap.Error(err))
	}
	f := r.req.TaskFile
	if sess == nil || sess.EndedAt == nil || f == nil || f.Path == "" {
		return
	}
	if err := m.SaveToTask(f.Path); err != nil {
		h.con.Warn("⚠️ Error saving Q&A session: %v", err)
		return
	}
	h.con.Success("✅ Q&A session saved to task metadata")
	// Pick up the saved sessions so later writes keep them.
	if fresh, err := task.Load(f.Path); err == nil {
		*f = *fresh
	}
}
