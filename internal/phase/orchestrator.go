package phase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/review"
	"github.com/sprite-ai/reviewgate/internal/router"
	"github.com/sprite-ai/reviewgate/internal/task"
)

var (
	designStates    = []task.State{task.StateBacklog, task.StateInProgress, task.StateBlocked}
	implementStates = []task.State{task.StateDesignApproved}
)

// Reviewer runs the human checkpoint.
type Reviewer interface {
	Review(ctx context.Context, req review.CheckpointRequest) (review.Outcome, error)
}

// Auditor compares the implementation with the saved plan.
type Auditor interface {
	Audit(ctx context.Context, req audit.Request) (*audit.Report, error)
}

// Deps are the orchestrator's collaborators. Gates, Git, Auditor and Metrics
// are optional.
type Deps struct {
	Tasks        *task.Store
	Plans        *plan.Store
	Calculator   *complexity.Calculator
	Router       *router.Router
	Reviewer     Reviewer
	Auditor      Auditor
	Gates        map[string]Gate
	Git          GitState
	Console      *input.Console
	Metrics      metrics.Recorder
	Logger       *zap.Logger
	Now          func() time.Time
	AuditTimeout time.Duration
}

// Orchestrator runs workflows.
type Orchestrator struct {
	tasks        *task.Store
	plans        *plan.Store
	calc         *complexity.Calculator
	router       *router.Router
	reviewer     Reviewer
	auditor      Auditor
	gates        map[string]Gate
	git          GitState
	con          *input.Console
	out          io.Writer
	metrics      metrics.Recorder
	logger       *zap.Logger
	now          func() time.Time
	auditTimeout time.Duration
}

// New creates an orchestrator.
func New(d Deps) *Orchestrator {
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
	if d.Router == nil {
		d.Router = router.New(d.Logger)
	}
	if d.AuditTimeout <= 0 {
		d.AuditTimeout = defaultAuditTimeout
	}
	var out io.Writer = io.Discard
	if d.Console != nil {
		out = d.Console.Out()
	}
	return &Orchestrator{
		tasks:        d.Tasks,
		plans:        d.Plans,
		calc:         d.Calculator,
		router:       d.Router,
		reviewer:     d.Reviewer,
		auditor:      d.Auditor,
		gates:        d.Gates,
		git:          d.Git,
		con:          d.Console,
		out:          out,
		metrics:      d.Metrics,
		logger:       d.Logger,
		now:          d.Now,
		auditTimeout: d.AuditTimeout,
	}
}

type run struct {
	req     ExecuteRequest
	file    *task.File
	plan    *model.ImplementationPlan
	score   model.ComplexityScore
	res     *ExecuteResult
	started time.Time
}

func (r *run) enter(phase string) {
	r.res.PhasesExecuted = append(r.res.PhasesExecuted, phase)
}

// Execute runs the workflow the request selects. Validation errors
// (ErrMutuallyExclusive, *StateError, ErrDesignMetadata, ErrPlanMissing) are
// returned before any phase runs. A gate failure or a cancelled review is
// not an error: the result reports it with Success false.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	mode, err := req.Mode()
	if err != nil {
		return nil, err
	}
	f := req.Task
	if f == nil {
		if f, err = o.tasks.Find(req.TaskID); err != nil {
			return nil, err
		}
	}
	if req.TaskID == "" {
		req.TaskID = f.Meta.ID
	}
	if req.Stack == "" {
		req.Stack = f.Meta.Stack
	}
	if req.Stack == "" {
		req.Stack = "default"
	}

	r := &run{
		req:     req,
		file:    f,
		started: o.now(),
		res:     &ExecuteResult{TaskID: req.TaskID, WorkflowMode: mode, PlanPath: o.plans.Path(req.TaskID)},
	}
	o.logger.Info("workflow started",
		zap.String("task_id", req.TaskID),
		zap.Stringer("mode", mode),
		zap.Stringer("state", f.Meta.Status))

	switch mode {
	case ModeDesignOnly:
		err = o.designOnly(ctx, r)
	case ModeImplementOnly:
		err = o.implementOnly(ctx, r)
	default:
		err = o.standard(ctx, r)
	}
	if err != nil {
		return nil, err
	}

	r.res.FinalState = r.file.Meta.Status
	r.res.Duration = o.now().Sub(r.started)
	o.commit(ctx, r)
	o.logger.Info("workflow finished",
		zap.String("task_id", req.TaskID),
		zap.Stringer("mode", mode),
		zap.Stringer("final_state", r.res.FinalState),
		zap.Bool("success", r.res.Success),
		zap.Duration("duration", r.res.Duration))
	return r.res, nil
}

func (o *Orchestrator) designOnly(ctx context.Context, r *run) error {
	if cur := r.file.Meta.Status; !slices.Contains(designStates, cur) {
		return &StateError{TaskID: r.req.TaskID, Mode: ModeDesignOnly, Current: cur, Valid: designStates}
	}
	fmt.Fprintf(o.out, "\n🎨 Starting Design-Only Workflow for %s\n", r.req.TaskID)
	fmt.Fprintf(o.out, "Current state: %s\n", r.file.Meta.Status)
	fmt.Fprintf(o.out, "Technology stack: %s\n\n", r.req.Stack)

	ok, err := o.design(ctx, r, true)
	if err != nil || !ok {
		return err
	}

	r.file.Meta.Design = &task.Design{
		Status:          "approved",
		ApprovedAt:      o.tasks.Timestamp(),
		ApprovedBy:      "user",
		ComplexityScore: r.score.TotalScore,
		ReviewMode:      r.score.Mode.String(),
	}
	if err := o.tasks.Move(r.file, task.StateDesignApproved); err != nil {
		return err
	}
	fmt.Fprintf(o.out, "\n✅ Design approved. %s is now %s.\n", r.req.TaskID, task.StateDesignApproved)
	fmt.Fprintf(o.out, "Implementation plan saved to %s\n", r.res.PlanPath)
	r.res.Success = true
	return nil
}

func (o *Orchestrator) implementOnly(ctx context.Context, r *run) error {
	if cur := r.file.Meta.Status; cur != task.StateDesignApproved {
		return &StateError{TaskID: r.req.TaskID, Mode: ModeImplementOnly, Current: cur, Valid: implementStates}
	}
	if !r.file.Meta.Design.Approved() {
		return fmt.Errorf("%w for %s: re-run the design phase with --design-only or fix the task metadata", ErrDesignMetadata, r.req.TaskID)
	}
	rec, err := o.plans.Load(r.req.TaskID)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%w: %s (re-run the design phase with --design-only)", ErrPlanMissing, o.plans.Path(r.req.TaskID))
	}
	if err != nil {
		return err
	}
	r.plan = rec.Plan
	if rec.Plan.Complexity != nil {
		score := *rec.Plan.Complexity
		r.score = score
		r.res.Score = &score
	}

	fmt.Fprintf(o.out, "\n🚀 Starting Implementation-Only Workflow for %s\n", r.req.TaskID)
	fmt.Fprintf(o.out, "Current state: %s\n", r.file.Meta.Status)
	fmt.Fprintf(o.out, "Using approved design from: %s\n", r.file.Meta.Design.ApprovedAt)
	o.printImplementationContext(r)

	if err := o.tasks.Move(r.file, task.StateInProgress); err != nil {
		return err
	}
	return o.implement(ctx, r)
}

func (o *Orchestrator) standard(ctx context.Context, r *run) error {
	fmt.Fprintf(o.out, "\n🔄 Starting Standard Workflow for %s\n", r.req.TaskID)
	fmt.Fprintf(o.out, "Technology stack: %s\n", r.req.Stack)
	fmt.Fprint(o.out, "Executing all phases in sequence...\n\n")

	ok, err := o.design(ctx, r, false)
	if err != nil || !ok {
		return err
	}
	if r.file.Meta.Status != task.StateInProgress {
		if err := o.tasks.Move(r.file, task.StateInProgress); err != nil {
			return err
		}
	}
	return o.implement(ctx, r)
}

// design runs phases 1 through 2.8. It reports false when the workflow
// stops early (gate failure or cancelled review) with the result updated.
func (o *Orchestrator) design(ctx context.Context, r *run, mandatory bool) (bool, error) {
	r.enter(PhaseLoadContext)
	fmt.Fprintln(o.out, "✅ Phase 1: Task context loaded")

	r.enter(PhasePlanning)
	rec, err := o.plans.Load(r.req.TaskID)
	if errors.Is(err, plan.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrPlanMissing, o.plans.Path(r.req.TaskID))
	}
	if err != nil {
		return false, err
	}
	r.plan = rec.Plan
	fmt.Fprintf(o.out, "✅ Phase 2: Implementation plan loaded (%d files)\n", r.plan.FileCount())

	r.enter(PhaseArchReview)
	archReview := rec.ArchitecturalReview
	if g, ok := o.gates[GateArchitecturalReview]; ok {
		res, err := g.Run(ctx, r.req.TaskID)
		if err != nil {
			return false, fmt.Errorf("architectural review: %w", err)
		}
		archReview = map[string]any{"passed": res.Passed, "details": res.Details, "reviewed_at": o.tasks.Timestamp()}
		if !res.Passed {
			return false, o.block(r, PhaseArchReview, res.Details)
		}
	}
	fmt.Fprintln(o.out, "✅ Phase 2.5B: Architectural review complete")

	r.enter(PhaseComplexity)
	fmt.Fprintln(o.out, "⏳ Phase 2.7: Evaluating complexity and persisting plan...")
	if err := o.evaluate(ctx, r, archReview); err != nil {
		return false, err
	}

	checkpoint := PhaseCheckpoint
	if mandatory {
		checkpoint = PhaseDesignApproval
	}
	r.enter(checkpoint)
	if !mandatory && r.res.Decision != nil && r.res.Decision.Action == model.ActionProceed {
		fmt.Fprintln(o.out, "✅ Phase 2.8: Auto-proceeding (low complexity)")
		return true, nil
	}
	if o.reviewer == nil {
		return false, errors.New("review checkpoint not configured")
	}
	fmt.Fprintln(o.out, "⏳ Phase 2.8: Awaiting review...")
	outcome, err := o.reviewer.Review(ctx, review.CheckpointRequest{
		FullRequest: review.FullRequest{
			TaskID:   r.req.TaskID,
			TaskFile: r.file,
			Score:    r.score,
			Plan:     r.plan,
			Metadata: metadataOf(r.file),
			Stack:    r.req.Stack,
			Flags:    complexity.UserFlags{ForceReview: r.req.ForceReview},
		},
		Mandatory: mandatory,
	})
	if err != nil {
		return false, err
	}
	if outcome.Plan != nil {
		r.plan = outcome.Plan
	}
	if outcome.Score.TotalScore > 0 {
		r.score = outcome.Score
		score := outcome.Score
		r.res.Score = &score
	}
	if outcome.Cancelled || !outcome.Approved {
		r.res.FailedPhase = checkpoint
		fmt.Fprintf(o.out, "Task %s returned to %s.\n", r.req.TaskID, r.file.Meta.Status)
		return false, nil
	}
	return true, nil
}

// evaluate scores and routes the plan, then saves it with its score. A
// scoring failure leaves the fail-safe score in place; an interrupt aborts.
func (o *Orchestrator) evaluate(ctx context.Context, r *run, archReview map[string]any) error {
	ec := complexity.EvaluationContext{
		TaskID:          r.req.TaskID,
		TechnologyStack: r.req.Stack,
		Plan:            r.plan,
		Metadata:        metadataOf(r.file),
		Flags:           complexity.UserFlags{ForceReview: r.req.ForceReview},
	}
	score, err := o.calc.Calculate(ctx, ec)
	if err != nil {
		if complexity.IsInterrupt(err) {
			return fmt.Errorf("complexity evaluation: %w", input.ErrInterrupted)
		}
		o.logger.Warn("complexity evaluation failed, using fail-safe score",
			zap.String("task_id", r.req.TaskID), zap.Error(err))
	}
	decision, err := o.router.Route(score, ec)
	if err != nil {
		o.logger.Warn("routing failed, using fail-safe decision",
			zap.String("task_id", r.req.TaskID), zap.Error(err))
	}
	r.score = score
	r.res.Score = &score
	r.res.Decision = &decision

	r.plan.Complexity = &score
	if err := o.plans.Save(r.req.TaskID, r.plan, archReview); err != nil {
		return err
	}
	r.file.Meta.ComplexitySummary = router.CompactSummary(score)
	if err := o.tasks.Save(r.file); err != nil {
		return fmt.Errorf("saving complexity summary: %w", err)
	}
	if err := o.metrics.Record(ctx, metrics.Event{
		TaskID: r.req.TaskID,
		Kind:   metrics.KindDecision,
		Score:  score.TotalScore,
		Mode:   score.Mode.String(),
		Action: decision.Action.String(),
	}); err != nil {
		o.logger.Warn("could not record decision metrics", zap.Error(err))
	}
	fmt.Fprintf(o.out, "✅ Phase 2.7: Complexity %d/10 (%s)\n", score.TotalScore, score.Mode)
	return nil
}

var implementationGates = []struct{ phase, key string }{
	{PhaseImplementation, GateImplementation},
	{PhaseTesting, GateTesting},
	{PhaseFixLoop, GateFixLoop},
	{PhaseCodeReview, GateCodeReview},
}

// implement runs phases 3 through 5.5 and moves the task to in_review or
// blocked.
func (o *Orchestrator) implement(ctx context.Context, r *run) error {
	implStarted := o.now()
	for _, step := range implementationGates {
		r.enter(step.phase)
		g, ok := o.gates[step.key]
		if !ok {
			fmt.Fprintf(o.out, "✅ %s (no gate configured)\n", step.phase)
			continue
		}
		fmt.Fprintf(o.out, "⏳ %s...\n", step.phase)
		res, err := g.Run(ctx, r.req.TaskID)
		if err != nil {
			return fmt.Errorf("%s: %w", step.phase, err)
		}
		if !res.Passed {
			return o.block(r, step.phase, res.Details)
		}
		fmt.Fprintf(o.out, "✅ %s passed\n", step.phase)
	}

	r.enter(PhasePlanAudit)
	fmt.Fprintln(o.out, "⏳ Phase 5.5: Auditing implementation against plan...")
	proceed, err := o.planAudit(ctx, r, implStarted)
	if err != nil {
		return err
	}
	if !proceed {
		r.res.FailedPhase = PhasePlanAudit
		return o.tasks.Move(r.file, task.StateBlocked)
	}
	if err := o.tasks.Move(r.file, task.StateInReview); err != nil {
		return err
	}
	r.res.Success = true
	return nil
}

func (o *Orchestrator) block(r *run, phase, details string) error {
	fmt.Fprintf(o.out, "❌ %s failed\n", phase)
	if details != "" {
		fmt.Fprintln(o.out, details)
	}
	o.logger.Warn("phase failed", zap.String("task_id", r.req.TaskID), zap.String("phase", phase))
	r.res.FailedPhase = phase
	return o.tasks.Move(r.file, task.StateBlocked)
}

func (o *Orchestrator) commit(ctx context.Context, r *run) {
	if o.git == nil {
		return
	}
	msg := fmt.Sprintf("Save state for %s (%s, %s)", r.req.TaskID, r.res.WorkflowMode, r.res.FinalState)
	if err := o.git.Commit(ctx, r.req.TaskID, msg); err != nil {
		o.logger.Debug("state not committed", zap.String("task_id", r.req.TaskID), zap.Error(err))
	}
}

func (o *Orchestrator) printImplementationContext(r *run) {
	d := r.file.Meta.Design
	rule := "==================================================================="
	fmt.Fprintf(o.out, "\n%s\n🚀 IMPLEMENTATION PHASE (--implement-only mode)\n%s\n\n", rule, rule)
	fmt.Fprintf(o.out, "TASK: %s - %s\n\n", r.req.TaskID, r.file.Meta.Title)
	fmt.Fprintln(o.out, "APPROVED DESIGN:")
	fmt.Fprintf(o.out, "  Design approved: %s\n", d.ApprovedAt)
	fmt.Fprintf(o.out, "  Approved by: %s\n", d.ApprovedBy)
	fmt.Fprintf(o.out, "  Complexity score: %d/10\n\n", d.ComplexityScore)
	fmt.Fprintln(o.out, "IMPLEMENTATION PLAN:")
	fmt.Fprintf(o.out, "  Files to create: %d\n", len(r.plan.FilesToCreate))
	fmt.Fprintf(o.out, "  External dependencies: %d\n", len(r.plan.ExternalDependencies))
	fmt.Fprintf(o.out, "  Estimated duration: %s\n", orNA(r.plan.EstimatedDuration))
	fmt.Fprintf(o.out, "  Test strategy: %s\n\n", orNA(r.plan.TestSummary))
	fmt.Fprintf(o.out, "Beginning implementation phases (3 → 4 → 4.5 → 5)...\n%s\n\n", rule)
}

func metadataOf(f *task.File) complexity.TaskMetadata {
	return complexity.TaskMetadata{
		Priority: f.Meta.Priority,
		Tags:     f.Meta.Tags,
		IsHotfix: f.Meta.IsHotfix,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
