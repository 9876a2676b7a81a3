package phase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/task"
)

const auditPrompt = "Choice [A]pprove/[R]evise/[E]scalate/[C]ancel (30s timeout = auto-approve): "

// planAudit runs the audit and asks for a decision. Audit failures never
// block: the task proceeds as if approved.
func (o *Orchestrator) planAudit(ctx context.Context, r *run, started time.Time) (bool, error) {
	if o.auditor == nil {
		fmt.Fprintln(o.out, "⏭️  Plan audit not configured - skipping")
		return true, nil
	}
	if !o.plans.Exists(r.req.TaskID) {
		fmt.Fprintln(o.out, "⚠️  No implementation plan found - skipping audit")
		return true, nil
	}

	report, err := o.auditor.Audit(ctx, audit.Request{TaskID: r.req.TaskID, Started: started})
	switch {
	case errors.Is(err, audit.ErrNoPlan):
		fmt.Fprintln(o.out, "⚠️  No implementation plan found - skipping audit")
		return true, nil
	case ctx.Err() != nil:
		return false, fmt.Errorf("plan audit: %w", input.ErrInterrupted)
	case err != nil:
		o.logger.Warn("plan audit failed", zap.String("task_id", r.req.TaskID), zap.Error(err))
		fmt.Fprintf(o.out, "⚠️  Audit error: %v\n", err)
		fmt.Fprintln(o.out, "Defaulting to approve (non-blocking)")
		return true, nil
	}
	r.res.Audit = report
	fmt.Fprintf(o.out, "\n%s\n", audit.Format(report))

	answer, err := o.promptWithTimeout(ctx, auditPrompt, defaultAuditDecision)
	if err != nil {
		return false, err
	}
	decision := audit.ParseDecision(answer)
	r.res.AuditDecision = decision
	o.handleDecision(r, report, decision, answer)

	if err := o.metrics.Record(ctx, metrics.Event{
		TaskID:          r.req.TaskID,
		Kind:            metrics.KindAudit,
		Score:           r.score.TotalScore,
		Action:          string(decision),
		Severity:        report.Severity.String(),
		DurationSeconds: report.DurationSeconds,
	}); err != nil {
		o.logger.Warn("could not record audit metrics", zap.Error(err))
	}
	return decision.Proceeds(), nil
}

// promptWithTimeout returns def when no answer arrives in time or input is
// exhausted. Cancelling ctx is an interrupt.
func (o *Orchestrator) promptWithTimeout(ctx context.Context, prompt, def string) (string, error) {
	if o.con == nil {
		return def, nil
	}
	tctx, cancel := context.WithTimeout(ctx, o.auditTimeout)
	defer cancel()

	answer, err := o.con.Prompt(tctx, prompt)
	switch {
	case err == nil:
		return strings.ToUpper(answer), nil
	case ctx.Err() != nil:
		return "", input.ErrInterrupted
	case errors.Is(err, input.ErrInterrupted):
		fmt.Fprintf(o.out, "\n⏱️  Timeout - defaulting to [%s]\n", def)
		return def, nil
	default:
		return def, nil
	}
}

func (o *Orchestrator) handleDecision(r *run, report *audit.Report, d audit.Decision, answer string) {
	switch d {
	case audit.DecisionApproved:
		fmt.Fprintln(o.out, "✅ Audit approved - proceeding to IN_REVIEW")
	case audit.DecisionRevisionRequested:
		fmt.Fprintln(o.out, "❌ Audit revision requested - transitioning to BLOCKED")
	case audit.DecisionEscalated:
		fmt.Fprintln(o.out, "⚠️  Audit escalated - creating follow-up task")
		if id, err := o.createFollowup(r, report); err != nil {
			fmt.Fprintf(o.out, "⚠️  Could not create follow-up task: %v\n", err)
		} else {
			r.res.Followup = id
			fmt.Fprintf(o.out, "📝 Follow-up task created: %s\n", id)
		}
	case audit.DecisionCancelled:
		fmt.Fprintln(o.out, "❌ Audit cancelled - transitioning to BLOCKED")
	default:
		fmt.Fprintf(o.out, "⚠️  Invalid input '%s' - defaulting to Approve\n", answer)
	}

	r.file.Meta.PlanAudit = &task.PlanAudit{
		Severity:           report.Severity.String(),
		DiscrepanciesCount: len(report.Discrepancies),
		Decision:           string(d),
		AuditedAt:          report.Timestamp,
	}
	if err := o.tasks.Save(r.file); err != nil {
		fmt.Fprintf(o.out, "⚠️  Could not update task metadata: %v\n", err)
	}
}

// createFollowup writes a backlog task listing the audit's discrepancies.
func (o *Orchestrator) createFollowup(r *run, report *audit.Report) (string, error) {
	id := r.req.TaskID + auditFollowupSuffix
	var body strings.Builder
	fmt.Fprintf(&body, "# Investigate plan audit findings for %s\n\n", r.req.TaskID)
	fmt.Fprintf(&body, "The implementation of %s diverged from its approved plan (severity %s).\n\n", r.req.TaskID, report.Severity)
	body.WriteString("## Discrepancies\n\n")
	for _, d := range report.Discrepancies {
		fmt.Fprintf(&body, "- [%s] %s\n", strings.ToUpper(d.Severity.String()), d.Message)
	}
	if len(report.Recommendations) > 0 {
		body.WriteString("\n## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&body, "- %s\n", rec)
		}
	}

	ts := o.tasks.Timestamp()
	f := &task.File{
		Path: filepath.Join(o.tasks.Dir(task.StateBacklog), id+".md"),
		Meta: task.Meta{
			ID:       id,
			Title:    "Plan audit follow-up for " + r.req.TaskID,
			Status:   task.StateBacklog,
			Priority: r.file.Meta.Priority,
			Tags:     []string{"audit-followup"},
			Created:  ts,
			Updated:  ts,
			Extra:    map[string]any{"parent_task": r.req.TaskID},
		},
		Body: body.String(),
	}
	if err := f.Save(); err != nil {
		return "", err
	}
	return id, nil
}
