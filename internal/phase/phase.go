// Package phase drives a task through the design and implementation phases,
// stopping at the review checkpoint and the post-implementation plan audit.
package phase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sprite-ai/reviewgate/internal/audit"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/task"
)

// WorkflowMode selects which phases run.
type WorkflowMode int

const (
	ModeStandard WorkflowMode = iota
	ModeDesignOnly
	ModeImplementOnly
)

func (m WorkflowMode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeDesignOnly:
		return "design_only"
	case ModeImplementOnly:
		return "implement_only"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m WorkflowMode) MarshalText() ([]byte, error) {
	if m < ModeStandard || m > ModeImplementOnly {
		return nil, fmt.Errorf("invalid workflow mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// Phase names as they appear in results and output.
const (
	PhaseLoadContext     = "Phase 1: Load Task Context"
	PhasePlanning        = "Phase 2: Implementation Planning"
	PhaseArchReview      = "Phase 2.5B: Architectural Review"
	PhaseComplexity      = "Phase 2.7: Complexity Evaluation"
	PhaseDesignApproval  = "Phase 2.8: Design Approval Checkpoint"
	PhaseCheckpoint      = "Phase 2.8: Human Checkpoint (if triggered)"
	PhaseImplementation  = "Phase 3: Implementation"
	PhaseTesting         = "Phase 4: Testing"
	PhaseFixLoop         = "Phase 4.5: Fix Loop"
	PhaseCodeReview      = "Phase 5: Code Review"
	PhasePlanAudit       = "Phase 5.5: Plan Audit"
	auditFollowupSuffix  = "-AUDIT-FOLLOWUP"
	defaultAuditTimeout  = 30 * time.Second
	defaultAuditDecision = "A"
)

var (
	// ErrMutuallyExclusive is returned when both design-only and
	// implement-only are requested.
	ErrMutuallyExclusive = errors.New("cannot use both design-only and implement-only; choose one or neither for the standard workflow")
	// ErrDesignMetadata is returned when a design_approved task has no
	// approved design record.
	ErrDesignMetadata = errors.New("design metadata missing or invalid")
	// ErrPlanMissing is returned when no implementation plan is saved.
	ErrPlanMissing = errors.New("implementation plan not found")
)

// StateError reports a task in a state the workflow cannot start from.
type StateError struct {
	TaskID  string
	Mode    WorkflowMode
	Current task.State
	Valid   []task.State
}

func (e *StateError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		valid[i] = s.String()
	}
	return fmt.Sprintf("cannot run %s workflow for %s from %q state (valid: %s)",
		e.Mode, e.TaskID, e.Current, strings.Join(valid, ", "))
}

// ExecuteRequest selects the task and workflow. Task may be preloaded;
// otherwise it is looked up by TaskID.
type ExecuteRequest struct {
	TaskID        string
	Task          *task.File
	DesignOnly    bool
	ImplementOnly bool
	Stack         string
	ForceReview   bool
}

// Mode derives the workflow mode from the flags.
func (r ExecuteRequest) Mode() (WorkflowMode, error) {
	switch {
	case r.DesignOnly && r.ImplementOnly:
		return ModeStandard, ErrMutuallyExclusive
	case r.DesignOnly:
		return ModeDesignOnly, nil
	case r.ImplementOnly:
		return ModeImplementOnly, nil
	default:
		return ModeStandard, nil
	}
}

// ExecuteResult summarizes a workflow run.
type ExecuteResult struct {
	TaskID         string                 `json:"task_id"`
	WorkflowMode   WorkflowMode           `json:"workflow_mode"`
	PhasesExecuted []string               `json:"phases_executed"`
	FinalState     task.State             `json:"final_state"`
	Duration       time.Duration          `json:"duration"`
	Success        bool                   `json:"success"`
	Score          *model.ComplexityScore `json:"complexity_score,omitempty"`
	Decision       *model.ReviewDecision  `json:"review_decision,omitempty"`
	Audit          *audit.Report          `json:"audit,omitempty"`
	AuditDecision  audit.Decision         `json:"audit_decision,omitempty"`
	FailedPhase    string                 `json:"failed_phase,omitempty"`
	PlanPath       string                 `json:"plan_path,omitempty"`
	Followup       string                 `json:"followup_task,omitempty"`
}
