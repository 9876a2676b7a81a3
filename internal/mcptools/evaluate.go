package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/router"
	"github.com/sprite-ai/reviewgate/internal/task"
)

// EvaluateTool handles the evaluate_complexity MCP tool.
type EvaluateTool struct {
	plans  *plan.Store
	tasks  *task.Store
	calc   *complexity.Calculator
	router *router.Router
	logger *zap.Logger
}

// NewEvaluateTool creates an EvaluateTool.
func NewEvaluateTool(d Deps) *EvaluateTool {
	return &EvaluateTool{plans: d.Plans, tasks: d.Tasks, calc: d.Calculator, router: d.Router, logger: d.Logger}
}

// Definition returns the MCP tool definition for evaluate_complexity.
func (t *EvaluateTool) Definition() mcp.Tool {
	return mcp.NewTool("evaluate_complexity",
		mcp.WithDescription(
			"Score an implementation plan's complexity (1-10) and return the review routing decision. "+
				"Uses the task's saved plan unless plan_json is given.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task identifier, e.g. TASK-042"),
		),
		mcp.WithString("plan_json",
			mcp.Description("Implementation plan as JSON (files_to_create, external_dependencies, estimated_loc, raw_plan, ...)"),
		),
		mcp.WithString("technology_stack",
			mcp.Description("Technology stack (default: default)"),
		),
		mcp.WithString("priority",
			mcp.Description("Task priority; overrides the task file"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma separated task tags; overrides the task file"),
		),
		mcp.WithBoolean("hotfix",
			mcp.Description("Mark the task as a hotfix (forces full review)"),
		),
		mcp.WithBoolean("force_review",
			mcp.Description("Request a full review regardless of score"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Store the score on the task's saved plan (default: false)"),
		),
	)
}

// Handle processes the evaluate_complexity tool call.
func (t *EvaluateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	p, review, err := t.loadPlan(taskID, req.GetString("plan_json", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ec := complexity.EvaluationContext{
		TaskID:          taskID,
		TechnologyStack: req.GetString("technology_stack", "default"),
		Plan:            p,
		Metadata:        t.metadata(taskID),
		Flags:           complexity.UserFlags{ForceReview: boolArg(req, "force_review", false)},
	}
	if v := req.GetString("priority", ""); v != "" {
		ec.Metadata.Priority = v
	}
	if tags := listArg(req, "tags"); len(tags) > 0 {
		ec.Metadata.Tags = tags
	}
	if boolArg(req, "hotfix", false) {
		ec.Metadata.IsHotfix = true
	}

	score, err := t.calc.Calculate(ctx, ec)
	if complexity.IsInterrupt(err) {
		return mcp.NewToolResultError("evaluation interrupted"), nil
	}
	decision, rerr := t.router.Route(score, ec)

	if boolArg(req, "save", false) && t.plans != nil {
		p.Complexity = &score
		if err := t.plans.Save(taskID, p, review); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save plan: %v", err)), nil
		}
	}

	t.logger.Info("evaluated plan via mcp",
		zap.String("task_id", taskID),
		zap.Int("score", score.TotalScore),
		zap.Stringer("mode", score.Mode))

	var sb strings.Builder
	sb.WriteString(renderScore(score))
	sb.WriteString("\n")
	sb.WriteString(renderDecision(decision))
	for _, e := range []error{err, rerr} {
		if e != nil {
			sb.WriteString(fmt.Sprintf("\n⚠️ %v\n", e))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *EvaluateTool) loadPlan(taskID, raw string) (*model.ImplementationPlan, map[string]any, error) {
	if raw != "" {
		var p model.ImplementationPlan
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, nil, fmt.Errorf("invalid plan_json: %v", err)
		}
		if p.TaskID == "" {
			p.TaskID = taskID
		}
		return &p, nil, nil
	}
	if t.plans == nil {
		return nil, nil, errors.New("no plan store configured; pass plan_json")
	}
	rec, err := t.plans.Load(taskID)
	if errors.Is(err, plan.ErrNotFound) {
		return nil, nil, fmt.Errorf("no saved plan for %s; pass plan_json", taskID)
	}
	if err != nil {
		return nil, nil, err
	}
	return rec.Plan, rec.ArchitecturalReview, nil
}

func (t *EvaluateTool) metadata(taskID string) complexity.TaskMetadata {
	if t.tasks == nil {
		return complexity.TaskMetadata{}
	}
	f, err := t.tasks.Find(taskID)
	if err != nil {
		t.logger.Debug("task metadata unavailable", zap.String("task_id", taskID), zap.Error(err))
		return complexity.TaskMetadata{}
	}
	return f.Meta.EvaluationMetadata()
}

func renderScore(score model.ComplexityScore) string {
	var sb strings.Builder
	sb.WriteString("## Complexity Evaluation\n\n")
	sb.WriteString(fmt.Sprintf("- **Score**: %d/10\n", score.TotalScore))
	sb.WriteString(fmt.Sprintf("- **Review mode**: %s\n", score.Mode))
	if len(score.Triggers) > 0 {
		names := make([]string, 0, len(score.Triggers))
		for _, tr := range score.Triggers {
			names = append(names, tr.Title())
		}
		sb.WriteString(fmt.Sprintf("- **Forced review triggers**: %s\n", strings.Join(names, ", ")))
	}
	if len(score.Factors) > 0 {
		sb.WriteString("\n| Factor | Score | Justification |\n|---|---|---|\n")
		for _, f := range score.Factors {
			sb.WriteString(fmt.Sprintf("| %s | %g/%g | %s |\n", f.Name, f.Score, f.MaxScore, f.Justification))
		}
	}
	return sb.String()
}

func renderDecision(d model.ReviewDecision) string {
	var sb strings.Builder
	sb.WriteString("## Routing Decision\n\n")
	sb.WriteString(fmt.Sprintf("- **Action**: %s\n", d.Action))
	sb.WriteString(fmt.Sprintf("- **Auto-approved**: %t\n", d.AutoApproved))
	if d.Recommendation != "" {
		sb.WriteString(fmt.Sprintf("- **Recommendation**: %s\n", d.Recommendation))
	}
	sb.WriteString("\n" + router.CompactSummary(d.Score) + "\n")
	return sb.String()
}
