package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/router"
	"github.com/sprite-ai/reviewgate/internal/task"
)

// RouteTool handles the route_review MCP tool. It re-routes the score
// stored on a task's plan without recalculating it.
type RouteTool struct {
	plans  *plan.Store
	tasks  *task.Store
	router *router.Router
	logger *zap.Logger
}

// NewRouteTool creates a RouteTool.
func NewRouteTool(d Deps) *RouteTool {
	return &RouteTool{plans: d.Plans, tasks: d.Tasks, router: d.Router, logger: d.Logger}
}

// Definition returns the MCP tool definition for route_review.
func (t *RouteTool) Definition() mcp.Tool {
	return mcp.NewTool("route_review",
		mcp.WithDescription(
			"Return the review routing decision for the complexity score already stored on a task's plan. "+
				"Run evaluate_complexity with save=true first.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task identifier"),
		),
	)
}

// Handle processes the route_review tool call.
func (t *RouteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	if t.plans == nil {
		return mcp.NewToolResultError("no plan store configured"), nil
	}
	rec, err := t.plans.Load(taskID)
	if errors.Is(err, plan.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no saved plan for %s", taskID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rec.Plan.Complexity == nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan for %s has no complexity score; run evaluate_complexity with save=true", taskID)), nil
	}

	ec := complexity.EvaluationContext{TaskID: taskID, TechnologyStack: "default", Plan: rec.Plan}
	if t.tasks != nil {
		if f, err := t.tasks.Find(taskID); err == nil {
			ec.Metadata = f.Meta.EvaluationMetadata()
			if f.Meta.Stack != "" {
				ec.TechnologyStack = f.Meta.Stack
			}
		}
	}

	decision, err := t.router.Route(*rec.Plan.Complexity, ec)
	text := renderDecision(decision) + "\n" + decision.Summary
	if err != nil {
		text += fmt.Sprintf("\n\n⚠️ %v", err)
	}
	return mcp.NewToolResultText(text), nil
}
