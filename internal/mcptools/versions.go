package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/plan"
)

// VersionsTool handles the plan_versions MCP tool.
type VersionsTool struct {
	plans  *plan.Store
	logger *zap.Logger
}

// NewVersionsTool creates a VersionsTool.
func NewVersionsTool(d Deps) *VersionsTool {
	return &VersionsTool{plans: d.Plans, logger: d.Logger}
}

// Definition returns the MCP tool definition for plan_versions.
func (t *VersionsTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_versions",
		mcp.WithDescription(
			"List a task's implementation plan versions, or diff two of them when both 'from' and 'to' are given.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task identifier"),
		),
		mcp.WithNumber("from",
			mcp.Description("Older version number to compare"),
		),
		mcp.WithNumber("to",
			mcp.Description("Newer version number to compare"),
		),
	)
}

// Handle processes the plan_versions tool call.
func (t *VersionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	if t.plans == nil {
		return mcp.NewToolResultError("no plan store configured"), nil
	}
	vm := t.plans.Versions(taskID, t.logger)

	from, to := intArg(req, "from", 0), intArg(req, "to", 0)
	if from > 0 && to > 0 {
		text, err := vm.Diff(from, to)
		if errors.Is(err, plan.ErrVersionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("version not found for %s: %v", taskID, err)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
	if from > 0 || to > 0 {
		return mcp.NewToolResultError("'from' and 'to' must be given together"), nil
	}

	history, err := vm.History()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list versions: %v", err)), nil
	}
	if len(history) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No plan versions recorded for %s.", taskID)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Plan versions for %s (%d)\n", taskID, len(history)))
	for _, v := range history {
		sb.WriteString("\n")
		sb.WriteString(v.Summary())
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
