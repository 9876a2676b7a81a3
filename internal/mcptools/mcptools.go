// Package mcptools exposes complexity evaluation and plan history as MCP
// tools so an assistant can ask for a routing decision before it starts
// implementing.
//
// Each tool is a struct with its collaborators injected through the
// constructor. Definition returns the mcp.Tool schema and Handle serves a
// call. Tool failures are returned as error results, never as Go errors,
// so the client sees the message.
package mcptools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/router"
	"github.com/sprite-ai/reviewgate/internal/task"
)

// Deps are shared by every tool. Tasks is optional; without it task
// metadata must be passed as arguments.
type Deps struct {
	Plans      *plan.Store
	Tasks      *task.Store
	Calculator *complexity.Calculator
	Router     *router.Router
	Logger     *zap.Logger
}

const instructions = `reviewgate scores implementation plans on a 1-10 scale and decides how much human review they need.
Call evaluate_complexity with a task ID before implementing. Scores 1-3 auto-proceed, 4-6 offer an optional quick review, 7-10 require a full review.
Security keywords, schema changes, hotfixes, breaking changes and explicit review requests always force a full review.`

// NewServer builds an MCP server with every reviewgate tool registered.
func NewServer(version string, d Deps) *server.MCPServer {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Calculator == nil {
		d.Calculator = complexity.NewDefault(d.Logger)
	}
	if d.Router == nil {
		d.Router = router.New(d.Logger)
	}

	s := server.NewMCPServer(
		"reviewgate",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	evaluate := NewEvaluateTool(d)
	s.AddTool(evaluate.Definition(), evaluate.Handle)

	route := NewRouteTool(d)
	s.AddTool(route.Definition(), route.Handle)

	versions := NewVersionsTool(d)
	s.AddTool(versions.Definition(), versions.Handle)

	return s
}

// intArg extracts an integer argument, returning defaultVal when the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg splits a comma separated string argument.
func listArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	for _, s := range strings.Split(req.GetString(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
