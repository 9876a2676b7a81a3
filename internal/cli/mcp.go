package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve reviewgate tools over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout exposing evaluate_complexity,
route_review and plan_versions. Logs go to stderr.

Example client configuration:
  {
    "mcpServers": {
      "reviewgate": { "command": "reviewgate", "args": ["mcp"] }
    }
  }`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()

	s := mcptools.NewServer(version, mcptools.Deps{
		Plans:      a.plans,
		Tasks:      a.tasks,
		Calculator: a.calc,
		Router:     a.router,
		Logger:     a.logger,
	})
	return server.ServeStdio(s)
}
