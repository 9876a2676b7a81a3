package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/reviewgate/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the scoring engine and plan history.

Endpoints:
  GET  /health                                 — Health check
  POST /api/evaluate                           — Score a plan and route it
  GET  /api/tasks/{id}/plan                    — Current plan
  GET  /api/tasks/{id}/versions                — Plan version history
  GET  /api/tasks/{id}/versions/{a}/diff/{b}   — Compare two versions
  GET  /api/ws                                 — WebSocket plan modification sessions`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default: server.addr from config)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default: server.port from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a := newApp(cmd)
	defer a.close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	server := a.cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		server.Addr = addr
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		server.Port = port
	}

	srv := api.New(server.Address(), api.Deps{
		Plans:      a.plans,
		Sessions:   a.sessions,
		Calculator: a.calc,
		Router:     a.router,
		Logger:     a.logger,
	})
	fmt.Fprintf(cmd.ErrOrStderr(), "reviewgate API listening on http://%s\n", server.Address())
	return srv.ListenAndServe(ctx)
}
