// Package api implements the reviewgate HTTP API server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/modify"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/router"
)

// Deps are the server's collaborators. Sessions is optional.
type Deps struct {
	Plans      *plan.Store
	Sessions   *modify.SessionStore
	Calculator *complexity.Calculator
	Router     *router.Router
	Logger     *zap.Logger
	Now        func() time.Time
}

// Server is the reviewgate HTTP API server.
type Server struct {
	addr     string
	mux      *http.ServeMux
	server   *http.Server
	plans    *plan.Store
	sessions *modify.SessionStore
	calc     *complexity.Calculator
	router   *router.Router
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new API server.
func New(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Calculator == nil {
		d.Calculator = complexity.NewDefault(d.Logger)
	}
	if d.Router == nil {
		d.Router = router.New(d.Logger)
	}
	s := &Server{
		addr:     addr,
		plans:    d.Plans,
		sessions: d.Sessions,
		calc:     d.Calculator,
		router:   d.Router,
		logger:   d.Logger,
		now:      d.Now,
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("GET /api/tasks/{id}/plan", s.handlePlan)
	s.mux.HandleFunc("GET /api/tasks/{id}/versions", s.handleVersions)
	s.mux.HandleFunc("GET /api/tasks/{id}/versions/{a}/diff/{b}", s.handleVersionDiff)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("reviewgate API server listening", zap.String("addr", s.addr))
	errc := make(chan error, 1)
	go func() { errc <- s.server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("json encode error", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
