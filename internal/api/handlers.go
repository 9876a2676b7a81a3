package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/router"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Evaluate ---

type evaluateRequest struct {
	TaskID   string                    `json:"task_id"`
	Stack    string                    `json:"technology_stack,omitempty"`
	Plan     *model.ImplementationPlan `json:"plan"`
	Metadata complexity.TaskMetadata   `json:"metadata"`
	Flags    complexity.UserFlags      `json:"flags"`
}

type evaluateResponse struct {
	Score    model.ComplexityScore `json:"complexity_score"`
	Decision model.ReviewDecision  `json:"review_decision"`
	Compact  string                `json:"compact_summary"`
	Errors   []string              `json:"errors,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Plan == nil {
		s.writeError(w, http.StatusBadRequest, "plan is required")
		return
	}
	if req.TaskID == "" {
		req.TaskID = req.Plan.TaskID
	}
	if req.Stack == "" {
		req.Stack = "default"
	}

	ec := complexity.EvaluationContext{
		TaskID:          req.TaskID,
		TechnologyStack: req.Stack,
		Plan:            req.Plan,
		Metadata:        req.Metadata,
		Flags:           req.Flags,
	}

	var resp evaluateResponse
	score, err := s.calc.Calculate(r.Context(), ec)
	if err != nil {
		if complexity.IsInterrupt(err) {
			s.writeError(w, http.StatusServiceUnavailable, "evaluation interrupted")
			return
		}
		resp.Errors = append(resp.Errors, err.Error())
	}
	decision, err := s.router.Route(score, ec)
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	resp.Score = score
	resp.Decision = decision
	resp.Compact = router.CompactSummary(score)

	s.logger.Info("evaluated plan",
		zap.String("task_id", req.TaskID),
		zap.Int("score", score.TotalScore),
		zap.Stringer("mode", score.Mode))
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Plans and versions ---

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.plans.Load(r.PathValue("id"))
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type versionJSON struct {
	Number          int    `json:"version_number"`
	CreatedAt       string `json:"created_at"`
	CreatedBy       string `json:"created_by"`
	ChangeReason    string `json:"change_reason"`
	PreviousVersion int    `json:"previous_version,omitempty"`
	FileCount       int    `json:"file_count"`
	DependencyCount int    `json:"dependency_count"`
	EstimatedLOC    int    `json:"estimated_loc,omitempty"`
}

type versionsResponse struct {
	TaskID   string        `json:"task_id"`
	Count    int           `json:"count"`
	Versions []versionJSON `json:"versions"`
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := s.plans.Versions(id, s.logger).History()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := versionsResponse{TaskID: id, Count: len(history), Versions: []versionJSON{}}
	for _, v := range history {
		resp.Versions = append(resp.Versions, versionJSON{
			Number:          v.Number,
			CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339),
			CreatedBy:       v.CreatedBy,
			ChangeReason:    v.ChangeReason,
			PreviousVersion: v.PreviousVersion,
			FileCount:       v.Metadata.FileCount,
			DependencyCount: v.Metadata.DependencyCount,
			EstimatedLOC:    v.Plan.EstimatedLOC,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type versionDiffResponse struct {
	Comparison *plan.Comparison `json:"comparison"`
	Diff       string           `json:"diff"`
}

func (s *Server) handleVersionDiff(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.Atoi(r.PathValue("a"))
	b, errB := strconv.Atoi(r.PathValue("b"))
	if errA != nil || errB != nil {
		s.writeError(w, http.StatusBadRequest, "version numbers must be integers")
		return
	}
	vm := s.plans.Versions(r.PathValue("id"), s.logger)
	cmp, err := vm.Compare(a, b)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	text, err := vm.Diff(a, b)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, versionDiffResponse{Comparison: cmp, Diff: text})
}

func (s *Server) writePlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plan.ErrNotFound), errors.Is(err, plan.ErrVersionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
