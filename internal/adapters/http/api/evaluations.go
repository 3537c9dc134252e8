package api

import (
	"context"
	"net/http"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/scoring"
)

// EvaluationDependencies defines the evaluation editing operations.
type EvaluationDependencies interface {
	SubmitEvaluation(ctx context.Context, evaluationID, actorID string, scores model.Scores, status model.Status) (model.Evaluation, error)
	ComputeComposite(scores model.Scores) (scoring.Result, error)
}

// EvaluationsHandler handles evaluation and scoring requests.
type EvaluationsHandler struct {
	deps EvaluationDependencies
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps EvaluationDependencies) *EvaluationsHandler {
	return &EvaluationsHandler{deps: deps}
}

// HandleSubmit handles PUT /evaluations/{id} requests.
func (h *EvaluationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ActorID == "" {
		writeError(w, badRequest("missing actorId"))
		return
	}
	scores, err := req.Scores.scores()
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := h.deps.SubmitEvaluation(r.Context(), r.PathValue("id"), req.ActorID, scores, model.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleComposite handles POST /scores/composite requests.
func (h *EvaluationsHandler) HandleComposite(w http.ResponseWriter, r *http.Request) {
	var req scoresRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	scores, err := req.scores()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.deps.ComputeComposite(scores)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompositeResponse(res))
}
