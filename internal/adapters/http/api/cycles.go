package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
)

// CycleDependencies defines the cycle-level operations.
type CycleDependencies interface {
	GenerateNextCycle(ctx context.Context, start *model.Period) (generator.Summary, error)
	ListCycles(ctx context.Context) ([]model.Cycle, error)
	CloseCycle(ctx context.Context, cycleID string) error
	ResolvePairingsForParticipant(ctx context.Context, cycleID, participantID string) ([]model.Pairing, error)
	AuditPairLinking(ctx context.Context, cycleID string) (pairing.AuditReport, error)
	Index(ctx context.Context, cycleID string) (model.Index, error)
}

// CyclesHandler handles cycle requests.
type CyclesHandler struct {
	deps CycleDependencies
}

// NewCyclesHandler creates a new cycles handler.
func NewCyclesHandler(deps CycleDependencies) *CyclesHandler {
	return &CyclesHandler{deps: deps}
}

// HandleGenerate handles POST /cycles/generate requests. An empty body or
// start continues after the latest cycle.
func (h *CyclesHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	var start *model.Period
	if s := strings.TrimSpace(req.Start); s != "" {
		p, err := model.ParsePeriod(s)
		if err != nil {
			writeError(w, err)
			return
		}
		start = &p
	}
	sum, err := h.deps.GenerateNextCycle(r.Context(), start)
	var be *generator.BatchError
	if errors.As(err, &be) {
		status, code := classify(err)
		writeJSON(w, status, batchErrorResponse{
			Code:              code,
			Message:           err.Error(),
			CompletedCycleIDs: be.CompletedCycleIDs,
			FailedPeriod:      be.FailedPeriod.String(),
			Summary:           sum,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// HandleList handles GET /cycles requests.
func (h *CyclesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.deps.ListCycles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

// HandleClose handles POST /cycles/{id}/close requests.
func (h *CyclesHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseCycle(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePairings handles GET /cycles/{id}/participants/{pid}/pairings requests.
func (h *CyclesHandler) HandlePairings(w http.ResponseWriter, r *http.Request) {
	cycleID, participantID := r.PathValue("id"), r.PathValue("pid")
	pairs, err := h.deps.ResolvePairingsForParticipant(r.Context(), cycleID, participantID)
	if err != nil {
		writeError(w, err)
		return
	}
	if pairs == nil {
		pairs = []model.Pairing{}
	}
	writeJSON(w, http.StatusOK, pairingsResponse{CycleID: cycleID, ParticipantID: participantID, Pairings: pairs})
}

// HandleAudit handles GET /cycles/{id}/audit requests.
func (h *CyclesHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.AuditPairLinking(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleIndex handles GET /cycles/{id}/index requests.
func (h *CyclesHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := h.deps.Index(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}
