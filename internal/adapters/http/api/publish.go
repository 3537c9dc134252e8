package api

import (
	"context"
	"net/http"

	"github.com/okian/cadence/internal/domain/model"
)

// PublishDependencies defines the publication operations.
type PublishDependencies interface {
	PublishPair(ctx context.Context, pairID, subjectID, publisherID string) (model.PublishedRecord, error)
	PublishAdHoc(ctx context.Context, subjectID, publisherID string, scores model.Scores) (model.PublishedRecord, error)
	PairState(ctx context.Context, pairID, subjectID string) (model.PairState, error)
	CheckNavigable(ctx context.Context, pairID string) error
}

// PublishHandler handles publication requests.
type PublishHandler struct {
	deps PublishDependencies
}

// NewPublishHandler creates a new publish handler.
func NewPublishHandler(deps PublishDependencies) *PublishHandler {
	return &PublishHandler{deps: deps}
}

// HandlePublish handles POST /pairs/{pairID}/subjects/{subjectID}/publish
// requests.
func (h *PublishHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PublisherID == "" {
		writeError(w, badRequest("missing publisherId"))
		return
	}
	rec, err := h.deps.PublishPair(r.Context(), r.PathValue("pairID"), r.PathValue("subjectID"), req.PublisherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleState handles GET /pairs/{pairID}/subjects/{subjectID} requests.
func (h *PublishHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	pairID, subjectID := r.PathValue("pairID"), r.PathValue("subjectID")
	st, err := h.deps.PairState(r.Context(), pairID, subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{PairID: pairID, SubjectID: subjectID, State: st})
}

// HandleNavigable handles GET /pairs/{pairID}/navigable requests. A
// published pair answers 422 "locked".
func (h *PublishHandler) HandleNavigable(w http.ResponseWriter, r *http.Request) {
	pairID := r.PathValue("pairID")
	if err := h.deps.CheckNavigable(r.Context(), pairID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, navigableResponse{PairID: pairID, Navigable: true})
}

// HandleAdHoc handles POST /published/adhoc requests.
func (h *PublishHandler) HandleAdHoc(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	scores, err := req.Scores.scores()
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.PublishAdHoc(r.Context(), req.SubjectID, req.PublisherID, scores)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
