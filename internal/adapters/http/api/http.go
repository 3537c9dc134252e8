// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CycleDependencies
	EvaluationDependencies
	PublishDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	cyclesHandler      *CyclesHandler
	evaluationsHandler *EvaluationsHandler
	publishHandler     *PublishHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		cyclesHandler:      NewCyclesHandler(deps),
		evaluationsHandler: NewEvaluationsHandler(deps),
		publishHandler:     NewPublishHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /cycles/generate", MetricsMiddleware(s.cyclesHandler.HandleGenerate, "cycles_generate"))
	mux.HandleFunc("GET /cycles", MetricsMiddleware(s.cyclesHandler.HandleList, "cycles"))
	mux.HandleFunc("POST /cycles/{id}/close", MetricsMiddleware(s.cyclesHandler.HandleClose, "cycles_close"))
	mux.HandleFunc("GET /cycles/{id}/participants/{pid}/pairings", MetricsMiddleware(s.cyclesHandler.HandlePairings, "pairings"))
	mux.HandleFunc("GET /cycles/{id}/audit", MetricsMiddleware(s.cyclesHandler.HandleAudit, "audit"))
	mux.HandleFunc("GET /cycles/{id}/index", MetricsMiddleware(s.cyclesHandler.HandleIndex, "index"))

	mux.HandleFunc("PUT /evaluations/{id}", MetricsMiddleware(s.evaluationsHandler.HandleSubmit, "evaluations"))
	mux.HandleFunc("POST /scores/composite", MetricsMiddleware(s.evaluationsHandler.HandleComposite, "composite"))

	mux.HandleFunc("POST /pairs/{pairID}/subjects/{subjectID}/publish", MetricsMiddleware(s.publishHandler.HandlePublish, "publish"))
	mux.HandleFunc("GET /pairs/{pairID}/subjects/{subjectID}", MetricsMiddleware(s.publishHandler.HandleState, "pair_state"))
	mux.HandleFunc("GET /pairs/{pairID}/navigable", MetricsMiddleware(s.publishHandler.HandleNavigable, "pair_navigable"))
	mux.HandleFunc("POST /published/adhoc", MetricsMiddleware(s.publishHandler.HandleAdHoc, "publish_adhoc"))
}

// generateRequest is the body of POST /cycles/generate. Start is "YYYY-MM"
// and may be empty once a cycle exists.
type generateRequest struct {
	Start string `json:"start"`
}

// scoresRequest carries the six sub-scores.
type scoresRequest struct {
	Value  []int `json:"value"`
	Growth []int `json:"growth"`
}

func (s scoresRequest) scores() (model.Scores, error) {
	if len(s.Value) != model.NumDomains || len(s.Growth) != model.NumDomains {
		return model.Scores{}, badRequest("value and growth must each have 3 scores")
	}
	var out model.Scores
	copy(out.Value[:], s.Value)
	copy(out.Growth[:], s.Growth)
	return out, nil
}

// submitRequest is the body of PUT /evaluations/{id}.
type submitRequest struct {
	ActorID string        `json:"actorId"`
	Status  string        `json:"status"`
	Scores  scoresRequest `json:"scores"`
}

// publishRequest is the body of POST /pairs/{pairID}/subjects/{subjectID}/publish.
type publishRequest struct {
	PublisherID string `json:"publisherId"`
}

// adHocRequest is the body of POST /published/adhoc.
type adHocRequest struct {
	SubjectID   string        `json:"subjectId"`
	PublisherID string        `json:"publisherId"`
	Scores      scoresRequest `json:"scores"`
}

type compositeResponse struct {
	Composite   int    `json:"composite"`
	ValueTotal  int    `json:"valueTotal"`
	GrowthTotal int    `json:"growthTotal"`
	Label       string `json:"label"`
	Code        string `json:"code"`
}

func newCompositeResponse(r scoring.Result) compositeResponse {
	return compositeResponse{
		Composite:   r.Composite,
		ValueTotal:  r.ValueTotal,
		GrowthTotal: r.GrowthTotal,
		Label:       r.Class.Label,
		Code:        r.Class.Code,
	}
}

type pairingsResponse struct {
	CycleID       string          `json:"cycleId"`
	ParticipantID string          `json:"participantId"`
	Pairings      []model.Pairing `json:"pairings"`
}

type stateResponse struct {
	PairID    string          `json:"pairId"`
	SubjectID string          `json:"subjectId"`
	State     model.PairState `json:"state"`
}

type navigableResponse struct {
	PairID    string `json:"pairId"`
	Navigable bool   `json:"navigable"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// batchErrorResponse reports a generation that stopped part way. Months in
// CompletedCycleIDs were committed and stay in place.
type batchErrorResponse struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	CompletedCycleIDs []string          `json:"completedCycleIds"`
	FailedPeriod      string            `json:"failedPeriod"`
	Summary           generator.Summary `json:"summary"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid body: " + err.Error())
	}
	return nil
}
