package api

import (
	"context"
	"net/http"
)

// StatsProvider reports service counters keyed by name. A "started" entry of
// false means the store is not open yet.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler over provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats writes the counters; a service that has not started answers 503.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.provider.GetStats(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	if started, ok := stats["started"].(bool); ok && !started {
		writeJSON(w, http.StatusServiceUnavailable, stats)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
