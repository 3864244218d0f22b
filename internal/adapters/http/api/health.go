package api

import (
	"net/http"

	"github.com/okian/regionsel/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type readyResponse struct {
	Status         string `json:"status"`
	ProfileVersion string `json:"profile_version,omitempty"`
	Regions        int    `json:"regions"`
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	deps    Dependencies
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz with the Prometheus exposition of the
// service registry.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz. The service is ready once a profile set
// with at least one region is published.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	summary, err := h.deps.Profiles(r.Context())
	if err != nil || len(summary.Labels) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "no profiles"})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{
		Status:         "ready",
		ProfileVersion: summary.Version,
		Regions:        len(summary.Labels),
	})
}
