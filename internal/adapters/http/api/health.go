package api

import (
	"net/http"

	"github.com/okian/groupsplit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler serves liveness together with the Prometheus exposition.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a health handler exposing gatherer. A nil
// gatherer falls back to the groupsplit registry.
func NewHealthHandler(gatherer prometheus.Gatherer) *HealthHandler {
	if gatherer == nil {
		gatherer = metrics.GetRegistry()
	}
	return &HealthHandler{
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	}
}

// HandleHealth handles GET /healthz. A process that can answer is healthy,
// so the body is simply the current metrics snapshot.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, "api.healthz", http.MethodGet, http.MethodHead)
		return
	}
	h.metrics.ServeHTTP(w, r)
}
