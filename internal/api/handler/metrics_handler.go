package handler

import (
	"net/http"

	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/service"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics are served separately at /metrics.
type MetricsHandler struct {
	svc *service.QueueService
}

func NewMetricsHandler(svc *service.QueueService) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Active entries by status and dispatch backlog
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	counts := snap.CountByStatus()
	respondJSON(w, http.StatusOK, map[string]any{
		"active": map[string]int{
			string(domain.StatusQueued):     counts[domain.StatusQueued],
			string(domain.StatusInProgress): counts[domain.StatusInProgress],
			"total":                         snap.Total(),
		},
		"dispatch_queue_depth": h.svc.DispatchDepth(),
	})
}
