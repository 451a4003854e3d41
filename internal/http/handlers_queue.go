package httpx

import (
	"net/http"

	"github.com/openscale/jobforge/internal/service"
)

// QueueHandlers provides HTTP handlers for the queue status surface.
type QueueHandlers struct {
	Reporter *service.ReporterService
}

// GetStats handles HTTP requests for the queue stats snapshot.
func (h *QueueHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reporter.QueueStats(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetHealth handles HTTP requests for the derived queue backlog signal.
func (h *QueueHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.Reporter.QueueHealth(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "health_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, health)
}
