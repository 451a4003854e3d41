package httpx

import (
	"context"
	"net/http"

	"github.com/openscale/jobforge/internal/domain/model"
)

// ProcessorController is the control surface the HTTP layer needs from the
// engine controller.
type ProcessorController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() model.ProcessorStatus
}

// ProcessorHandlers provides HTTP handlers for operator control of the batch
// processor.
type ProcessorHandlers struct {
	Controller ProcessorController
}

// Start handles HTTP requests to start the processor. Starting an already
// running processor is a no-op.
func (h *ProcessorHandlers) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.Start(r.Context()); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "start_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"running": h.Controller.Status().Running})
}

// Stop handles HTTP requests to stop the processor. Workers finish their
// current chunk before the pool drains, so this can take up to a chunk's
// execution time.
func (h *ProcessorHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.Stop(r.Context()); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stop_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"running": h.Controller.Status().Running})
}

// Status handles HTTP requests for the processor status.
func (h *ProcessorHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Controller.Status())
}
