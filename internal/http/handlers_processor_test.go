package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscale/jobforge/internal/domain/model"
)

// fakeController implements ProcessorController for handler tests.
type fakeController struct {
	running  bool
	workers  int
	startErr error
	stopErr  error
}

func (c *fakeController) Start(context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}

func (c *fakeController) Stop(context.Context) error {
	if c.stopErr != nil {
		return c.stopErr
	}
	c.running = false
	return nil
}

func (c *fakeController) Status() model.ProcessorStatus {
	status := model.ProcessorStatus{Running: c.running}
	if c.running {
		status.ActiveWorkers = c.workers
		since := time.Now()
		status.Since = &since
	}
	return status
}

func TestProcessorStartStop(t *testing.T) {
	ctrl := &fakeController{workers: 4}
	h := &ProcessorHandlers{Controller: ctrl}

	w := httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/api/processor/start", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":true}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Stop(w, httptest.NewRequest(http.MethodPost, "/api/processor/stop", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":false}`, w.Body.String())
}

func TestProcessorStartFailure(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("db unreachable")}
	h := &ProcessorHandlers{Controller: ctrl}

	w := httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/api/processor/start", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "start_failed")
}

func TestProcessorStatus(t *testing.T) {
	ctrl := &fakeController{running: true, workers: 2}
	h := &ProcessorHandlers{Controller: ctrl}

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/processor/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":true`)
	assert.Contains(t, w.Body.String(), `"active_workers":2`)
}
