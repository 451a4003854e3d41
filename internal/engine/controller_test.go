package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
)

func newTestController(t *testing.T, store *memStore, registry *Registry) *Controller {
	t.Helper()
	pool := newTestPool(t, store, registry, PoolOptions{Workers: 2})
	ctrl, err := NewController(ControllerOptions{Pool: pool, Store: store})
	require.NoError(t, err)
	return ctrl
}

func TestControllerStartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ctrl := newTestController(t, store, NewRegistry())

	assert.False(t, ctrl.Status().Running)

	require.NoError(t, ctrl.Start(ctx))
	status := ctrl.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 2, status.ActiveWorkers)
	require.NotNil(t, status.Since)
	since := *status.Since

	// Second Start is a no-op and keeps the original start time.
	require.NoError(t, ctrl.Start(ctx))
	status = ctrl.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.Since)
	assert.Equal(t, since, *status.Since)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Stop(stopCtx))
	status = ctrl.Status()
	assert.False(t, status.Running)
	assert.Zero(t, status.ActiveWorkers)
	assert.Nil(t, status.Since)

	require.NoError(t, ctrl.Stop(stopCtx))
}

func TestControllerRequeuesOrphansOnStart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orphan := store.add("owner-1", "email_batch", model.JobPriorityMedium, 20, 0)
	_, err := store.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
	require.NoError(t, err)
	require.Equal(t, model.JobStatusRunning, store.snapshot(orphan.ID).Status)

	registry := NewRegistry()
	require.NoError(t, registry.Register("email_batch", HandlerFunc(
		func(_ context.Context, _ *model.Job, items []json.RawMessage) ([]ItemResult, error) {
			return allSucceeded(items), nil
		})))

	ctrl := newTestController(t, store, registry)
	require.NoError(t, ctrl.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = ctrl.Stop(stopCtx)
	}()

	// The orphan is reconciled to queued and then processed normally.
	waitFor(t, func() bool { return store.snapshot(orphan.ID).Status == model.JobStatusCompleted })
}
