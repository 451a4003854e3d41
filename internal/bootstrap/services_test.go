package bootstrap

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/domain/model"
	"github.com/openscale/jobforge/internal/engine"
)

func noopHandler() engine.Handler {
	return engine.HandlerFunc(func(_ context.Context, _ *model.Job, items []json.RawMessage) ([]engine.ItemResult, error) {
		results := make([]engine.ItemResult, 0, len(items))
		for i := range items {
			results = append(results, engine.ItemResult{Index: i, Outcome: engine.OutcomeSucceeded})
		}
		return results, nil
	})
}

func TestNewServicesWiresContainer(t *testing.T) {
	cfg := config.AppConfig{}
	cfg.Sanitize()

	services, err := NewServices(&ServiceDeps{
		Config: &cfg,
		Handlers: map[string]engine.Handler{
			"noop": noopHandler(),
		},
	})
	require.NoError(t, err)

	assert.NotNil(t, services.Queue)
	assert.NotNil(t, services.Reporter)
	assert.NotNil(t, services.Controller)
	assert.NotNil(t, services.Notifier)
	require.NotNil(t, services.Registry)
	assert.True(t, services.Registry.Has("noop"))
	assert.NotNil(t, services.Observability.FailureNotifier)
}

func TestNewServicesNilDeps(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestBuildRegistryDuplicateType(t *testing.T) {
	registry, err := buildRegistry(map[string]engine.Handler{
		"noop": noopHandler(),
	})
	require.NoError(t, err)
	require.Error(t, registry.Register("noop", noopHandler()))
}

func TestGetEnabledServiceNames(t *testing.T) {
	cfg := config.AppConfig{Services: "http,engine,reaper"}
	names := GetEnabledServices(&cfg)
	assert.ElementsMatch(t, []string{"http", "engine", "reaper"}, names)

	invalid := config.AppConfig{Services: "http,websocket"}
	assert.Empty(t, GetEnabledServices(&invalid))
}

func TestErrorChannelBufferSize(t *testing.T) {
	assert.Equal(t, 1, errorChannelBufferSize(nil))
	assert.Equal(t, 3, errorChannelBufferSize(map[config.ServiceMode]bool{
		config.ServiceModeHTTP:   true,
		config.ServiceModeEngine: true,
	}))
}

func TestCacheOrNilAvoidsTypedNil(t *testing.T) {
	assert.Nil(t, cacheOrNil(nil))
	assert.Nil(t, cacheOrNil(&serviceRepositories{}))
}

func TestBuildFailureNotifierDisabled(t *testing.T) {
	cfg := config.ObservabilityNotificationsConfig{}
	notifier := buildFailureNotifier(nil, cfg)
	require.NotNil(t, notifier)
}
