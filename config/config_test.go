package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
		},
		{
			name:  "single service - engine",
			input: "engine",
			expected: map[ServiceMode]bool{
				ServiceModeEngine: true,
			},
		},
		{
			name:  "all services",
			input: "http,engine,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeEngine: true,
				ServiceModeReaper: true,
			},
		},
		{
			name:  "services with spaces",
			input: " http , engine ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeEngine: true,
			},
		},
		{
			name:  "duplicate services",
			input: "http,http,engine",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeEngine: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "invalid service",
			input:       "http,scheduler",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,,",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("ParseServices(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAppConfigDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse defaults: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "http,engine" {
		t.Errorf("expected default services, got %q", cfg.Services)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.ChunkSize != 100 {
		t.Errorf("expected chunk size 100, got %d", cfg.Engine.ChunkSize)
	}
	if cfg.Engine.Lease != 30*time.Second {
		t.Errorf("expected 30s lease, got %v", cfg.Engine.Lease)
	}
	if cfg.Health.StatsCacheTTL != 5*time.Second {
		t.Errorf("expected 5s stats cache TTL, got %v", cfg.Health.StatsCacheTTL)
	}
	if cfg.Auth.UserHeader != "X-Forwarded-User" {
		t.Errorf("expected default user header, got %q", cfg.Auth.UserHeader)
	}
	if cfg.Postgres.Name != "jobforge" {
		t.Errorf("expected default db name, got %q", cfg.Postgres.Name)
	}
}

func TestEngineConfigSanitize(t *testing.T) {
	cfg := EngineConfig{
		Workers:        -1,
		ChunkSize:      0,
		Lease:          time.Second,
		PollInterval:   0,
		OwnerActiveCap: -5,
		ChunkRetries:   0,
		RetryDelay:     0,
	}
	cfg.Sanitize()

	if cfg.Workers != 1 {
		t.Errorf("expected workers clamped to 1, got %d", cfg.Workers)
	}
	if cfg.ChunkSize != 1 {
		t.Errorf("expected chunk size clamped to 1, got %d", cfg.ChunkSize)
	}
	if cfg.Lease != 5*time.Second {
		t.Errorf("expected lease clamped to 5s, got %v", cfg.Lease)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("expected poll interval clamped to 1s, got %v", cfg.PollInterval)
	}
	if cfg.OwnerActiveCap != 0 {
		t.Errorf("expected owner cap clamped to 0, got %d", cfg.OwnerActiveCap)
	}
	if cfg.ChunkRetries != 1 {
		t.Errorf("expected chunk retries clamped to 1, got %d", cfg.ChunkRetries)
	}
}

func TestHealthConfigSanitize(t *testing.T) {
	cfg := HealthConfig{
		DegradedAfter:   2 * time.Minute,
		BackloggedAfter: time.Minute, // below degraded, must be lifted
	}
	cfg.Sanitize()

	if cfg.BackloggedAfter <= cfg.DegradedAfter {
		t.Errorf("expected backlogged threshold above degraded, got %v <= %v",
			cfg.BackloggedAfter, cfg.DegradedAfter)
	}
}

func TestReaperConfigSanitize(t *testing.T) {
	cfg := ReaperConfig{
		Interval:        time.Second,
		QueuedMaxAge:    time.Second,
		CompletedMaxAge: time.Minute,
		FailedMaxAge:    time.Minute,
		CancelledMaxAge: time.Minute,
		BatchSize:       100000,
	}
	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Errorf("expected interval clamped to 1m, got %v", cfg.Interval)
	}
	if cfg.QueuedMaxAge != 5*time.Minute {
		t.Errorf("expected queued max age clamped to 5m, got %v", cfg.QueuedMaxAge)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size clamped to 10000, got %d", cfg.BatchSize)
	}
}

func TestObservabilityNotificationsSanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled: true,
		Slack: SlackNotificationConfig{
			Enabled: true, // no webhook URL, must be disabled
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " key ",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Error("expected slack disabled without webhook URL")
	}
	if !cfg.PagerDuty.Enabled {
		t.Error("expected pagerduty enabled with routing key")
	}
	if cfg.PagerDuty.RoutingKey != "key" {
		t.Errorf("expected trimmed routing key, got %q", cfg.PagerDuty.RoutingKey)
	}
	if cfg.Slack.Username != "jobforge" {
		t.Errorf("expected default slack username, got %q", cfg.Slack.Username)
	}
}
