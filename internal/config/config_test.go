package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SESSION_STORE", "SESSION_TTL_MINUTES", "SESSION_COOKIE_NAME", "GO_ENV"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 60*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "chat_session", cfg.Session.CookieName)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("GO_ENV", "production")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_TTL_MINUTES", "15")
	t.Setenv("BACKEND_PROVIDER", "memory")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "8080", cfg.App.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "memory", cfg.Backend.Provider)
	assert.Equal(t, 120*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Otel.Enabled)
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FLAG_UNDER_TEST", tt.value)
			assert.Equal(t, tt.want, getEnvAsBool("FLAG_UNDER_TEST", tt.fallback))
		})
	}
}
