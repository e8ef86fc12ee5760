package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rag-chatbot-ui/internal/config"
	"rag-chatbot-ui/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App: config.AppConfig{
			Environment:      "test",
			LogFilePath:      filepath.Join(dir, "app.log"),
			AuditLogFilePath: filepath.Join(dir, "audit.log"),
		},
		Session: config.SessionConfig{
			Store:      "memory",
			TTL:        time.Hour,
			JwtSecret:  "secret",
			CookieName: "chat_session",
		},
		Backend: config.BackendConfig{Provider: "memory"},
		Events:  config.EventsConfig{Topic: "TEST_EVENTS"},
	}
}

func TestNewContainerMemoryStack(t *testing.T) {
	c, err := NewContainer(testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	view, err := c.SessionService.Initialize(ctx, "s-1")
	require.NoError(t, err)

	res, err := c.SessionService.SubmitTurn(ctx, "s-1", &dto.SubmitTurnRequest{Content: "ping"}, nil)
	require.NoError(t, err)
	assert.Equal(t, view.Sidebar.ThreadId, res.ThreadId)
	assert.Equal(t, "You said: ping", res.Reply)
	assert.NotNil(t, c.SessionController)
}

func TestNewContainerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"unknown store", func(cfg *config.Config) { cfg.Session.Store = "etcd" }},
		{"redis without url", func(cfg *config.Config) { cfg.Session.Store = "redis" }},
		{"postgres without dsn", func(cfg *config.Config) { cfg.Session.Store = "postgres" }},
		{"unknown backend", func(cfg *config.Config) { cfg.Backend.Provider = "grpc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := NewContainer(cfg)
			assert.Error(t, err)
		})
	}
}
