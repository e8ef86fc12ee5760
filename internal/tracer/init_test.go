package tracer

import (
	"context"
	"testing"

	"rag-chatbot-ui/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown := InitTracer(config.OtelConfig{Enabled: false})
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracerEnabled(t *testing.T) {
	// The exporter connects lazily, so no collector is needed.
	shutdown := InitTracer(config.OtelConfig{Enabled: true, Endpoint: "localhost:4318", ServiceName: "test"})
	assert.NotNil(t, shutdown)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
