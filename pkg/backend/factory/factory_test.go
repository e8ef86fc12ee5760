package factory

import (
	"testing"
	"time"

	"rag-chatbot-ui/pkg/backend/langgraph"
	"rag-chatbot-ui/pkg/backend/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("http", "", time.Second)
	require.NoError(t, err)
	client, ok := b.(*langgraph.Client)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8000", client.BaseURL)

	b, err = NewBackend("memory", "", time.Second)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	_, err = NewBackend("grpc", "", time.Second)
	assert.Error(t, err)
}
