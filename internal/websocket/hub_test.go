package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func requireClosed(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}
}

func receive(t *testing.T, c *Client) dto.StreamFrame {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var frame dto.StreamFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
	return dto.StreamFrame{}
}

func TestHubFansOutPerSession(t *testing.T) {
	hub := startHub(t)

	tabA := newClient(hub, nil, "s-1", 4)
	tabB := newClient(hub, nil, "s-1", 4)
	other := newClient(hub, nil, "s-2", 4)
	hub.register <- tabA
	hub.register <- tabB
	hub.register <- other

	require.Eventually(t, func() bool { return hub.ConnectedSessions() == 2 }, time.Second, 10*time.Millisecond)

	hub.Send("s-1", dto.StreamFrame{Type: "delta", Content: "hi"})

	assert.Equal(t, dto.StreamFrame{Type: "delta", Content: "hi"}, receive(t, tabA))
	assert.Equal(t, dto.StreamFrame{Type: "delta", Content: "hi"}, receive(t, tabB))
	assert.Len(t, other.Send, 0)
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t)

	c := newClient(hub, nil, "s-1", 1)
	hub.register <- c
	hub.unregister <- c

	require.Eventually(t, func() bool { return hub.ConnectedSessions() == 0 }, time.Second, 10*time.Millisecond)
	requireClosed(t, c)

	// Unregistering twice is harmless.
	hub.unregister <- c
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	hub.sendTimeout = 50 * time.Millisecond

	slow := newClient(hub, nil, "s-1", 1)
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ConnectedSessions() == 1 }, time.Second, 10*time.Millisecond)

	hub.Send("s-1", dto.StreamFrame{Type: "delta", Content: "a"})
	hub.Send("s-1", dto.StreamFrame{Type: "delta", Content: "b"})

	assert.Equal(t, 0, hub.ConnectedSessions())
	assert.Equal(t, "a", receive(t, slow).Content)
	requireClosed(t, slow)

	// Frames for a removed client are discarded without blocking.
	assert.True(t, slow.enqueue([]byte("late"), time.Hour))
}

func TestHubWaitsForBufferRoom(t *testing.T) {
	hub := startHub(t)
	hub.sendTimeout = time.Second

	c := newClient(hub, nil, "s-1", 1)
	hub.register <- c
	require.Eventually(t, func() bool { return hub.ConnectedSessions() == 1 }, time.Second, 10*time.Millisecond)

	hub.Send("s-1", dto.StreamFrame{Type: "delta", Content: "a"})

	// A reader catching up within the timeout keeps the socket and every frame.
	go func() {
		time.Sleep(100 * time.Millisecond)
		<-c.Send
	}()
	hub.Send("s-1", dto.StreamFrame{Type: "delta", Content: "b"})

	assert.Equal(t, 1, hub.ConnectedSessions())
	assert.Equal(t, "b", receive(t, c).Content)
}

func TestSessionContextOutlivesOneTab(t *testing.T) {
	hub := startHub(t)

	a := newClient(hub, nil, "s-1", 1)
	b := newClient(hub, nil, "s-1", 1)
	hub.register <- a
	hub.register <- b
	ctx := hub.sessionContext("s-1")

	hub.unregister <- a
	requireClosed(t, a)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, ctx, hub.sessionContext("s-1"))

	hub.unregister <- b
	require.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 10*time.Millisecond)

	// A later socket of the same session gets a fresh scope.
	assert.NoError(t, hub.sessionContext("s-1").Err())
}

func TestClientReplyOnlyToSelf(t *testing.T) {
	hub := startHub(t)

	a := newClient(hub, nil, "s-1", 2)
	b := newClient(hub, nil, "s-1", 2)
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients["s-1"]) == 2
	}, time.Second, 10*time.Millisecond)

	a.reply(dto.StreamFrame{Type: "error", Error: "bad frame"})

	assert.Equal(t, "bad frame", receive(t, a).Error)
	assert.Len(t, b.Send, 0)
}
