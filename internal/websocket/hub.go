package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rag-chatbot-ui/internal/dto"
	"rag-chatbot-ui/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// TurnHandler runs one chat turn submitted over a socket of sessionId.
type TurnHandler func(ctx context.Context, sessionId string, content string)

type Hub struct {
	// Registered clients map: session id -> sockets (tabs) of that browser session
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil on single instance
	rdb        *redis.Client
	instanceId string

	// Turn scopes per session, cancelled once the last socket of the session closes
	scopes  map[string]sessionScope
	baseCtx context.Context

	// How long a frame may wait for room in a client's send buffer
	sendTimeout time.Duration

	onTurn TurnHandler
	logger logger.ILogger
}

type sessionScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type clusterPayload struct {
	Origin          string          `json:"origin"`
	TargetSessionId string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[string][]*Client),
		rdb:         rdb,
		instanceId:  uuid.NewString(),
		scopes:      make(map[string]sessionScope),
		baseCtx:     context.Background(),
		sendTimeout: writeWait,
		logger:      log,
	}
}

// OnTurn sets the handler for content frames. Must be called before Run.
func (h *Hub) OnTurn(handler TurnHandler) {
	h.onTurn = handler
}

func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = append(h.clients[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		}
	}
}

// remove drops client and closes it once. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	clients := h.clients[client.SessionId]
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionId] = append(clients[:i], clients[i+1:]...)
			close(client.closed)
			break
		}
	}
	if len(h.clients[client.SessionId]) == 0 {
		delete(h.clients, client.SessionId)
		if scope, ok := h.scopes[client.SessionId]; ok {
			scope.cancel()
			delete(h.scopes, client.SessionId)
		}
		h.logger.Info("Hub", "Session has no open sockets", map[string]interface{}{"session_id": client.SessionId})
	}
}

// sessionContext scopes turns submitted over any socket of sessionId. Closing one tab
// leaves a running reply to the others; it is cancelled with the last socket.
func (h *Hub) sessionContext(sessionId string) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if scope, ok := h.scopes[sessionId]; ok {
		return scope.ctx
	}
	ctx, cancel := context.WithCancel(h.baseCtx)
	h.scopes[sessionId] = sessionScope{ctx: ctx, cancel: cancel}
	return ctx
}

// Send delivers frame to every socket of sessionId on this and, through Redis, other instances.
func (h *Hub) Send(sessionId string, frame dto.StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(sessionId, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterPayload{
			Origin:          h.instanceId,
			TargetSessionId: sessionId,
			Message:         data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish frame to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliverLocal waits up to sendTimeout per socket; a socket still full after that is dropped.
func (h *Hub) deliverLocal(sessionId string, data []byte) {
	h.mu.RLock()
	targets := append([]*Client(nil), h.clients[sessionId]...)
	h.mu.RUnlock()

	for _, client := range targets {
		if client.enqueue(data, h.sendTimeout) {
			continue
		}
		h.logger.Warn("Hub", "Client Send buffer full, dropping socket", map[string]interface{}{"session_id": sessionId})
		h.mu.Lock()
		h.remove(client)
		h.mu.Unlock()
	}
}

// ConnectedSessions reports how many sessions have at least one open socket.
func (h *Hub) ConnectedSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Every instance subscribes to the shared channel and delivers frames only for the
// sessions it holds sockets for.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceId {
				continue
			}
			h.deliverLocal(payload.TargetSessionId, payload.Message)
		}
	}
}
