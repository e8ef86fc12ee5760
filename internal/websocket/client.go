package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"rag-chatbot-ui/internal/constant"
	"rag-chatbot-ui/internal/dto"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Browser session owning this socket
	SessionId string

	// Buffered channel of outbound messages.
	Send chan []byte

	// Closed by the hub when the client is removed. Send itself is never closed.
	closed chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, sessionId string, buffer int) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		SessionId: sessionId,
		Send:      make(chan []byte, buffer),
		closed:    make(chan struct{}),
	}
}

// enqueue reports false only when the buffer stayed full for timeout. A removed
// client accepts and discards.
func (c *Client) enqueue(data []byte, timeout time.Duration) bool {
	select {
	case c.Send <- data:
		return true
	case <-c.closed:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.Send <- data:
		return true
	case <-c.closed:
		return true
	case <-timer.C:
		return false
	}
}

type inboundFrame struct {
	Content string `json:"content"`
}

// readPump reads chat submissions until the connection closes.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected socket close", map[string]interface{}{"session_id": c.SessionId, "error": err.Error()})
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Content) == "" {
			c.reply(dto.StreamFrame{Type: constant.FrameError, Error: "expected {\"content\": \"...\"}"})
			continue
		}
		if c.Hub.onTurn != nil {
			go c.Hub.onTurn(c.Hub.sessionContext(c.SessionId), c.SessionId, frame.Content)
		}
	}
}

// reply answers this socket only.
func (c *Client) reply(frame dto.StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	for _, registered := range c.Hub.clients[c.SessionId] {
		if registered == c {
			select {
			case c.Send <- data:
			default:
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			// One frame per message; clients parse each as JSON.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
