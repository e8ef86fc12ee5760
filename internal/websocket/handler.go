package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the socket under sessionId and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, sessionId string) {
	client := newClient(hub, c, sessionId, 256)
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
