package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel is served from the same host; restrict this if the panel
	// ever moves behind a separate origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client represents one connected panel client.
type Client struct {
	id   string
	hub  *Hub
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// Handler upgrades the request to a WebSocket connection and starts the
// read/write pumps for the new client.
func Handler(hub *Hub, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Error("Failed to upgrade connection to WebSocket")
			return
		}

		client := &Client{
			id:   uuid.New().String(),
			hub:  hub,
			send: make(chan []byte, 256),
		}

		client.hub.register <- client

		go client.writePump(conn, log)
		go client.readPump(conn, log)

		log.WithField("client_id", client.id).Info("WebSocket connection established")
	}
}

// closeSend closes the outbound channel exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// readPump drains messages from the connection until it closes. Panel
// clients are listen-only; inbound payloads are discarded.
func (c *Client) readPump(conn *websocket.Conn, log *logrus.Logger) {
	defer func() {
		c.hub.unregister <- c
		conn.Close()
		log.WithField("client_id", c.id).Info("WebSocket connection closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Error("WebSocket read error")
			}
			break
		}
	}
}

// writePump pushes hub messages to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump(conn *websocket.Conn, log *logrus.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.WithError(err).Error("Error getting next writer")
				return
			}
			w.Write(message)

			// Flush any queued messages into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				log.WithError(err).Error("Error closing writer")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
