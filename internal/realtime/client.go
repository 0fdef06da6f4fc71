package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser origin enforcement happens at the CORS layer; the upgrade
	// itself is gated on a valid access token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection owned by an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	username string
	outbox   chan Event

	// boards the client has joined; guarded by hub.mu.
	boards map[string]struct{}
}

// ServeWS upgrades the request and runs the connection until it closes.
// The caller has already authenticated the user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		userID:   userID,
		username: username,
		outbox:   make(chan Event, sendBuffer),
		boards:   make(map[string]struct{}),
	}

	go client.writePump()
	client.readPump(r)
}

func (c *Client) send(event Event) {
	select {
	case c.outbox <- event:
	default:
		// Slow consumer; drop rather than block the room.
	}
}

func (c *Client) readPump(r *http.Request) {
	defer func() {
		c.hub.disconnect(c)
		close(c.outbox)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read: %v", err)
			}
			return
		}
		c.hub.handleEvent(r.Context(), c, event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
