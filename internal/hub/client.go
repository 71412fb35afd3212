package hub

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// Client is one live socket for one authenticated username in one room.
// readPump/writePump are grounded on the gateway.Connection pattern (a
// dedicated goroutine pair per socket with a buffered outbound channel so a
// slow reader never blocks the broadcaster).
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	Username string
	RoomID   string
	Send     chan []byte
}

func newClient(h *Hub, conn *websocket.Conn, username, roomID string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		Username: username,
		RoomID:   roomID,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// readPump reads inbound frames until the socket closes or errors, dispatching
// each to the Hub's message router. Exactly one readPump runs per Client.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub: read error for %s in room %s: %v", c.Username, c.RoomID, err)
			}
			return
		}
		c.hub.dispatch(c, message)
	}
}

// writePump drains Send and forwards frames to the socket, plus a periodic
// ping to detect dead connections the TCP stack hasn't noticed yet.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeWithReason sends an error frame, closes with the given code, and lets
// readPump's deferred cleanup run.
func (c *Client) closeWithReason(code int, reason string) {
	payload, _ := marshalEnvelope(TypeError, ErrorOut{Message: reason})
	select {
	case c.Send <- payload:
	default:
	}
	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
