package gateway

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer. Each client owns exactly one
// streaming session; closing the connection cancels the session.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	channel string // "signals:{sessionID}"
	cancel  context.CancelFunc
}

// NewClient wires a connection to the hub. cancel tears down the
// session when the peer goes away.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, cancel context.CancelFunc) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		channel: "signals:" + sessionID,
		cancel:  cancel,
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		// Only app-level pings are accepted inbound; everything else
		// about the stream is fixed at connect time.
		var base struct {
			Ping int64 `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}
		if base.Ping > 0 {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// SendError pushes an error envelope to the client. Used for request
// validation failures and session-level faults. Like Deliver, the send
// happens under the hub lock so it can never hit a closed channel.
func SendError(c *Client, msg string) {
	env, _ := json.Marshal(map[string]interface{}{
		"channel": c.channel,
		"error":   msg,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- env:
	default:
	}
}
