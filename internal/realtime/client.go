// AngelaMos | 2026
// client.go

package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const maxInboundMessage = 512

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type inbound struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

// readPump handles join requests until the connection fails, then
// unregisters the client.
func (c *Client) readPump(pongWait time.Duration) {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close() //nolint:errcheck // connection already failing
	}()

	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // checked on next read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Action != "join" {
			continue
		}
		g, ok := ParseGroup(msg.Group)
		if !ok {
			continue
		}
		if !c.hub.join(c, g) {
			return
		}
	}
}

// writePump is the only goroutine writing to conn.
func (c *Client) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() //nolint:errcheck // reader sees the close
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaced by the write
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck // best effort
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaced by the write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
