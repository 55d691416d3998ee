/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"time"

	"github.com/Seednode/pointbox/internal/transport"
	"github.com/gorilla/websocket"
)

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	id       string
	metadata string
}

// readPump forwards data frames to the room until the connection fails.
func (c *client) readPump(r *Room) {
	defer func() {
		r.leave(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(transport.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(transport.PongTimeout))
	})

	for {
		var f transport.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}

		if f.Kind != transport.FrameData {
			continue
		}

		r.broadcast(c, f.Data)
	}
}

// writePump drains c.send until the room closes it.
func (c *client) writePump() {
	ticker := time.NewTicker(transport.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(transport.WriteTimeout))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(transport.WriteTimeout))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
