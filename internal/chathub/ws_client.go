package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"stringchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // SDP blobs can run to tens of KB
)

// WebSocketClient implements Client over a gorilla/websocket
// connection.
type WebSocketClient struct {
	AnonID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.Envelope

	closeOnce sync.Once
}

func (c *WebSocketClient) GetAnonID() string                      { return c.AnonID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Envelope { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the write pump. The read
// pump stops when the connection is closed in the pump's defer.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump validates incoming frames against the closed event set and
// forwards them to the hub. Malformed or unknown input is dropped
// silently; nothing is surfaced to the sender.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "anonID", c.AnonID, "err", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Debug("dropping malformed frame", "anonID", c.AnonID, "err", err)
			continue
		}
		if !models.ValidClientEvent(env.Event) {
			slog.Debug("dropping unknown event", "anonID", c.AnonID, "event", env.Event)
			continue
		}

		c.Hub.IncomingCh <- InboundEvent{Client: c, Env: env}
	}
}

// writePump drains the Send channel into the socket and keeps the
// connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the hub.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("encode failed", "anonID", c.AnonID, "event", env.Event, "err", err)
				continue
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// Drain whatever else is queued.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				extra, err := json.Marshal(next)
				if err != nil {
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
