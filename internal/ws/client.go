package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moahnaf11/Messaging-App-Backend/pkg/event"
)

// Fallback connection parameters, used when the server does not override
// them from configuration.
const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultSendBuffer = 192
	maxMessageSize    = 64 * 1024
)

type clientOptions struct {
	writeWait  time.Duration
	pongWait   time.Duration
	sendBuffer int
}

func (o clientOptions) withDefaults() clientOptions {
	if o.writeWait <= 0 {
		o.writeWait = defaultWriteWait
	}
	if o.pongWait <= 0 {
		o.pongWait = defaultPongWait
	}
	if o.sendBuffer <= 0 {
		o.sendBuffer = defaultSendBuffer
	}
	return o
}

/*
client is the live connection handle of one authenticated user.  It owns the
WebSocket connection exclusively; the registry and room indexes hold
non-owning references to it.

The send channel exists because the Gorilla WebSocket library allows only one
concurrent writer per connection: every goroutine that wants to reach this
connection enqueues raw bytes and the write pump drains them sequentially.
The channel is never closed; the write pump stops when done is closed, which
keeps concurrent trySend calls free of send-on-closed-channel panics.
*/
type client struct {
	userID string
	conn   *websocket.Conn
	router *Router
	log    *slog.Logger
	send   chan []byte
	done   chan struct{}
	opts   clientOptions
}

func newClient(userID string, conn *websocket.Conn, router *Router, log *slog.Logger, opts clientOptions) *client {
	opts = opts.withDefaults()
	return &client{
		userID: userID,
		conn:   conn,
		router: router,
		log:    log,
		send:   make(chan []byte, opts.sendBuffer),
		done:   make(chan struct{}),
		opts:   opts,
	}
}

/*
trySend enqueues raw bytes for the write pump without ever blocking the
caller.  Emission is fire-and-forget: a closed connection or a full buffer
drops the frame, which the router treats the same as the recipient being
offline.
*/
func (c *client) trySend(raw []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- raw:
		return true
	default:
		c.log.Warn("send buffer full, dropping frame", "user_id", c.userID)
		return false
	}
}

/*
read decodes envelopes from the connection sequentially (one at a time) and
dispatches each to the router, so events from a single connection are handled
in arrival order.  Any read error ends the connection and triggers the
disconnect lifecycle.
*/
func (c *client) read() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait))
	})

	for {
		var e event.ClientEvent
		if err := c.conn.ReadJSON(&e); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("connection closed unexpectedly",
					"user_id", c.userID, "error", err)
			}
			return
		}
		c.router.Dispatch(context.Background(), c, e)
	}
}

/*
write drains the send channel into the connection and keeps the heartbeat
alive with periodic ping control frames.  Must be running before the client
is connected to the router so that join-time emissions are never lost.
*/
func (c *client) write() {
	pingPeriod := c.opts.pongWait * 9 / 10
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

/*
cleanup runs the disconnect lifecycle exactly once, when the read pump ends.
*/
func (c *client) cleanup() {
	close(c.done)
	c.conn.Close()
	c.router.Disconnect(context.Background(), c)
}
