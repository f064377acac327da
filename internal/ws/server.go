package ws

import (
	"log/slog"
	"net/http"
	"time"
)

// ServerOptions tune per-connection transport behaviour.
type ServerOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	SendBufferSize int
}

/*
Server accepts authenticated WebSocket connections and hands them to the
router.  One Server owns one Router; the HTTP mux decides the path.
*/
type Server struct {
	router *Router
	log    *slog.Logger
	opts   ServerOptions
}

func NewServer(router *Router, log *slog.Logger, opts ServerOptions) *Server {
	return &Server{router: router, log: log, opts: opts}
}

// Router returns the server's event router.
func (s *Server) Router() *Router { return s.router }

/*
HandleConnection upgrades the request and starts the connection lifecycle.
It must sit behind Authorize, which put the verified user id into the
context.

The write pump starts before Connect so that join-time emissions have
somewhere to go; the read pump starts after Connect so that no inbound event
is dispatched until every group room is joined (join-before-ready).
*/
func (s *Server) HandleConnection(rw http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		http.Error(rw, "Sign in to start chatting.", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := newClient(userID, conn, s.router, s.log, clientOptions{
		writeWait:  s.opts.WriteWait,
		pongWait:   s.opts.PongWait,
		sendBuffer: s.opts.SendBufferSize,
	})

	go c.write()

	if err := s.router.Connect(r.Context(), c); err != nil {
		s.log.Error("connect lifecycle failed", "user_id", userID, "error", err)
		s.router.rooms.Drop(c)
		s.router.registry.Unregister(c)
		close(c.done)
		conn.Close()
		return
	}

	go c.read()
}
