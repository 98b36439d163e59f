// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskbridge/deskbridge/relay"
)

const (
	// writeWait is the time allowed to write one message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong. A peer that
	// stops answering pings is dead; the read deadline tears it down.
	pongWait = 60 * time.Second

	// pingPeriod is the ping interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames. 64 KB comfortably fits
	// SDP blobs, which are the largest thing a peer legitimately sends.
	maxMessageSize = 64 * 1024

	// outboundQueueSize bounds the per-connection send queue. When a
	// peer reads slower than its partner signals, overflow drops
	// frames for that peer only.
	outboundQueueSize = 256
)

// errOutboundFull is the per-recipient delivery failure for a peer
// whose send queue is saturated.
var errOutboundFull = errors.New("httpapi: outbound queue full")

// errTransportClosed is returned by Send after the transport closes.
var errTransportClosed = errors.New("httpapi: transport closed")

// Compile-time interface check.
var _ relay.Transport = (*wsTransport)(nil)

// wsTransport adapts a gorilla WebSocket connection to relay.Transport.
// Reads happen on the router's goroutine; writes are serialized by a
// dedicated write pump so that registry fan-outs from many rooms never
// interleave writes on one socket.
type wsTransport struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	outbound chan relay.Envelope

	closed    chan struct{}
	closeOnce sync.Once
}

// newWSTransport wraps an upgraded connection and starts its write
// pump. The caller owns reads via Read.
func newWSTransport(conn *websocket.Conn, logger *slog.Logger) *wsTransport {
	transport := &wsTransport{
		conn:     conn,
		logger:   logger,
		outbound: make(chan relay.Envelope, outboundQueueSize),
		closed:   make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go transport.writePump()
	return transport
}

// Read implements relay.Transport. Returns the next text frame, or an
// error once the connection is gone.
func (t *wsTransport) Read() ([]byte, error) {
	for {
		messageType, payload, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Debug("websocket read error", "error", err)
			}
			return nil, err
		}
		if messageType != websocket.TextMessage {
			// Binary frames are not part of the protocol; skip them
			// without charging the peer a connection.
			continue
		}
		return payload, nil
	}
}

// Send implements relay.Transport: non-blocking enqueue onto the write
// pump. A full queue is this recipient's problem alone.
func (t *wsTransport) Send(env relay.Envelope) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	select {
	case t.outbound <- env:
		return nil
	default:
		return errOutboundFull
	}
}

// Close implements relay.Transport. Idempotent; unblocks Read.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		// Best-effort close frame so browsers see a clean shutdown
		// rather than an aborted connection.
		deadline := time.Now().Add(writeWait)
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.conn.Close()
	})
	return nil
}

// writePump serializes all writes: queued envelopes and liveness
// pings. Exits when the transport closes or a write fails, closing
// the transport either way.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.Close()
	}()

	for {
		select {
		case <-t.closed:
			return

		case env := <-t.outbound:
			payload, err := env.Encode()
			if err != nil {
				t.logger.Error("dropping unencodable envelope", "type", env.Type, "error", err)
				continue
			}
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				t.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWS authenticates, authorizes, upgrades, and runs a router for
// the connection's lifetime. Authorization failures are HTTP errors
// before the upgrade: a refused peer never completes the WebSocket
// handshake, so no partial join is ever observable.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	roomID := r.PathValue("room")
	_, ok, err := s.directory.ActiveRoom(r.Context(), roomID, identity)
	if err != nil {
		s.logger.Error("room lookup failed", "room_id", roomID, "error", err)
		http.Error(w, "directory unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "no active room for this identity", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}

	transport := newWSTransport(conn, s.logger.With("room_id", roomID, "identity", identity))
	router := relay.NewRouter(relay.RouterConfig{
		RoomID:    roomID,
		Identity:  identity,
		Transport: transport,
		Rooms:     s.directory,
		Registry:  s.registry,
		Input:     s.input,
		Logger:    s.logger,
	})

	// Run blocks for the connection's lifetime. The request context
	// descends from the serve context (BaseContext), so server
	// shutdown cancels it and the router closes the socket. The
	// directory re-check inside Run covers the window between the
	// pre-upgrade check and the join.
	if err := router.Run(r.Context()); err != nil && !errors.Is(err, relay.ErrNotAuthorized) {
		s.logger.Error("router terminated abnormally",
			"room_id", roomID,
			"identity", identity,
			"error", err,
		)
	}
}
