// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskbridge/deskbridge/directory"
	"github.com/deskbridge/deskbridge/relay"
)

// Server serves the WebSocket signaling endpoint and the room API on
// one TCP listener. It manages listener lifecycle and graceful
// shutdown; request routing is a stdlib mux built at construction.
type Server struct {
	address         string
	directory       directory.Directory
	registry        *relay.Registry
	input           relay.InputSink
	authenticator   Authenticator
	logger          *slog.Logger
	upgrader        websocket.Upgrader
	handler         http.Handler
	shutdownTimeout time.Duration

	// ready is closed after the listener is bound and the server
	// is accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available after ready
	// is closed.
	addr net.Addr
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address is the TCP listen address (e.g., ":8443"). Required.
	Address string

	// Directory is the room store. Required.
	Directory directory.Directory

	// Registry is the shared connection table. Required.
	Registry *relay.Registry

	// Input receives gate-approved control commands. Optional; when
	// nil, authorized commands are logged and discarded by the router.
	Input relay.InputSink

	// Authenticator resolves tokens to identities. Required.
	Authenticator Authenticator

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty means any origin — acceptable behind a reverse proxy
	// that pins origins, wrong on a bare internet listener.
	AllowedOrigins []string

	// ShutdownTimeout is the maximum time to wait for in-flight
	// requests during graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewServer creates a server. Call Serve to bind and run.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		panic("httpapi.Server: Address is required")
	}
	if config.Directory == nil {
		panic("httpapi.Server: Directory is required")
	}
	if config.Registry == nil {
		panic("httpapi.Server: Registry is required")
	}
	if config.Authenticator == nil {
		panic("httpapi.Server: Authenticator is required")
	}
	if config.Logger == nil {
		panic("httpapi.Server: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	server := &Server{
		address:         config.Address,
		directory:       config.Directory,
		registry:        config.Registry,
		input:           config.Input,
		authenticator:   config.Authenticator,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{room}", server.handleWS)
	mux.HandleFunc("POST /rooms", server.handleCreateRoom)
	mux.HandleFunc("GET /rooms/active", server.handleActiveRoom)
	mux.HandleFunc("POST /rooms/{room}/accept", server.handleAcceptRoom)
	mux.HandleFunc("POST /rooms/{room}/reject", server.handleRejectRoom)
	mux.HandleFunc("POST /rooms/{room}/end", server.handleEndRoom)
	server.handler = mux

	return server
}

// originChecker builds the upgrader's origin policy. An empty allow
// list admits everything; otherwise the Origin header must match an
// entry exactly.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}

// Ready returns a channel that is closed once the server is bound
// and accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed. Useful when the configured address uses port 0 — the
// resolved address contains the actual port.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve starts accepting connections. Blocks until ctx is cancelled,
// then performs graceful shutdown: new connections stop, in-flight
// requests get ShutdownTimeout to finish, and live WebSockets are
// closed through their routers because every request context descends
// from ctx.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("httpapi: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,

		// Request contexts descend from the serve context so that
		// shutdown reaches long-lived WebSocket handlers, which
		// http.Server.Shutdown deliberately ignores (hijacked
		// connections are the handler's problem).
		BaseContext: func(net.Listener) context.Context { return ctx },

		// Header/read timeouts protect against slow clients on the
		// room API. They do not apply to hijacked WebSockets, whose
		// liveness is the ping/pong loop's job.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("relay server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("relay server shutting down")
	case err := <-serveDone:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("relay server shutdown error", "error", err)
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}

	s.logger.Info("relay server stopped")
	return nil
}
