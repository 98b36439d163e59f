// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/deskbridge/deskbridge/input"
)

// ErrNotAuthorized is returned by Run when the connection target does
// not resolve to an active room with the acting identity as a
// participant. The connection is closed before any group membership
// becomes observable — there is no partial join.
var ErrNotAuthorized = errors.New("relay: identity not authorized for room")

// State is the router's connection lifecycle position.
type State int32

const (
	// StateConnecting is the initial state: transport handshake done,
	// Run not yet called.
	StateConnecting State = iota

	// StateAuthorizing means the router is resolving the room and
	// verifying the identity against the directory.
	StateAuthorizing

	// StateJoined means the connection is registered and relaying.
	StateJoined

	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Router drives one connection through its lifecycle: authorize the
// identity against the directory, join the registry, relay signaling
// frames, gate control commands, and tear down exactly once on any
// exit path.
//
// A Router is also the connection's [Sink]: the registry fans peer
// messages into Deliver, which applies payload-level self-echo
// suppression before forwarding to the transport.
type Router struct {
	roomID    string
	identity  string
	transport Transport
	rooms     RoomSource
	registry  *Registry
	inputSink InputSink
	logger    *slog.Logger

	state atomic.Int32

	// registration is set once the Joined state is reached and
	// consumed by teardown. Only the Run goroutine touches it.
	registration *Registration

	teardownOnce sync.Once
}

// Compile-time interface check.
var _ Sink = (*Router)(nil)

// RouterConfig configures a Router. All fields are required except
// Input, which may be nil when the deployment has no injection
// backend (control commands are then denied at dispatch).
type RouterConfig struct {
	// RoomID is the connection target, taken from the transport path.
	RoomID string

	// Identity is the acting user, taken from the authenticated
	// session context. Never derived from message content.
	Identity string

	// Transport is the connection's frame stream.
	Transport Transport

	// Rooms resolves and re-validates room snapshots.
	Rooms RoomSource

	// Registry is the shared connection table.
	Registry *Registry

	// Input receives gate-approved control commands.
	Input InputSink

	// Logger receives per-connection operational messages.
	Logger *slog.Logger
}

// NewRouter creates a router in the Connecting state. Call Run to
// drive it.
func NewRouter(config RouterConfig) *Router {
	if config.RoomID == "" {
		panic("relay.Router: RoomID is required")
	}
	if config.Identity == "" {
		panic("relay.Router: Identity is required")
	}
	if config.Transport == nil {
		panic("relay.Router: Transport is required")
	}
	if config.Rooms == nil {
		panic("relay.Router: Rooms is required")
	}
	if config.Registry == nil {
		panic("relay.Router: Registry is required")
	}
	if config.Logger == nil {
		panic("relay.Router: Logger is required")
	}

	return &Router{
		roomID:    config.RoomID,
		identity:  config.Identity,
		transport: config.Transport,
		rooms:     config.Rooms,
		registry:  config.Registry,
		inputSink: config.Input,
		logger: config.Logger.With(
			"room_id", config.RoomID,
			"identity", config.Identity,
		),
	}
}

// State returns the router's current lifecycle state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Run authorizes the connection, joins the room, and relays until the
// transport closes or ctx is cancelled. It returns ErrNotAuthorized
// when the join is refused, a wrapped error on directory failure, and
// nil on a normal session (teardown errors are logged, never
// returned). Run must be called exactly once.
func (r *Router) Run(ctx context.Context) error {
	r.state.Store(int32(StateAuthorizing))

	room, ok, err := r.rooms.ActiveRoom(ctx, r.roomID, r.identity)
	if err != nil {
		r.state.Store(int32(StateClosed))
		r.closeTransport()
		return fmt.Errorf("relay: resolving room: %w", err)
	}
	if !ok {
		r.state.Store(int32(StateClosed))
		r.closeTransport()
		r.logger.Warn("join refused: no active room for identity")
		return ErrNotAuthorized
	}

	// Join performs the presence exchange: peers already in the room
	// are told this identity connected, and this connection is told
	// about each of them, atomically with the registration.
	r.registration = r.registry.Join(r.roomID, r.identity, r)
	r.state.Store(int32(StateJoined))
	r.logger.Info("peer joined room",
		"accepted", room.Accepted,
		"members", len(r.registry.Members(r.roomID)),
	)

	defer r.teardown()

	// Cancellation closes the transport, which unblocks Read. The
	// read loop itself has no other exit hatch.
	stopWatch := context.AfterFunc(ctx, func() {
		r.closeTransport()
	})
	defer stopWatch()

	for {
		frame, err := r.transport.Read()
		if err != nil {
			// Peer hung up, transport failed, or shutdown. All of
			// them end this connection and nothing else.
			return nil
		}
		r.dispatch(ctx, frame)
	}
}

// dispatch routes one validated inbound frame. Protocol errors are
// logged and dropped; the connection stays open.
func (r *Router) dispatch(ctx context.Context, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		r.logger.Warn("dropping invalid frame", "error", err)
		return
	}

	switch env.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		// Relayed verbatim. The stamp overwrites anything the client
		// put in sender_id — identity comes from the session, not
		// from message content.
		env.SenderID = r.identity
		env.RoomID = r.roomID
		r.registry.Broadcast(r.roomID, env, r.registration)

	case TypeScreenData:
		r.handleControl(ctx, *env.Data)
	}
}

// handleControl gates one control command against a fresh room
// snapshot. The snapshot cached at join time is useless here: the
// receiver may have accepted (or the room ended) at any point since.
func (r *Router) handleControl(ctx context.Context, cmd input.Command) {
	snapshot, ok, err := r.rooms.ActiveRoom(ctx, r.roomID, r.identity)
	if err != nil {
		// Directory failure: deny. Dropping a command is recoverable;
		// injecting input on stale consent is not.
		r.logger.Error("room re-validation failed, denying command", "error", err)
		return
	}
	if !ok || !Authorized(snapshot, r.identity, cmd.Kind) {
		r.logger.Warn("control command denied",
			"kind", cmd.Kind,
			"action", cmd.Action,
		)
		return
	}
	if r.inputSink == nil {
		r.logger.Warn("control command authorized but no input backend configured")
		return
	}
	r.inputSink.Enqueue(cmd)
}

// Deliver implements Sink. It applies payload-level self-echo
// suppression: the registry already excludes the sender's
// registration handle, but the sender_id check also holds in
// topologies where exclusion by handle is unavailable, and it covers
// relay-originated peer notifications keyed by user_id.
func (r *Router) Deliver(env Envelope) error {
	if env.SenderID == r.identity {
		return nil
	}
	switch env.Type {
	case TypeUserConnected, TypeUserDisconnected:
		if env.UserID == r.identity {
			return nil
		}
	}
	return r.transport.Send(env)
}

// Close terminates the connection from outside the Run loop. The
// transport close unblocks Read, and Run performs the teardown.
func (r *Router) Close() {
	r.closeTransport()
}

// teardown leaves the registry, notifies the remaining members, and
// closes the transport — exactly once, regardless of how many exit
// paths race here. Errors during teardown are logged, never
// propagated.
func (r *Router) teardown() {
	r.teardownOnce.Do(func() {
		r.registry.Leave(r.registration)
		r.registry.Broadcast(r.roomID, Envelope{
			Type:     TypeUserDisconnected,
			SenderID: r.identity,
			UserID:   r.identity,
			RoomID:   r.roomID,
		}, r.registration)
		r.state.Store(int32(StateClosed))
		r.closeTransport()
		r.logger.Info("peer left room")
	})
}

// closeTransport closes the transport, logging rather than returning
// any error: close failures have no one useful to report to.
func (r *Router) closeTransport() {
	if err := r.transport.Close(); err != nil {
		r.logger.Debug("transport close", "error", err)
	}
}
