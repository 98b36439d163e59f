// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"

	"github.com/deskbridge/deskbridge/directory"
	"github.com/deskbridge/deskbridge/input"
)

// Transport is one peer's connection as the router sees it. The
// production implementation is a WebSocket with read and write pumps
// (package httpapi); tests use in-process channel transports.
type Transport interface {
	// Read blocks until the next inbound frame arrives and returns
	// its raw bytes. Returns an error once the transport is closed —
	// by the peer, by a transport-level failure, or by Close. This is
	// the only unbounded wait in the relay; Close from another
	// goroutine must unblock it.
	Read() ([]byte, error)

	// Send enqueues an outbound envelope without blocking. Returns an
	// error when the outbound queue is full or the transport has
	// closed; the caller treats either as a per-recipient delivery
	// failure, never as a reason to tear anything down.
	Send(env Envelope) error

	// Close tears the connection down and unblocks Read. Idempotent.
	Close() error
}

// RoomSource is the slice of the session directory the router
// consumes: snapshot resolution at join time and re-validation before
// privileged actions. Implemented by directory.MemoryDirectory and
// directory.SQLiteDirectory.
type RoomSource interface {
	ActiveRoom(ctx context.Context, roomID, identity string) (directory.Room, bool, error)
}

// InputSink accepts gate-approved control commands for execution off
// the relay's critical path. Implemented by input.Injector.
type InputSink interface {
	Enqueue(cmd input.Command)
}
