// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the network surface of the relay: the WebSocket
// signaling endpoint and the JSON room-lifecycle API.
//
// GET /ws/{room} authenticates the caller, verifies room membership
// against the directory, and only then upgrades to a WebSocket. A
// refused join is an HTTP error before the upgrade — the handshake is
// never accepted for a connection that would not reach the Joined
// state. Each accepted socket gets a [relay.Router] over a transport
// with separate read and write pumps, ping/pong liveness deadlines,
// and a read limit sized for SDP payloads.
//
// POST /rooms, POST /rooms/{room}/accept, POST /rooms/{room}/reject,
// POST /rooms/{room}/end, and GET /rooms/active drive the room
// lifecycle. Accept and Reject are receiver-only; End is open to
// either participant. Directory errors map onto status codes
// (ErrNotFound → 404, ErrNotParticipant/ErrNotReceiver → 403,
// ErrEnded → 409, ErrActiveRoomExists → 409).
//
// Authentication is a boundary, not an implementation: the
// [Authenticator] interface resolves a bearer token to an identity,
// and account management lives outside this system. The shipped
// [StaticTokenAuthenticator] is a constant-time token table for
// deployments where identities are provisioned out of band. Browsers
// cannot set headers on WebSocket dials, so the token is also accepted
// as a query parameter on the /ws endpoint.
//
// [Server] owns the listener lifecycle: bind, Ready channel, graceful
// shutdown with a timeout once the context is cancelled.
package httpapi
