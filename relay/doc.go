// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the signaling core of Deskbridge: it brokers WebRTC
// negotiation between the two parties of a remote-desktop session and
// gates input-injection commands behind the room's consent state.
//
// The package defines three cooperating pieces. [Registry] is the
// shared connection table: a sharded map from room ID to the set of
// live connections, supporting join, leave, and best-effort fan-out
// that excludes the sender. [Router] runs one instance per connection;
// it owns the connection's state machine (Connecting → Authorizing →
// Joined → Closed), validates and dispatches inbound frames, and
// relays peer frames from the registry back out to its transport.
// [Authorized] is the access-control gate: a pure predicate deciding
// whether a control command may execute given the room snapshot and
// the acting identity.
//
// Signaling payloads (SDP offers and answers, ICE candidates) are
// opaque: the relay stamps sender_id and room_id onto the envelope and
// forwards the payload byte-for-byte. Control commands never reach
// peers — they pass the gate and are handed to the input capability,
// off the relay's critical path.
//
// Fault containment is the organizing principle. A malformed frame is
// logged and dropped, never fatal. A denied command is logged and
// dropped — legitimate UI races produce stray attempts, so denial is
// not a protocol violation. A failed delivery to one room member never
// aborts delivery to the rest. The worst-case blast radius of any
// single fault is one connection.
//
// The transport behind a connection is abstracted by [Transport]; the
// production implementation is a WebSocket in package httpapi, and
// tests drive routers through in-process channel transports.
package relay
