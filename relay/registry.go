// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

// shardCount sizes the registry's lock striping. Rooms hash onto
// shards so that fan-out in one room never serializes against joins
// in an unrelated room. Sixteen shards is plenty for a single-process
// relay: contention is per-room, and rooms hold exactly two
// connections.
const shardCount = 16

// Sink is the send side of a registered connection. Deliver must not
// block: implementations enqueue onto a bounded outbound queue (the
// WebSocket write pump) or an in-process channel. A Deliver error
// affects only that recipient — the registry logs it and moves on.
type Sink interface {
	Deliver(env Envelope) error
}

// Registration is the handle returned by Join and consumed by Leave
// and the exclude parameter of Broadcast. It pins the connection's
// room, identity, and sink for the duration of membership.
type Registration struct {
	roomID   string
	identity string
	sink     Sink
	joinedAt time.Time
}

// Identity returns the identity the connection joined under.
func (r *Registration) Identity() string { return r.identity }

// RoomID returns the room the connection is registered in.
func (r *Registration) RoomID() string { return r.roomID }

// JoinedAt returns when the connection completed Join.
func (r *Registration) JoinedAt() time.Time { return r.joinedAt }

// Registry is the in-memory table of live connections grouped by room.
// It is the single shared mutable structure in the relay; every access
// goes through one of the per-shard mutexes, and no operation touches
// more than one shard.
//
// Visibility invariant: a connection receives broadcasts exactly
// between the return of Join and the call to Leave. Broadcast holds
// the shard's read lock for the duration of fan-out, so it can never
// observe a half-joined or half-left room.
type Registry struct {
	logger *slog.Logger
	shards [shardCount]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	rooms map[string][]*Registration
}

// NewRegistry creates an empty registry. A nil logger discards
// delivery-failure messages.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := &Registry{logger: logger}
	for i := range registry.shards {
		registry.shards[i].rooms = make(map[string][]*Registration)
	}
	return registry
}

// shard maps a room ID onto its lock stripe.
func (r *Registry) shard(roomID string) *registryShard {
	hash := fnv.New32a()
	hash.Write([]byte(roomID))
	return &r.shards[hash.Sum32()%shardCount]
}

// Join registers a connection under roomID and returns its handle.
// The connection is visible to Broadcast from the moment Join returns.
//
// Join also performs the presence exchange, atomically with the
// registration itself: every existing member is told the newcomer
// connected, and the newcomer is told about every existing member.
// Doing this under the shard lock is what makes the guarantee hold
// under concurrent joins — a notification broadcast after Join
// returns could land in the window where the other connection is not
// yet registered, and one side would never learn the other exists.
func (r *Registry) Join(roomID, identity string, sink Sink) *Registration {
	registration := &Registration{
		roomID:   roomID,
		identity: identity,
		sink:     sink,
		joinedAt: time.Now().UTC(),
	}

	shard := r.shard(roomID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	for _, member := range shard.rooms[roomID] {
		r.deliver(member, Envelope{
			Type:     TypeUserConnected,
			SenderID: identity,
			UserID:   identity,
			RoomID:   roomID,
		})
		r.deliver(registration, Envelope{
			Type:     TypeUserConnected,
			SenderID: member.identity,
			UserID:   member.identity,
			RoomID:   roomID,
		})
	}
	shard.rooms[roomID] = append(shard.rooms[roomID], registration)

	return registration
}

// deliver pushes one envelope to one member, logging rather than
// propagating failure.
func (r *Registry) deliver(member *Registration, env Envelope) {
	if err := member.sink.Deliver(env); err != nil {
		r.logger.Warn("delivery failed",
			"room_id", member.roomID,
			"recipient", member.identity,
			"message_type", env.Type,
			"error", err,
		)
	}
}

// Leave removes a registration. Idempotent: leaving twice, or leaving
// a registration the registry never saw, is a no-op.
func (r *Registry) Leave(registration *Registration) {
	if registration == nil {
		return
	}

	shard := r.shard(registration.roomID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	members := shard.rooms[registration.roomID]
	for i, member := range members {
		if member == registration {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(shard.rooms, registration.roomID)
	} else {
		shard.rooms[registration.roomID] = members
	}
}

// Broadcast delivers env to every connection registered under roomID
// except exclude (pass nil to deliver to all). Delivery is per-member
// best-effort: a failed or refused delivery is logged and the fan-out
// continues; the caller never learns about individual failures.
//
// Within a room, broadcasts made by one goroutine reach each member's
// sink in call order — the shard lock serializes fan-outs, and sinks
// enqueue FIFO.
func (r *Registry) Broadcast(roomID string, env Envelope, exclude *Registration) {
	shard := r.shard(roomID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	for _, member := range shard.rooms[roomID] {
		if member == exclude {
			continue
		}
		r.deliver(member, env)
	}
}

// Members returns the identities currently registered under roomID.
// Diagnostic only; the slice is a snapshot.
func (r *Registry) Members(roomID string) []string {
	shard := r.shard(roomID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	members := shard.rooms[roomID]
	identities := make([]string, 0, len(members))
	for _, member := range members {
		identities = append(identities, member.identity)
	}
	return identities
}
