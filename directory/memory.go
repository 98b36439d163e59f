// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Directory = (*MemoryDirectory)(nil)

// MemoryDirectory is an in-process Directory for tests and
// single-binary demos. Rooms live in a map guarded by one mutex;
// the store is small (one row per live pairing) so there is nothing
// to shard.
type MemoryDirectory struct {
	mu    sync.Mutex
	rooms map[string]Room
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		rooms: make(map[string]Room),
	}
}

func (d *MemoryDirectory) Create(_ context.Context, creatorID, receiverID string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, room := range d.rooms {
		if !room.Active {
			continue
		}
		samePair := (room.CreatorID == creatorID && room.ReceiverID == receiverID) ||
			(room.CreatorID == receiverID && room.ReceiverID == creatorID)
		if samePair {
			return Room{}, ErrActiveRoomExists
		}
	}

	var roomID string
	for {
		id, err := newRoomID()
		if err != nil {
			return Room{}, err
		}
		if _, exists := d.rooms[id]; !exists {
			roomID = id
			break
		}
	}

	room := Room{
		RoomID:     roomID,
		CreatorID:  creatorID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now().UTC(),
		Active:     true,
	}
	d.rooms[roomID] = room
	return room, nil
}

func (d *MemoryDirectory) ActiveRoom(_ context.Context, roomID, identity string) (Room, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, exists := d.rooms[roomID]
	if !exists || !room.Active || !room.Participant(identity) {
		return Room{}, false, nil
	}
	return room, true, nil
}

func (d *MemoryDirectory) ActiveRoomForCreator(_ context.Context, creatorID string) (Room, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, room := range d.rooms {
		if room.Active && room.CreatorID == creatorID {
			return room, true, nil
		}
	}
	return Room{}, false, nil
}

func (d *MemoryDirectory) Accept(_ context.Context, roomID, identity string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, exists := d.rooms[roomID]
	switch {
	case !exists:
		return Room{}, ErrNotFound
	case !room.Participant(identity):
		return Room{}, ErrNotParticipant
	case identity != room.ReceiverID:
		return Room{}, ErrNotReceiver
	case !room.Active:
		return Room{}, ErrEnded
	}

	room.Accepted = true
	d.rooms[roomID] = room
	return room, nil
}

func (d *MemoryDirectory) Reject(_ context.Context, roomID, identity string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, exists := d.rooms[roomID]
	switch {
	case !exists:
		return ErrNotFound
	case !room.Participant(identity):
		return ErrNotParticipant
	case identity != room.ReceiverID:
		return ErrNotReceiver
	case !room.Active:
		return ErrEnded
	}

	room.Active = false
	d.rooms[roomID] = room
	return nil
}

func (d *MemoryDirectory) End(_ context.Context, roomID, identity string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, exists := d.rooms[roomID]
	switch {
	case !exists:
		return ErrNotFound
	case !room.Participant(identity):
		return ErrNotParticipant
	case !room.Active:
		return nil // ending twice is fine
	}

	room.Active = false
	room.Accepted = false
	d.rooms[roomID] = room
	return nil
}
