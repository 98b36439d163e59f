// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Room is a pairing record between two identities plus its lifecycle
// flags. Values are snapshots: once returned to a caller they are
// never mutated by the directory, and callers must re-fetch rather
// than trust a cached copy across time.
type Room struct {
	// RoomID is the opaque unique identifier, also the WebSocket
	// connection target.
	RoomID string

	// CreatorID is the identity that requested the session. The
	// creator is the controller: the party that views and drives the
	// other's screen.
	CreatorID string

	// ReceiverID is the identity being controlled. Only the receiver
	// can accept or reject the session.
	ReceiverID string

	// CreatedAt is when the room was created, UTC.
	CreatedAt time.Time

	// Active is false once the room has ended. There is no way back.
	Active bool

	// Accepted becomes true only through Accept by the receiver, and
	// stays true until the room ends.
	Accepted bool
}

// Participant reports whether identity is one of the room's two
// parties.
func (r Room) Participant(identity string) bool {
	return identity == r.CreatorID || identity == r.ReceiverID
}

// Lifecycle errors. Callers branch on these with errors.Is; the HTTP
// layer maps them to status codes.
var (
	// ErrNotFound means no room with that ID exists.
	ErrNotFound = errors.New("directory: room not found")

	// ErrNotParticipant means the acting identity is neither creator
	// nor receiver of the room.
	ErrNotParticipant = errors.New("directory: identity is not a room participant")

	// ErrNotReceiver means an accept or reject was attempted by an
	// identity other than the room's receiver.
	ErrNotReceiver = errors.New("directory: only the receiver can accept or reject")

	// ErrEnded means the room is no longer active. Ended rooms accept
	// no further transitions.
	ErrEnded = errors.New("directory: room has ended")

	// ErrActiveRoomExists means the participant pair already has an
	// active room, in either orientation.
	ErrActiveRoomExists = errors.New("directory: active room already exists for this pair")
)

// Directory is the authoritative room store. All methods are safe for
// concurrent use.
type Directory interface {
	// Create opens a new Pending room between creator and receiver.
	// Fails with ErrActiveRoomExists when the pair already has an
	// active room in either orientation.
	Create(ctx context.Context, creatorID, receiverID string) (Room, error)

	// ActiveRoom resolves a room for a relay join or a privileged
	// re-validation. Returns false — not an error — when the room
	// does not exist, has ended, or identity is not a participant.
	// The error return is reserved for storage failures.
	ActiveRoom(ctx context.Context, roomID, identity string) (Room, bool, error)

	// ActiveRoomForCreator returns the creator's current active room,
	// if any. Drives the dashboard's "session in progress" view.
	ActiveRoomForCreator(ctx context.Context, creatorID string) (Room, bool, error)

	// Accept marks the room accepted. Only the receiver may accept,
	// and only while the room is active. Accepting an already
	// accepted room is a no-op returning the current record.
	Accept(ctx context.Context, roomID, identity string) (Room, error)

	// Reject ends the room. Only the receiver may reject.
	Reject(ctx context.Context, roomID, identity string) error

	// End ends the room. Either participant may end it. Ending an
	// already ended room is a no-op.
	End(ctx context.Context, roomID, identity string) error
}

// roomIDBytes sizes generated room IDs: 10 random bytes hex-encode to
// a 20-character identifier.
const roomIDBytes = 10

// newRoomID generates a random room identifier. Uniqueness is enforced
// where the room is stored (duplicate-key retry), not here.
func newRoomID() (string, error) {
	buf := make([]byte, roomIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("directory: generating room id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
