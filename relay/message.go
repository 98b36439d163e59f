// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deskbridge/deskbridge/input"
)

// Wire message types. The tag names are fixed by the browser protocol:
// both dashboards dispatch on the "type" field of every frame.
const (
	// TypeOffer carries an opaque SDP offer from one peer to the other.
	TypeOffer = "webrtc.offer"

	// TypeAnswer carries an opaque SDP answer.
	TypeAnswer = "webrtc.answer"

	// TypeICECandidate carries an opaque ICE candidate.
	TypeICECandidate = "ice_candidate"

	// TypeScreenData carries a mouse or keyboard control command.
	// Never relayed to peers; gated and handed to the input capability.
	TypeScreenData = "screen_data"

	// TypeUserConnected notifies room members that a peer joined.
	// Relay-originated only.
	TypeUserConnected = "user_connected"

	// TypeUserDisconnected notifies room members that a peer left.
	// Relay-originated only.
	TypeUserDisconnected = "user_disconnected"
)

// ErrUnknownType is returned by DecodeEnvelope for a frame whose "type"
// field is not one of the recognized tags. The router logs and drops
// such frames; they are never fatal to the connection.
var ErrUnknownType = errors.New("relay: unknown message type")

// Envelope is the JSON wire format for every signaling frame. One
// struct covers all tags; Decode enforces which fields are required
// for which tag. SDP and ICE payloads are opaque to the relay — they
// are captured as raw JSON and relayed byte-for-byte.
type Envelope struct {
	// Type is the message tag, one of the Type* constants.
	Type string `json:"type"`

	// SenderID is the acting identity, stamped by the relay on every
	// relayed frame. Receivers use it for self-echo suppression.
	// Ignored on inbound frames: identity comes from the session
	// context, never from message content.
	SenderID string `json:"sender_id,omitempty"`

	// RoomID is stamped by the relay on outbound frames.
	RoomID string `json:"room_id,omitempty"`

	// Offer is the opaque SDP blob for TypeOffer.
	Offer json.RawMessage `json:"offer,omitempty"`

	// Answer is the opaque SDP blob for TypeAnswer.
	Answer json.RawMessage `json:"answer,omitempty"`

	// Candidate is the opaque ICE blob for TypeICECandidate.
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Data is the control command for TypeScreenData.
	Data *input.Command `json:"data,omitempty"`

	// UserID identifies the joining or leaving peer for
	// TypeUserConnected and TypeUserDisconnected.
	UserID string `json:"user_id,omitempty"`
}

// DecodeEnvelope parses and structurally validates one inbound frame.
// Validation is shallow: the tag must be recognized and the tag's
// required field must be present. Payload semantics (SDP grammar, ICE
// syntax) are opaque to the relay and never inspected.
//
// A nil error means the envelope is safe to dispatch. Unknown tags
// return [ErrUnknownType]; both decode and validation failures are
// protocol errors that the caller logs and drops without closing the
// connection.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("relay: malformed frame: %w", err)
	}

	switch env.Type {
	case TypeOffer:
		if len(env.Offer) == 0 {
			return Envelope{}, fmt.Errorf("relay: %s frame missing offer", env.Type)
		}
	case TypeAnswer:
		if len(env.Answer) == 0 {
			return Envelope{}, fmt.Errorf("relay: %s frame missing answer", env.Type)
		}
	case TypeICECandidate:
		if len(env.Candidate) == 0 {
			return Envelope{}, fmt.Errorf("relay: %s frame missing candidate", env.Type)
		}
	case TypeScreenData:
		if env.Data == nil {
			return Envelope{}, fmt.Errorf("relay: %s frame missing data", env.Type)
		}
		if err := env.Data.Validate(); err != nil {
			return Envelope{}, fmt.Errorf("relay: %s frame: %w", env.Type, err)
		}
	case TypeUserConnected, TypeUserDisconnected:
		// Relay-originated tags. Recognized so that a client echoing
		// them back is a validation failure, not an unknown tag.
		return Envelope{}, fmt.Errorf("relay: %s is relay-originated, not accepted from peers", env.Type)
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	return env, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("relay: encoding %s envelope: %w", e.Type, err)
	}
	return data, nil
}
