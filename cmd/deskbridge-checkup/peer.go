// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/deskbridge/deskbridge/relay"
)

// probePeer is one side of the checkup session: a WebSocket to the
// relay plus a pion PeerConnection. It speaks the same envelope
// protocol a browser does, so a passing checkup means a browser pair
// would negotiate too.
type probePeer struct {
	name   string
	logger *slog.Logger

	conn *websocket.Conn
	pc   *webrtc.PeerConnection

	// writeMu serializes WebSocket writes: trickle-ICE callbacks and
	// the offer/answer flow race otherwise.
	writeMu sync.Mutex

	// errs receives the first fatal error from any goroutine.
	errs chan error
}

// dialProbePeer connects one identity to the relay and wires a
// PeerConnection that trickles ICE candidates through it.
func dialProbePeer(ctx context.Context, name, wsURL string, iceServers []string, logger *slog.Logger) (*probePeer, error) {
	conn, response, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("%s: relay refused connection (HTTP %d): %w", name, response.StatusCode, err)
		}
		return nil, fmt.Errorf("%s: dialing relay: %w", name, err)
	}

	var ice []webrtc.ICEServer
	for _, url := range iceServers {
		ice = append(ice, webrtc.ICEServer{URLs: []string{url}})
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: ice})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: creating peer connection: %w", name, err)
	}

	peer := &probePeer{
		name:   name,
		logger: logger.With("peer", name),
		conn:   conn,
		pc:     pc,
		errs:   make(chan error, 8),
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return // gathering complete
		}
		payload, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			peer.fail(fmt.Errorf("%s: encoding candidate: %w", name, err))
			return
		}
		peer.send(relay.Envelope{Type: relay.TypeICECandidate, Candidate: payload})
	})

	return peer, nil
}

// send writes one envelope to the relay.
func (p *probePeer) send(env relay.Envelope) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteJSON(env); err != nil {
		p.fail(fmt.Errorf("%s: writing %s: %w", p.name, env.Type, err))
	}
}

// fail reports a fatal error without blocking.
func (p *probePeer) fail(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

// close releases both the socket and the peer connection.
func (p *probePeer) close() {
	p.conn.Close()
	p.pc.Close()
}

// readLoop decodes relayed envelopes and applies them to the
// PeerConnection. Peer-presence notifications are logged; everything
// else feeds the negotiation. onOffer is nil on the offering side.
func (p *probePeer) readLoop(onOffer func(webrtc.SessionDescription), onAnswer func(webrtc.SessionDescription)) {
	for {
		var env relay.Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			p.fail(fmt.Errorf("%s: read: %w", p.name, err))
			return
		}

		switch env.Type {
		case relay.TypeOffer:
			var description webrtc.SessionDescription
			if err := json.Unmarshal(env.Offer, &description); err != nil {
				p.fail(fmt.Errorf("%s: decoding offer: %w", p.name, err))
				return
			}
			if onOffer != nil {
				onOffer(description)
			}

		case relay.TypeAnswer:
			var description webrtc.SessionDescription
			if err := json.Unmarshal(env.Answer, &description); err != nil {
				p.fail(fmt.Errorf("%s: decoding answer: %w", p.name, err))
				return
			}
			if onAnswer != nil {
				onAnswer(description)
			}

		case relay.TypeICECandidate:
			var candidate webrtc.ICECandidateInit
			if err := json.Unmarshal(env.Candidate, &candidate); err != nil {
				p.fail(fmt.Errorf("%s: decoding candidate: %w", p.name, err))
				return
			}
			if err := p.pc.AddICECandidate(candidate); err != nil {
				p.fail(fmt.Errorf("%s: adding candidate: %w", p.name, err))
				return
			}

		case relay.TypeUserConnected, relay.TypeUserDisconnected:
			p.logger.Info("peer presence", "type", env.Type, "user_id", env.UserID)

		default:
			p.logger.Warn("unexpected envelope", "type", env.Type)
		}
	}
}
