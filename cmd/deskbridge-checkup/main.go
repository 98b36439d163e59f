// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Command deskbridge-checkup verifies a running relay end to end. It
// connects both participants of a room over WebSocket, performs a real
// WebRTC offer/answer and trickle-ICE exchange through the relay, opens
// a data channel, and round-trips a ping. A pass means the full
// signaling path — authentication, room resolution, fan-out, self-echo
// suppression — works the way a browser pair needs it to.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"

	"github.com/deskbridge/deskbridge/lib/version"
	"github.com/deskbridge/deskbridge/relay"
)

const pingBody = "deskbridge-checkup-ping"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "checkup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("checkup passed")
}

func run() error {
	var (
		relayURL      string
		roomID        string
		creatorToken  string
		receiverToken string
		iceServers    []string
		timeout       time.Duration
		showVersion   bool
	)

	pflag.StringVar(&relayURL, "relay-url", "ws://127.0.0.1:8443", "relay base URL (ws:// or wss://)")
	pflag.StringVar(&roomID, "room", "", "room ID to probe (required)")
	pflag.StringVar(&creatorToken, "creator-token", "", "bearer token for the room creator (required)")
	pflag.StringVar(&receiverToken, "receiver-token", "", "bearer token for the room receiver (required)")
	pflag.StringSliceVar(&iceServers, "ice-server", []string{"stun:stun.l.google.com:19302"}, "ICE server URL (repeatable)")
	pflag.DurationVar(&timeout, "timeout", 30*time.Second, "overall probe deadline")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("deskbridge-checkup %s\n", version.Info())
		return nil
	}
	if roomID == "" || creatorToken == "" || receiverToken == "" {
		return fmt.Errorf("--room, --creator-token, and --receiver-token are required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	wsURL := func(token string) string {
		return fmt.Sprintf("%s/ws/%s?token=%s", relayURL, roomID, token)
	}

	// The receiver connects first so the creator's offer has someone
	// to land on — the relay does not queue frames for absent peers.
	answerer, err := dialProbePeer(ctx, "receiver", wsURL(receiverToken), iceServers, logger)
	if err != nil {
		return err
	}
	defer answerer.close()

	offerer, err := dialProbePeer(ctx, "creator", wsURL(creatorToken), iceServers, logger)
	if err != nil {
		return err
	}
	defer offerer.close()

	echoed := make(chan string, 1)

	// Receiver side: answer the offer, echo data channel messages.
	answerer.pc.OnDataChannel(func(channel *webrtc.DataChannel) {
		channel.OnMessage(func(msg webrtc.DataChannelMessage) {
			channel.Send(msg.Data)
		})
	})
	go answerer.readLoop(func(offer webrtc.SessionDescription) {
		if err := answerer.pc.SetRemoteDescription(offer); err != nil {
			answerer.fail(fmt.Errorf("receiver: set remote: %w", err))
			return
		}
		answer, err := answerer.pc.CreateAnswer(nil)
		if err != nil {
			answerer.fail(fmt.Errorf("receiver: create answer: %w", err))
			return
		}
		if err := answerer.pc.SetLocalDescription(answer); err != nil {
			answerer.fail(fmt.Errorf("receiver: set local: %w", err))
			return
		}
		payload, err := json.Marshal(answerer.pc.LocalDescription())
		if err != nil {
			answerer.fail(fmt.Errorf("receiver: encoding answer: %w", err))
			return
		}
		answerer.send(relay.Envelope{Type: relay.TypeAnswer, Answer: payload})
	}, nil)

	// Creator side: open the probe channel and offer.
	channel, err := offerer.pc.CreateDataChannel("checkup", nil)
	if err != nil {
		return fmt.Errorf("creator: creating data channel: %w", err)
	}
	channel.OnOpen(func() {
		if err := channel.SendText(pingBody); err != nil {
			offerer.fail(fmt.Errorf("creator: sending ping: %w", err))
		}
	})
	channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case echoed <- string(msg.Data):
		default:
		}
	})
	go offerer.readLoop(nil, func(answer webrtc.SessionDescription) {
		if err := offerer.pc.SetRemoteDescription(answer); err != nil {
			offerer.fail(fmt.Errorf("creator: set remote: %w", err))
		}
	})

	offer, err := offerer.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creator: create offer: %w", err)
	}
	if err := offerer.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("creator: set local: %w", err)
	}
	payload, err := json.Marshal(offerer.pc.LocalDescription())
	if err != nil {
		return fmt.Errorf("creator: encoding offer: %w", err)
	}
	offerer.send(relay.Envelope{Type: relay.TypeOffer, Offer: payload})

	// Wait for the echo, a fatal error, or the deadline.
	select {
	case body := <-echoed:
		if body != pingBody {
			return fmt.Errorf("echo mismatch: got %q", body)
		}
		logger.Info("data channel echo verified", "room_id", roomID)
		return nil
	case err := <-offerer.errs:
		return err
	case err := <-answerer.errs:
		return err
	case <-ctx.Done():
		return fmt.Errorf("probe did not complete within %v: %w", timeout, ctx.Err())
	}
}
