// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deskbridge/deskbridge/directory"
	"github.com/deskbridge/deskbridge/input"
	"github.com/deskbridge/deskbridge/lib/testutil"
	"github.com/deskbridge/deskbridge/relay"
)

// testTokens maps the fixed credentials the test server provisions.
var testTokens = map[string]string{
	"tok-u1": "u1",
	"tok-u2": "u2",
	"tok-u3": "u3",
}

// testInput captures commands routed to the input capability.
type testInput struct {
	commands chan input.Command
}

func newTestInput() *testInput {
	return &testInput{commands: make(chan input.Command, 64)}
}

func (i *testInput) Enqueue(cmd input.Command) { i.commands <- cmd }

// testServer is one running relay server bound to an ephemeral port.
type testServer struct {
	server    *Server
	directory directory.Directory
	input     *testInput
	baseURL   string
	wsURL     string

	// stop shuts the server down and reports Serve's result. Safe to
	// call more than once; the test cleanup always calls it.
	stop func() error
}

// startTestServer boots a full server (real listener, real WebSocket
// upgrades) and tears it down with the test. Teardown doubles as a
// shutdown test: it must complete within the timeout even with live
// WebSocket connections.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := directory.NewMemoryDirectory()
	sink := newTestInput()
	server := NewServer(ServerConfig{
		Address:         "127.0.0.1:0",
		Directory:       dir,
		Registry:        relay.NewRegistry(nil),
		Input:           sink,
		Authenticator:   NewStaticTokenAuthenticator(testTokens),
		ShutdownTimeout: 5 * time.Second,
		Logger:          slog.New(slog.DiscardHandler),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server listening")

	var stopOnce sync.Once
	var serveErr error
	stop := func() error {
		stopOnce.Do(func() {
			cancel()
			serveErr = testutil.RequireReceive(t, done, 10*time.Second, "server stops")
		})
		return serveErr
	}
	t.Cleanup(func() {
		if err := stop(); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	addr := server.Addr().String()
	return &testServer{
		server:    server,
		directory: dir,
		input:     sink,
		baseURL:   "http://" + addr,
		wsURL:     "ws://" + addr,
		stop:      stop,
	}
}

// do issues one authenticated JSON request against the room API.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, ts.baseURL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	// Unauthorized responses are plain text; everything else with a
	// body is JSON.
	var payload map[string]any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && err != io.EOF {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return resp.StatusCode, payload
}

func TestRoomAPILifecycle(t *testing.T) {
	ts := startTestServer(t)

	status, body := ts.do(t, "POST", "/rooms", "tok-u1", map[string]string{"receiver_id": "u2"})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %v", status, body)
	}
	roomID, _ := body["room_id"].(string)
	if roomID == "" {
		t.Fatalf("create: no room_id in %v", body)
	}
	if body["creator_id"] != "u1" || body["receiver_id"] != "u2" {
		t.Fatalf("create: body = %v, want u1/u2", body)
	}
	if body["active"] != true || body["accepted"] != false {
		t.Fatalf("create: body = %v, want active and not accepted", body)
	}

	// The creator sees the pending session; the receiver has no
	// created room of their own.
	if status, body = ts.do(t, "GET", "/rooms/active", "tok-u1", nil); status != http.StatusOK || body["room_id"] != roomID {
		t.Fatalf("active for creator: status = %d, body = %v", status, body)
	}
	if status, _ = ts.do(t, "GET", "/rooms/active", "tok-u2", nil); status != http.StatusNotFound {
		t.Fatalf("active for receiver: status = %d, want 404", status)
	}

	// A second session for the same pair is refused while this one
	// lives.
	if status, _ = ts.do(t, "POST", "/rooms", "tok-u2", map[string]string{"receiver_id": "u1"}); status != http.StatusConflict {
		t.Fatalf("duplicate pair: status = %d, want 409", status)
	}

	// Only the receiver may accept.
	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/accept", "tok-u1", nil); status != http.StatusForbidden {
		t.Fatalf("creator accept: status = %d, want 403", status)
	}
	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/accept", "tok-u3", nil); status != http.StatusForbidden {
		t.Fatalf("outsider accept: status = %d, want 403", status)
	}
	if status, body = ts.do(t, "POST", "/rooms/"+roomID+"/accept", "tok-u2", nil); status != http.StatusOK || body["accepted"] != true {
		t.Fatalf("receiver accept: status = %d, body = %v", status, body)
	}

	// Either side ends; ending is final.
	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/end", "tok-u1", nil); status != http.StatusNoContent {
		t.Fatalf("end: status = %d, want 204", status)
	}
	if status, _ = ts.do(t, "GET", "/rooms/active", "tok-u1", nil); status != http.StatusNotFound {
		t.Fatalf("active after end: status = %d, want 404", status)
	}
	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/accept", "tok-u2", nil); status != http.StatusConflict {
		t.Fatalf("accept after end: status = %d, want 409", status)
	}

	// The pair is free again.
	if status, _ = ts.do(t, "POST", "/rooms", "tok-u2", map[string]string{"receiver_id": "u1"}); status != http.StatusCreated {
		t.Fatalf("recreate after end: status = %d, want 201", status)
	}
}

func TestRoomAPIReject(t *testing.T) {
	ts := startTestServer(t)

	status, body := ts.do(t, "POST", "/rooms", "tok-u1", map[string]string{"receiver_id": "u2"})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d", status)
	}
	roomID := body["room_id"].(string)

	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/reject", "tok-u1", nil); status != http.StatusForbidden {
		t.Fatalf("creator reject: status = %d, want 403", status)
	}
	if status, _ = ts.do(t, "POST", "/rooms/"+roomID+"/reject", "tok-u2", nil); status != http.StatusNoContent {
		t.Fatalf("receiver reject: status = %d, want 204", status)
	}
	if status, _ = ts.do(t, "GET", "/rooms/active", "tok-u1", nil); status != http.StatusNotFound {
		t.Fatalf("active after reject: status = %d, want 404", status)
	}
}

func TestRoomAPIValidation(t *testing.T) {
	ts := startTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing receiver", map[string]string{}},
		{"self session", map[string]string{"receiver_id": "u1"}},
		{"malformed body", "not json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := ts.do(t, "POST", "/rooms", "tok-u1", tc.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
		})
	}

	t.Run("unknown room", func(t *testing.T) {
		status, _ := ts.do(t, "POST", "/rooms/0000000000000000dead/accept", "tok-u2", nil)
		if status != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", status)
		}
	})
}

func TestRoomAPIRequiresToken(t *testing.T) {
	ts := startTestServer(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/rooms"},
		{"GET", "/rooms/active"},
		{"POST", "/rooms/some-room/accept"},
		{"POST", "/rooms/some-room/reject"},
		{"POST", "/rooms/some-room/end"},
	}

	for _, ep := range endpoints {
		for _, token := range []string{"", "tok-bogus"} {
			name := fmt.Sprintf("%s %s token=%q", ep.method, ep.path, token)
			status, _ := ts.do(t, ep.method, ep.path, token, nil)
			if status != http.StatusUnauthorized {
				t.Fatalf("%s: status = %d, want 401", name, status)
			}
		}
	}
}
