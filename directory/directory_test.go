// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// forEachDirectory runs the same conformance test against both
// implementations. Every Directory behavior observable by the relay
// must be identical across them; the memory store is what the relay
// tests build on, so any divergence there is a bug in disguise.
func forEachDirectory(t *testing.T, fn func(t *testing.T, dir Directory)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryDirectory())
	})
	t.Run("sqlite", func(t *testing.T) {
		dir, err := OpenSQLite(SQLiteConfig{
			Path:   filepath.Join(t.TempDir(), "rooms.db"),
			Logger: slog.New(slog.DiscardHandler),
		})
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() {
			if err := dir.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		fn(t, dir)
	})
}

func TestCreateAndResolve(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()

		before := time.Now().UTC().Add(-time.Second)
		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if room.CreatorID != "alice" || room.ReceiverID != "bob" {
			t.Fatalf("room = %+v, want alice/bob", room)
		}
		if !room.Active || room.Accepted {
			t.Fatalf("new room = %+v, want active and not accepted", room)
		}
		if len(room.RoomID) != 2*roomIDBytes {
			t.Fatalf("RoomID = %q, want %d hex characters", room.RoomID, 2*roomIDBytes)
		}
		if room.CreatedAt.Before(before) || room.CreatedAt.After(time.Now().UTC().Add(time.Second)) {
			t.Fatalf("CreatedAt = %v, want roughly now", room.CreatedAt)
		}

		for _, identity := range []string{"alice", "bob"} {
			got, ok, err := dir.ActiveRoom(ctx, room.RoomID, identity)
			if err != nil || !ok {
				t.Fatalf("ActiveRoom(%s): ok=%v err=%v", identity, ok, err)
			}
			if got.RoomID != room.RoomID {
				t.Fatalf("ActiveRoom returned %+v, want %s", got, room.RoomID)
			}
		}

		if _, ok, err := dir.ActiveRoom(ctx, room.RoomID, "mallory"); err != nil || ok {
			t.Fatalf("ActiveRoom(mallory): ok=%v err=%v, want not found", ok, err)
		}
		if _, ok, err := dir.ActiveRoom(ctx, "0000000000000000dead", "alice"); err != nil || ok {
			t.Fatalf("ActiveRoom(unknown id): ok=%v err=%v, want not found", ok, err)
		}
	})
}

func TestCreateRejectsActivePair(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()

		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if _, err := dir.Create(ctx, "alice", "bob"); !errors.Is(err, ErrActiveRoomExists) {
			t.Fatalf("duplicate pair: err = %v, want ErrActiveRoomExists", err)
		}
		// The pair is unordered: bob inviting alice collides too.
		if _, err := dir.Create(ctx, "bob", "alice"); !errors.Is(err, ErrActiveRoomExists) {
			t.Fatalf("reversed pair: err = %v, want ErrActiveRoomExists", err)
		}
		// A different pair sharing one identity is fine.
		if _, err := dir.Create(ctx, "alice", "carol"); err != nil {
			t.Fatalf("Create(alice, carol): %v", err)
		}

		// Ending the room frees the pair for a new session.
		if err := dir.End(ctx, room.RoomID, "alice"); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, err := dir.Create(ctx, "bob", "alice"); err != nil {
			t.Fatalf("Create after end: %v", err)
		}
	})
}

func TestAccept(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()
		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if _, err := dir.Accept(ctx, room.RoomID, "alice"); !errors.Is(err, ErrNotReceiver) {
			t.Fatalf("creator accept: err = %v, want ErrNotReceiver", err)
		}
		if _, err := dir.Accept(ctx, room.RoomID, "mallory"); !errors.Is(err, ErrNotParticipant) {
			t.Fatalf("outsider accept: err = %v, want ErrNotParticipant", err)
		}
		if _, err := dir.Accept(ctx, "0000000000000000dead", "bob"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown room accept: err = %v, want ErrNotFound", err)
		}

		accepted, err := dir.Accept(ctx, room.RoomID, "bob")
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if !accepted.Accepted || !accepted.Active {
			t.Fatalf("accepted room = %+v, want accepted and active", accepted)
		}

		// Accepting twice is a no-op.
		again, err := dir.Accept(ctx, room.RoomID, "bob")
		if err != nil {
			t.Fatalf("second Accept: %v", err)
		}
		if !again.Accepted {
			t.Fatalf("second Accept = %+v, want still accepted", again)
		}

		// The acceptance is visible to fresh snapshots, which is what
		// the relay's control gate reads.
		got, ok, err := dir.ActiveRoom(ctx, room.RoomID, "alice")
		if err != nil || !ok || !got.Accepted {
			t.Fatalf("ActiveRoom after accept: %+v ok=%v err=%v", got, ok, err)
		}

		if err := dir.End(ctx, room.RoomID, "bob"); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, err := dir.Accept(ctx, room.RoomID, "bob"); !errors.Is(err, ErrEnded) {
			t.Fatalf("accept after end: err = %v, want ErrEnded", err)
		}
	})
}

func TestReject(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()
		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if err := dir.Reject(ctx, room.RoomID, "alice"); !errors.Is(err, ErrNotReceiver) {
			t.Fatalf("creator reject: err = %v, want ErrNotReceiver", err)
		}
		if err := dir.Reject(ctx, room.RoomID, "mallory"); !errors.Is(err, ErrNotParticipant) {
			t.Fatalf("outsider reject: err = %v, want ErrNotParticipant", err)
		}

		if err := dir.Reject(ctx, room.RoomID, "bob"); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		if _, ok, err := dir.ActiveRoom(ctx, room.RoomID, "alice"); err != nil || ok {
			t.Fatalf("rejected room still active: ok=%v err=%v", ok, err)
		}
		if err := dir.Reject(ctx, room.RoomID, "bob"); !errors.Is(err, ErrEnded) {
			t.Fatalf("second reject: err = %v, want ErrEnded", err)
		}
	})
}

func TestEnd(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()
		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := dir.Accept(ctx, room.RoomID, "bob"); err != nil {
			t.Fatalf("Accept: %v", err)
		}

		if err := dir.End(ctx, room.RoomID, "mallory"); !errors.Is(err, ErrNotParticipant) {
			t.Fatalf("outsider end: err = %v, want ErrNotParticipant", err)
		}
		if err := dir.End(ctx, "0000000000000000dead", "alice"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown room end: err = %v, want ErrNotFound", err)
		}

		// Either participant may end; here the creator hangs up.
		if err := dir.End(ctx, room.RoomID, "alice"); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, ok, err := dir.ActiveRoom(ctx, room.RoomID, "bob"); err != nil || ok {
			t.Fatalf("ended room still active: ok=%v err=%v", ok, err)
		}

		// Ending again, from either side, stays a no-op.
		if err := dir.End(ctx, room.RoomID, "alice"); err != nil {
			t.Fatalf("repeat End by creator: %v", err)
		}
		if err := dir.End(ctx, room.RoomID, "bob"); err != nil {
			t.Fatalf("repeat End by receiver: %v", err)
		}
	})
}

func TestActiveRoomForCreator(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()

		if _, ok, err := dir.ActiveRoomForCreator(ctx, "alice"); err != nil || ok {
			t.Fatalf("empty directory: ok=%v err=%v", ok, err)
		}

		room, err := dir.Create(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, ok, err := dir.ActiveRoomForCreator(ctx, "alice")
		if err != nil || !ok || got.RoomID != room.RoomID {
			t.Fatalf("ActiveRoomForCreator(alice) = %+v ok=%v err=%v", got, ok, err)
		}
		// Receivers do not appear in the creator index.
		if _, ok, err := dir.ActiveRoomForCreator(ctx, "bob"); err != nil || ok {
			t.Fatalf("ActiveRoomForCreator(bob): ok=%v err=%v, want none", ok, err)
		}

		if err := dir.End(ctx, room.RoomID, "alice"); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, ok, err := dir.ActiveRoomForCreator(ctx, "alice"); err != nil || ok {
			t.Fatalf("after end: ok=%v err=%v, want none", ok, err)
		}
	})
}

func TestConcurrentCreateSamePair(t *testing.T) {
	forEachDirectory(t, func(t *testing.T, dir Directory) {
		ctx := context.Background()
		const attempts = 8

		var wg sync.WaitGroup
		errs := make([]error, attempts)
		wg.Add(attempts)
		for i := 0; i < attempts; i++ {
			go func(i int) {
				defer wg.Done()
				_, errs[i] = dir.Create(ctx, "alice", "bob")
			}(i)
		}
		wg.Wait()

		var created int
		for _, err := range errs {
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrActiveRoomExists):
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if created != 1 {
			t.Fatalf("created = %d rooms for one pair, want exactly 1", created)
		}
	})
}
