// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/deskbridge/deskbridge/lib/sqlitepool"
)

// Compile-time interface check.
var _ Directory = (*SQLiteDirectory)(nil)

// schema is applied to every pool connection. The partial unique index
// over the sorted pair enforces "at most one active room per unordered
// participant pair" in the database itself, so concurrent Create calls
// cannot race past the application-level check.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id     TEXT PRIMARY KEY,
	creator_id  TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1,
	accepted    INTEGER NOT NULL DEFAULT 0
) WITHOUT ROWID;

CREATE UNIQUE INDEX IF NOT EXISTS rooms_active_pair
	ON rooms (min(creator_id, receiver_id), max(creator_id, receiver_id))
	WHERE active = 1;
`

// createIDAttempts bounds room-ID regeneration on primary-key
// collisions. Ten random bytes make a collision astronomically
// unlikely; the bound exists so a broken random source fails loudly
// instead of spinning.
const createIDAttempts = 5

// SQLiteDirectory is the production room store, backed by a
// lib/sqlitepool connection pool.
type SQLiteDirectory struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// SQLiteConfig holds the parameters for opening a SQLite directory.
type SQLiteConfig struct {
	// Path is the database file path. Required.
	Path string

	// PoolSize is passed through to the connection pool.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// OpenSQLite opens (creating if necessary) the room database. The
// caller must Close the directory when done.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteDirectory, error) {
	if cfg.Logger == nil {
		panic("directory.SQLiteDirectory: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	return &SQLiteDirectory{pool: pool, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool.
func (d *SQLiteDirectory) Close() error {
	return d.pool.Close()
}

func (d *SQLiteDirectory) Create(ctx context.Context, creatorID, receiverID string) (room Room, err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return Room{}, err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Room{}, fmt.Errorf("directory: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	// Check the pair before inserting so the caller gets a typed
	// error instead of a constraint violation. The partial unique
	// index still backstops races from other processes.
	var pairTaken bool
	err = sqlitex.Execute(conn, `
		SELECT 1 FROM rooms
		WHERE active = 1
		  AND ((creator_id = :a AND receiver_id = :b)
		    OR (creator_id = :b AND receiver_id = :a))
		LIMIT 1`, &sqlitex.ExecOptions{
		Named: map[string]any{":a": creatorID, ":b": receiverID},
		ResultFunc: func(*sqlite.Stmt) error {
			pairTaken = true
			return nil
		},
	})
	if err != nil {
		return Room{}, fmt.Errorf("directory: checking active pair: %w", err)
	}
	if pairTaken {
		return Room{}, ErrActiveRoomExists
	}

	room = Room{
		CreatorID:  creatorID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now().UTC(),
		Active:     true,
	}

	for attempt := 0; attempt < createIDAttempts; attempt++ {
		room.RoomID, err = newRoomID()
		if err != nil {
			return Room{}, err
		}

		err = sqlitex.Execute(conn, `
			INSERT INTO rooms (room_id, creator_id, receiver_id, created_at, active, accepted)
			VALUES (:room_id, :creator_id, :receiver_id, :created_at, 1, 0)`, &sqlitex.ExecOptions{
			Named: map[string]any{
				":room_id":     room.RoomID,
				":creator_id":  room.CreatorID,
				":receiver_id": room.ReceiverID,
				":created_at":  room.CreatedAt.Format(time.RFC3339Nano),
			},
		})
		if err == nil {
			return room, nil
		}
		if sqlite.ErrCode(err) != sqlite.ResultConstraintPrimaryKey {
			return Room{}, fmt.Errorf("directory: inserting room: %w", err)
		}
		// Primary-key collision: regenerate the ID and retry.
	}
	return Room{}, fmt.Errorf("directory: exhausted room id attempts: %w", err)
}

func (d *SQLiteDirectory) ActiveRoom(ctx context.Context, roomID, identity string) (Room, bool, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return Room{}, false, err
	}
	defer d.pool.Put(conn)

	room, found, err := loadRoom(conn, roomID)
	if err != nil {
		return Room{}, false, err
	}
	if !found || !room.Active || !room.Participant(identity) {
		return Room{}, false, nil
	}
	return room, true, nil
}

func (d *SQLiteDirectory) ActiveRoomForCreator(ctx context.Context, creatorID string) (Room, bool, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return Room{}, false, err
	}
	defer d.pool.Put(conn)

	var room Room
	var found bool
	err = sqlitex.Execute(conn, `
		SELECT room_id, creator_id, receiver_id, created_at, active, accepted
		FROM rooms WHERE creator_id = :creator_id AND active = 1 LIMIT 1`, &sqlitex.ExecOptions{
		Named: map[string]any{":creator_id": creatorID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			room, err = scanRoom(stmt)
			found = true
			return err
		},
	})
	if err != nil {
		return Room{}, false, fmt.Errorf("directory: querying creator room: %w", err)
	}
	return room, found, nil
}

func (d *SQLiteDirectory) Accept(ctx context.Context, roomID, identity string) (room Room, err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return Room{}, err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Room{}, fmt.Errorf("directory: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	room, found, err := loadRoom(conn, roomID)
	if err != nil {
		return Room{}, err
	}
	switch {
	case !found:
		return Room{}, ErrNotFound
	case !room.Participant(identity):
		return Room{}, ErrNotParticipant
	case identity != room.ReceiverID:
		return Room{}, ErrNotReceiver
	case !room.Active:
		return Room{}, ErrEnded
	}

	err = sqlitex.Execute(conn, `UPDATE rooms SET accepted = 1 WHERE room_id = :room_id`, &sqlitex.ExecOptions{
		Named: map[string]any{":room_id": roomID},
	})
	if err != nil {
		return Room{}, fmt.Errorf("directory: accepting room: %w", err)
	}
	room.Accepted = true
	return room, nil
}

func (d *SQLiteDirectory) Reject(ctx context.Context, roomID, identity string) error {
	return d.endRoom(ctx, roomID, identity, true)
}

func (d *SQLiteDirectory) End(ctx context.Context, roomID, identity string) error {
	return d.endRoom(ctx, roomID, identity, false)
}

// endRoom deactivates a room. receiverOnly distinguishes Reject (a
// receiver-only consent refusal) from End (either party hangs up).
func (d *SQLiteDirectory) endRoom(ctx context.Context, roomID, identity string, receiverOnly bool) (err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("directory: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	room, found, err := loadRoom(conn, roomID)
	if err != nil {
		return err
	}
	switch {
	case !found:
		return ErrNotFound
	case !room.Participant(identity):
		return ErrNotParticipant
	case receiverOnly && identity != room.ReceiverID:
		return ErrNotReceiver
	case !room.Active:
		if receiverOnly {
			return ErrEnded
		}
		return nil // ending twice is fine
	}

	err = sqlitex.Execute(conn, `UPDATE rooms SET active = 0, accepted = 0 WHERE room_id = :room_id`, &sqlitex.ExecOptions{
		Named: map[string]any{":room_id": roomID},
	})
	if err != nil {
		return fmt.Errorf("directory: ending room: %w", err)
	}
	return nil
}

// loadRoom fetches one room by ID. The second return is false when no
// row exists.
func loadRoom(conn *sqlite.Conn, roomID string) (Room, bool, error) {
	var room Room
	var found bool
	err := sqlitex.Execute(conn, `
		SELECT room_id, creator_id, receiver_id, created_at, active, accepted
		FROM rooms WHERE room_id = :room_id`, &sqlitex.ExecOptions{
		Named: map[string]any{":room_id": roomID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			room, err = scanRoom(stmt)
			found = true
			return err
		},
	})
	if err != nil {
		return Room{}, false, fmt.Errorf("directory: loading room %s: %w", roomID, err)
	}
	return room, found, nil
}

// scanRoom reads a room row in the column order used by every SELECT
// in this file.
func scanRoom(stmt *sqlite.Stmt) (Room, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(3))
	if err != nil {
		return Room{}, fmt.Errorf("directory: parsing created_at: %w", err)
	}
	return Room{
		RoomID:     stmt.ColumnText(0),
		CreatorID:  stmt.ColumnText(1),
		ReceiverID: stmt.ColumnText(2),
		CreatedAt:  createdAt,
		Active:     stmt.ColumnInt(4) != 0,
		Accepted:   stmt.ColumnInt(5) != 0,
	}, nil
}
