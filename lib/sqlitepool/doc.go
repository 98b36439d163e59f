// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a Deskbridge-standard SQLite connection pool.
//
// The session directory is the only structured storage in Deskbridge,
// and this package is its foundation. It wraps zombiezen.com/go/sqlite
// with production defaults: WAL journal mode, NORMAL synchronous, and
// a busy timeout to absorb write contention between the room lifecycle
// API and the relay's re-validation reads.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: write-ahead logging so the relay's frequent
//     room-snapshot reads never block lifecycle writes, and vice versa.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across power failure, which is acceptable for pairing
//     records — a lost room is recreated by the users in seconds.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock instead
//     of returning SQLITE_BUSY immediately.
//   - foreign_keys=OFF: room rows store participant identities as
//     opaque strings owned by the external account system; there is
//     nothing to reference.
//   - temp_store=MEMORY: temporary indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/deskbridge/directory.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// # Design
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. There is no attempt
// to abstract away SQLite's connection model or invent a query builder.
// The directory writes SQL, uses sqlitex.Execute for cached statements,
// and manages transactions with sqlitex.ImmediateTransaction.
package sqlitepool
