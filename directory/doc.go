// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory is the authoritative store of room records: the
// pairing between a session's creator and receiver plus its lifecycle
// flags.
//
// A [Room] is created Pending (active, not accepted), becomes Accepted
// when the receiver consents, and Ends by rejection or explicit
// termination from either party. Ended is terminal. Acceptance is
// monotonic: it is never reset while the room lives.
//
// The relay core consumes a single read operation, [Directory.ActiveRoom],
// which resolves a room only when it exists, is active, and the asking
// identity is one of its two participants. Everything else — Create,
// Accept, Reject, End — is the lifecycle surface driven by the HTTP
// API. The relay never mutates rooms; it re-fetches before authorizing
// privileged actions because its cached snapshot can go stale the
// moment acceptance or termination happens elsewhere.
//
// Two implementations: [MemoryDirectory] backs tests and single-binary
// demos; [SQLiteDirectory] is production storage over lib/sqlitepool.
// Both enforce at most one active room per participant pair, in either
// orientation: two people share at most one live session, no matter
// who invited whom.
package directory
