// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"github.com/deskbridge/deskbridge/directory"
	"github.com/deskbridge/deskbridge/input"
)

// Authorized is the access-control gate for input injection. It
// reports whether identity may execute a control command of the given
// kind in the room described by snapshot.
//
// The policy, in full:
//
//   - the room must be accepted — the receiver's consent is required
//     unconditionally, there is no pre-acceptance control;
//   - the acting identity must be the room's creator — the creator
//     initiated the session to drive the receiver's screen, and the
//     controlled party never injects input;
//   - the command kind must be a known input family.
//
// Callers must pass a fresh snapshot: acceptance and termination
// happen in the directory at any time, so the router re-fetches the
// room before every gate evaluation rather than trusting the snapshot
// it cached at join.
func Authorized(snapshot directory.Room, identity string, kind input.Kind) bool {
	if kind != input.Mouse && kind != input.Keyboard {
		return false
	}
	return snapshot.Active && snapshot.Accepted && identity == snapshot.CreatorID
}
