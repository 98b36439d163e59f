// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for room IDs, user IDs, or message
// bodies that must be distinguishable in fan-out assertions.
//
//	roomID := testutil.UniqueID("room")    // "room-1", "room-2", ...
//	userID := testutil.UniqueID("user")    // "user-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
