// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Deskbridge packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. The relay
// test suites are channel-heavy — every connection double exposes its
// deliveries as a channel — and a forgotten timeout turns a failing
// test into a hung test run.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// room IDs, user IDs, or message bodies distinguishable in shared
// fan-out assertions.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Deskbridge-internal dependencies.
package testutil
