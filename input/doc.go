// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package input is the boundary between the signaling relay and the
// operating system's input stack.
//
// [Command] is the parsed form of a screen_data control frame: a mouse
// or keyboard primitive with its action and parameters. [Executor] is
// the capability that performs a command against the OS; the relay
// depends on the interface, never on a concrete implementation.
//
// [Injector] sits between the relay and an Executor. It owns a bounded
// queue drained by a single worker goroutine, so a slow or blocking
// injection call can never stall signaling fan-out for other peers.
// Overflow drops the command with a log line, and executor errors are
// logged and swallowed — an injection failure is local, never surfaced
// to the remote peer, and never fatal to the connection.
//
// Two executors ship with the relay binary: [NullExecutor] logs
// commands without touching the OS (headless deployments, tests) and
// [XdotoolExecutor] drives an X11 session through the xdotool binary.
package input
