// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"context"
	"log/slog"
)

// defaultQueueSize bounds the injector queue when the config leaves it
// zero. A burst of mouse-move frames at 60 Hz fills 64 slots in about
// one second, which is more stall than a user tolerates anyway — by
// then dropping stale moves is the right call.
const defaultQueueSize = 64

// Injector decouples command execution from the signaling path. The
// relay enqueues authorized commands without blocking; a single worker
// goroutine drains the queue in FIFO order and runs them against the
// executor. Execution errors are logged and swallowed, never returned
// to the relay or surfaced to the remote peer.
type Injector struct {
	executor Executor
	logger   *slog.Logger
	queue    chan Command
}

// InjectorConfig configures an Injector.
type InjectorConfig struct {
	// Executor performs the commands. Required.
	Executor Executor

	// QueueSize bounds the pending-command queue. Defaults to 64.
	QueueSize int

	// Logger receives drop and execution-failure messages. Required.
	Logger *slog.Logger
}

// NewInjector creates an injector. Call Run to start the worker.
func NewInjector(config InjectorConfig) *Injector {
	if config.Executor == nil {
		panic("input.Injector: Executor is required")
	}
	if config.Logger == nil {
		panic("input.Injector: Logger is required")
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Injector{
		executor: config.Executor,
		logger:   config.Logger,
		queue:    make(chan Command, queueSize),
	}
}

// Enqueue hands a command to the worker without blocking. When the
// queue is full the command is dropped with a log line: dropping a
// stale mouse move beats stalling signaling fan-out.
func (i *Injector) Enqueue(cmd Command) {
	select {
	case i.queue <- cmd:
	default:
		i.logger.Warn("input queue full, dropping command",
			"kind", cmd.Kind,
			"action", cmd.Action,
		)
	}
}

// Run drains the queue until ctx is cancelled. Always returns nil;
// executor failures are logged here and never propagate.
func (i *Injector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-i.queue:
			if err := i.executor.Execute(cmd); err != nil {
				i.logger.Error("input execution failed",
					"kind", cmd.Kind,
					"action", cmd.Action,
					"error", err,
				)
			}
		}
	}
}
