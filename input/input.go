// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"
	"log/slog"
)

// Kind distinguishes the two command families.
type Kind string

const (
	// Mouse commands move the pointer or press its buttons.
	Mouse Kind = "mouse"

	// Keyboard commands press and release keys.
	Keyboard Kind = "keyboard"
)

// Mouse actions.
const (
	// ActionMove positions the pointer at X, Y.
	ActionMove = "move"

	// ActionDown presses Button (mouse) or Key (keyboard).
	ActionDown = "down"

	// ActionUp releases Button (mouse) or Key (keyboard).
	ActionUp = "up"
)

// Command is one input primitive. The JSON field names match the
// "data" object of a screen_data frame as the browser sends it.
type Command struct {
	// Kind is "mouse" or "keyboard". Serialized as "type" on the wire.
	Kind Kind `json:"type"`

	// Action is "move", "down", or "up". Mouse supports all three;
	// keyboard supports "down" and "up".
	Action string `json:"action"`

	// X, Y are pointer coordinates for mouse move.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// Button is "left", "middle", or "right" for mouse down/up.
	Button string `json:"button,omitempty"`

	// Key is the key name for keyboard down/up.
	Key string `json:"key,omitempty"`
}

// Validate checks structural well-formedness: a recognized kind, a
// recognized action for that kind, and the action's required
// parameters. It does not validate coordinate ranges or key names —
// those belong to the executor, which is the component that knows the
// screen geometry and keymap.
func (c Command) Validate() error {
	switch c.Kind {
	case Mouse:
		switch c.Action {
		case ActionMove:
		case ActionDown, ActionUp:
			if c.Button == "" {
				return fmt.Errorf("input: mouse %s without button", c.Action)
			}
		default:
			return fmt.Errorf("input: unknown mouse action %q", c.Action)
		}
	case Keyboard:
		switch c.Action {
		case ActionDown, ActionUp:
			if c.Key == "" {
				return fmt.Errorf("input: keyboard %s without key", c.Action)
			}
		default:
			return fmt.Errorf("input: unknown keyboard action %q", c.Action)
		}
	default:
		return fmt.Errorf("input: unknown command kind %q", c.Kind)
	}
	return nil
}

// Executor performs a command against the operating system. Execute
// may block (xdotool forks a process); callers on a latency-sensitive
// path must go through an [Injector] rather than calling Execute
// directly.
type Executor interface {
	Execute(cmd Command) error
}

// Compile-time interface check.
var _ Executor = (*NullExecutor)(nil)

// NullExecutor logs commands without executing them. Used in headless
// deployments and as the safe default when no injection backend is
// configured.
type NullExecutor struct {
	Logger *slog.Logger
}

// Execute logs the command at debug level and reports success.
func (e *NullExecutor) Execute(cmd Command) error {
	if e.Logger != nil {
		e.Logger.Debug("input command discarded",
			"kind", cmd.Kind,
			"action", cmd.Action,
		)
	}
	return nil
}
