// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"
	"os/exec"
	"strconv"
)

// Compile-time interface check.
var _ Executor = (*XdotoolExecutor)(nil)

// XdotoolExecutor injects mouse and keyboard events into an X11
// session by invoking the xdotool binary. Each Execute call forks one
// process, which is why the relay always wraps this executor in an
// [Injector] — a fork per mouse-move frame must not run on the
// signaling path.
type XdotoolExecutor struct {
	// Binary is the xdotool executable. Defaults to "xdotool" (found
	// via PATH) when empty.
	Binary string

	// Display is the X11 display to target (e.g., ":0"). When empty,
	// xdotool uses the DISPLAY environment variable.
	Display string
}

// buttonNumbers maps wire button names to X11 button numbers.
var buttonNumbers = map[string]string{
	"left":   "1",
	"middle": "2",
	"right":  "3",
}

// Execute runs one xdotool invocation for the command. Unknown buttons
// and malformed commands are rejected before forking.
func (e *XdotoolExecutor) Execute(cmd Command) error {
	args, err := e.arguments(cmd)
	if err != nil {
		return err
	}

	binary := e.Binary
	if binary == "" {
		binary = "xdotool"
	}

	run := exec.Command(binary, args...)
	if e.Display != "" {
		run.Env = append(run.Environ(), "DISPLAY="+e.Display)
	}
	if output, err := run.CombinedOutput(); err != nil {
		return fmt.Errorf("input: xdotool %v: %w (output: %s)", args, err, output)
	}
	return nil
}

// arguments translates a command into an xdotool argument vector.
func (e *XdotoolExecutor) arguments(cmd Command) ([]string, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	switch cmd.Kind {
	case Mouse:
		switch cmd.Action {
		case ActionMove:
			return []string{"mousemove", strconv.Itoa(cmd.X), strconv.Itoa(cmd.Y)}, nil
		case ActionDown, ActionUp:
			number, ok := buttonNumbers[cmd.Button]
			if !ok {
				return nil, fmt.Errorf("input: unknown mouse button %q", cmd.Button)
			}
			verb := "mousedown"
			if cmd.Action == ActionUp {
				verb = "mouseup"
			}
			return []string{verb, number}, nil
		}
	case Keyboard:
		verb := "keydown"
		if cmd.Action == ActionUp {
			verb = "keyup"
		}
		return []string{verb, cmd.Key}, nil
	}
	return nil, fmt.Errorf("input: unknown command kind %q", cmd.Kind)
}
