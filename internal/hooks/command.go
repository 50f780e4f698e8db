package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a hook command when none is configured.
const DefaultCommandTimeout = 10 * time.Second

// CommandSpec is one configured shell command for an event.
type CommandSpec struct {
	Command string
	Timeout time.Duration
}

// CommandHandler runs spec through the shell with the JSON payload on stdin.
// REMDEV_HOOK_EVENT carries the event name. A non-zero exit is an error that
// includes the first line of stderr.
func CommandHandler(spec CommandSpec) Handler {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := shellCommand(ctx, spec.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(os.Environ(), "REMDEV_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// Grandchildren may hold stderr open after the shell is killed.
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook command timed out after %s", timeout)
			}
			if msg := firstLine(stderr.String()); msg != "" {
				return fmt.Errorf("hook command failed: %w: %s", err, msg)
			}
			return fmt.Errorf("hook command failed: %w", err)
		}
		return nil
	}
}

// RegisterCommands attaches configured commands to m. Unknown event names are
// returned so callers can warn about them.
func RegisterCommands(m *Manager, byEvent map[string][]CommandSpec) []string {
	var unknown []string
	for event, specs := range byEvent {
		if !Known(event) {
			unknown = append(unknown, event)
			continue
		}
		for i, spec := range specs {
			m.On(event, fmt.Sprintf("command:%d", i), CommandHandler(spec))
		}
	}
	return unknown
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
