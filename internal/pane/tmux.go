package pane

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner executes the multiplexer binary and returns its combined output.
type CommandRunner func(ctx context.Context, bin string, args ...string) ([]byte, error)

// Tmux is a Backend driving the tmux binary.
type Tmux struct {
	// Bin is the tmux executable, "tmux" when empty.
	Bin string
	// Socket isolates sessions on a dedicated server (-L) when set.
	Socket string
	run    CommandRunner
}

// NewTmux returns a tmux backend on the given socket.
func NewTmux(socket string) *Tmux {
	return &Tmux{Socket: socket}
}

// WithRunner replaces the command runner, used by tests.
func (t *Tmux) WithRunner(run CommandRunner) *Tmux {
	t.run = run
	return t
}

// NewSession starts a detached session sized to g, hides the status line and
// clears the screen.
func (t *Tmux) NewSession(ctx context.Context, name string, g Geometry) error {
	cols, rows := strconv.Itoa(g.Cols), strconv.Itoa(g.Rows)
	steps := [][]string{
		{"new-session", "-d", "-s", name, "-n", "main", "-x", cols, "-y", rows},
		{"set-option", "-t", name, "status", "off"},
		{"resize-window", "-t", name, "-x", cols, "-y", rows},
		{"send-keys", "-t", name, "clear", "Enter"},
	}
	for _, args := range steps {
		if _, err := t.tmux(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// SendKey sends one key event. "--" stops tmux from reading keys such as
// "-l" as flags.
func (t *Tmux) SendKey(ctx context.Context, name, key string, literal bool) error {
	args := []string{"send-keys", "-t", name}
	if literal {
		args = append(args, "-l")
	}
	args = append(args, "--", key)
	_, err := t.tmux(ctx, args...)
	return err
}

// CapturePane returns the visible pane content.
func (t *Tmux) CapturePane(ctx context.Context, name string) (string, error) {
	out, err := t.tmux(ctx, "capture-pane", "-p", "-t", name)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CursorPosition asks tmux for the cursor coordinates of the first window.
func (t *Tmux) CursorPosition(ctx context.Context, name string) (Cursor, error) {
	out, err := t.tmux(ctx, "display-message", "-p", "-t", name+":0", "#{cursor_x},#{cursor_y}")
	if err != nil {
		return Cursor{}, err
	}
	return parseCursor(string(out))
}

// KillSession terminates the session.
func (t *Tmux) KillSession(ctx context.Context, name string) error {
	_, err := t.tmux(ctx, "kill-session", "-t", name)
	return err
}

func (t *Tmux) tmux(ctx context.Context, args ...string) ([]byte, error) {
	bin := t.Bin
	if bin == "" {
		bin = "tmux"
	}
	if strings.TrimSpace(t.Socket) != "" {
		args = append([]string{"-L", t.Socket}, args...)
	}
	run := t.run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, bin, args...)
	if err != nil {
		return out, fmt.Errorf("tmux %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func execRunner(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	return cmd.CombinedOutput()
}

func parseCursor(s string) (Cursor, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Cursor{}, fmt.Errorf("parse cursor %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor x %q: %w", xs, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor y %q: %w", ys, err)
	}
	return Cursor{X: x, Y: y}, nil
}
