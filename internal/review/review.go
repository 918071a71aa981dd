// Package review lets an operator edit a decoded model response in an
// external editor before it is used.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	defaultTimeout = 5 * time.Second
	pollSlice      = 100 * time.Millisecond
)

// Editor waits a bounded time for a key press and, if one arrives, opens the
// response in an editor.
type Editor struct {
	// Command is the editor command line, e.g. "vim" or "code --wait".
	Command string
	Timeout time.Duration
	In      *os.File
	Out     io.Writer
	Logger  zerolog.Logger

	// wait and edit are replaced in tests.
	wait func(ctx context.Context, timeout time.Duration) bool
	edit func(ctx context.Context, path string) error
}

// NewEditor returns an Editor reading the operator's key press from stdin.
func NewEditor(command string, timeout time.Duration, logger zerolog.Logger) *Editor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Editor{
		Command: command,
		Timeout: timeout,
		In:      os.Stdin,
		Out:     os.Stdout,
		Logger:  logger,
	}
}

// Review returns the edited object, or object itself when no key was pressed
// in time, the editor failed or the edit is not valid JSON.
func (e *Editor) Review(ctx context.Context, object string) string {
	if strings.TrimSpace(e.Command) == "" {
		return object
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(object), "", "  "); err != nil {
		e.Logger.Warn().Err(err).Msg("response is not valid JSON, skipping review")
		return object
	}

	fmt.Fprintf(e.out(), "\nPress any key within %s to edit the response...\n", e.Timeout)
	wait := e.wait
	if wait == nil {
		wait = e.waitKey
	}
	if !wait(ctx, e.Timeout) {
		return object
	}

	edited, err := e.editText(ctx, pretty.Bytes())
	if err != nil {
		e.Logger.Warn().Err(err).Msg("editor failed, using original response")
		return object
	}
	if !json.Valid(edited) {
		e.Logger.Warn().Msg("edited response is not valid JSON, using original response")
		return object
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, edited); err != nil {
		return object
	}
	e.Logger.Info().Msg("response edited by operator")
	return compact.String()
}

func (e *Editor) editText(ctx context.Context, text []byte) ([]byte, error) {
	f, err := os.CreateTemp("", "pllm-response-*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(text); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	edit := e.edit
	if edit == nil {
		edit = e.runEditor
	}
	if err := edit(ctx, path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("edited file is empty")
	}
	return data, nil
}

func (e *Editor) runEditor(ctx context.Context, path string) error {
	fields := strings.Fields(e.Command)
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	cmd.Stdin = e.In
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %q: %w", e.Command, err)
	}
	return nil
}

// waitKey reports whether a key press arrives on In before the timeout. A
// terminal is switched to raw mode so a single key press counts.
func (e *Editor) waitKey(ctx context.Context, timeout time.Duration) bool {
	in := e.In
	if in == nil {
		return false
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			e.Logger.Debug().Err(err).Msg("raw mode unavailable")
		} else {
			defer func() { _ = term.Restore(fd, state) }()
		}
	}

	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for ctx.Err() == nil {
		left := time.Until(deadline)
		if left <= 0 {
			return false
		}
		n, err := unix.Poll(fds, int(min(left, pollSlice).Milliseconds())+1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.Logger.Debug().Err(err).Msg("poll stdin")
			return false
		}
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			buf := make([]byte, 1)
			read, _ := in.Read(buf)
			return read > 0
		}
	}
	return false
}

func (e *Editor) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}
