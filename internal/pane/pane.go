// Package pane drives a terminal-multiplexer pane: it creates a fixed-size
// session, types key tokens into it and captures a normalized snapshot of
// the visible screen.
package pane

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrSessionCreation is returned when the backend cannot start a session.
	ErrSessionCreation = errors.New("create pane session")
	// ErrCapture is returned when the screen or cursor cannot be read back.
	ErrCapture = errors.New("capture pane")
	// ErrSend is returned when a key cannot be delivered to the pane.
	ErrSend = errors.New("send key")
)

// Geometry is the fixed pane size agreed at session creation.
type Geometry struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Valid reports whether both dimensions are positive.
func (g Geometry) Valid() bool {
	return g.Cols > 0 && g.Rows > 0
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}

// Cursor is a zero-based cursor position.
type Cursor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cursor) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Backend is the multiplexer a Session runs on.
type Backend interface {
	NewSession(ctx context.Context, name string, g Geometry) error
	// SendKey delivers one key. When literal is set the key is typed as text
	// rather than interpreted as a key name.
	SendKey(ctx context.Context, name, key string, literal bool) error
	CapturePane(ctx context.Context, name string) (string, error)
	CursorPosition(ctx context.Context, name string) (Cursor, error)
	KillSession(ctx context.Context, name string) error
}

// Capture is an immutable snapshot of the visible pane.
type Capture struct {
	Lines    []string `json:"lines"`
	Cursor   Cursor   `json:"cursor"`
	Geometry Geometry `json:"geometry"`
}

// Text returns the normalized lines joined by newlines.
func (c Capture) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Render returns the line-numbered view with the cursor cell replaced by a
// block character.
func (c Capture) Render() string {
	var b strings.Builder
	for i, line := range c.Lines {
		if i == c.Cursor.Y {
			line = overlayCursor(line, c.Cursor.X)
		}
		fmt.Fprintf(&b, "%2d |%s", i, line)
		if i < len(c.Lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

const cursorBlock = '█'

func overlayCursor(line string, x int) string {
	runes := []rune(line)
	if x < 0 || x >= len(runes) {
		return line
	}
	runes[x] = cursorBlock
	return string(runes)
}

// Normalize fits raw pane text to g: exactly g.Rows lines of exactly g.Cols
// runes each. Short lines are padded with spaces, long lines truncated,
// missing rows filled with blanks and extra rows dropped.
func Normalize(raw string, g Geometry) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")

	var src []string
	if raw != "" {
		src = strings.Split(raw, "\n")
	}

	lines := make([]string, g.Rows)
	for i := range lines {
		line := ""
		if i < len(src) {
			line = src[i]
		}
		lines[i] = fitWidth(line, g.Cols)
	}
	return lines
}

func fitWidth(line string, cols int) string {
	n := utf8.RuneCountInString(line)
	switch {
	case n == cols:
		return line
	case n < cols:
		return line + strings.Repeat(" ", cols-n)
	default:
		return string([]rune(line)[:cols])
	}
}
