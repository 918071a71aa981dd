// Package logging provides application-wide logging configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Init initializes the global logger. Colors are used only when stderr is a
// terminal.
func Init(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(consoleWriter(os.Stderr, !term.IsTerminal(int(os.Stderr.Fd())))).
		With().Timestamp().Logger()
}

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
}

// Audit is an append-only JSON log of one mission session.
type Audit struct {
	zerolog.Logger
	closer io.Closer
}

// OpenAudit opens (or creates) path for appending and returns a logger
// tagged with the session name. An empty path yields a disabled logger.
func OpenAudit(path, session string) (*Audit, error) {
	if path == "" {
		return &Audit{Logger: zerolog.Nop()}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return newAudit(f, f, session), nil
}

func newAudit(w io.Writer, c io.Closer, session string) *Audit {
	l := zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Str("session", session).Logger()
	return &Audit{Logger: l, closer: c}
}

// Close flushes and closes the underlying file.
func (a *Audit) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
