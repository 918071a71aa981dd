package pane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metalagman/pllm/internal/keys"
	"github.com/rs/zerolog"
)

const (
	defaultKeyDelay       = 50 * time.Millisecond
	defaultStartupDelay   = time.Second
	defaultDestroyTimeout = 5 * time.Second
)

// Options tune a Session.
type Options struct {
	// KeyDelay is the pause after every key so the receiving program does
	// not coalesce input.
	KeyDelay time.Duration
	// StartupDelay gives the shell time to initialize after creation.
	StartupDelay time.Duration
	Logger       zerolog.Logger
}

// Session is an open pane. It must be released with Destroy, which is safe to
// call more than once.
type Session struct {
	backend  Backend
	name     string
	geometry Geometry
	keyDelay time.Duration
	logger   zerolog.Logger

	destroyOnce sync.Once
	destroyErr  error
}

// Create starts a named session with the given geometry.
func Create(ctx context.Context, backend Backend, name string, g Geometry, opts Options) (*Session, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: invalid geometry %s", ErrSessionCreation, g)
	}
	if opts.KeyDelay < 0 {
		opts.KeyDelay = 0
	} else if opts.KeyDelay == 0 {
		opts.KeyDelay = defaultKeyDelay
	}
	if opts.StartupDelay == 0 {
		opts.StartupDelay = defaultStartupDelay
	}

	if err := backend.NewSession(ctx, name, g); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrSessionCreation, name, err)
	}
	s := &Session{
		backend:  backend,
		name:     name,
		geometry: g,
		keyDelay: opts.KeyDelay,
		logger:   opts.Logger.With().Str("session", name).Logger(),
	}
	s.logger.Debug().Stringer("geometry", g).Msg("pane session created")

	if err := sleep(ctx, opts.StartupDelay); err != nil {
		_ = s.Destroy(ctx)
		return nil, err
	}
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Geometry returns the fixed pane geometry.
func (s *Session) Geometry() Geometry { return s.geometry }

// Send types every token in order, pausing KeyDelay after each one.
func (s *Session) Send(ctx context.Context, seq keys.Sequence) error {
	for i, tok := range seq {
		key, literal := tok.Tmux()
		if err := s.backend.SendKey(ctx, s.name, key, literal); err != nil {
			return fmt.Errorf("%w %d (%s): %w", ErrSend, i, tok, err)
		}
		if err := sleep(ctx, s.keyDelay); err != nil {
			return err
		}
	}
	s.logger.Debug().Int("keys", len(seq)).Msg("keys sent")
	return nil
}

// Capture reads back the visible pane and the cursor position.
func (s *Session) Capture(ctx context.Context) (Capture, error) {
	raw, err := s.backend.CapturePane(ctx, s.name)
	if err != nil {
		return Capture{}, fmt.Errorf("%w: read screen: %w", ErrCapture, err)
	}
	cur, err := s.backend.CursorPosition(ctx, s.name)
	if err != nil {
		return Capture{}, fmt.Errorf("%w: read cursor: %w", ErrCapture, err)
	}
	if cur.X < 0 || cur.X > s.geometry.Cols || cur.Y < 0 || cur.Y > s.geometry.Rows {
		return Capture{}, fmt.Errorf("%w: cursor %s outside %s", ErrCapture, cur, s.geometry)
	}
	// tmux leaves the cursor one past the last column while a wrap is pending.
	cur.X = min(cur.X, s.geometry.Cols-1)
	cur.Y = min(cur.Y, s.geometry.Rows-1)
	return Capture{
		Lines:    Normalize(raw, s.geometry),
		Cursor:   cur,
		Geometry: s.geometry,
	}, nil
}

// Destroy kills the session. Only the first call reaches the backend; later
// calls return the first result. It runs even if ctx is already canceled.
func (s *Session) Destroy(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.destroyOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDestroyTimeout)
		defer cancel()
		s.destroyErr = s.backend.KillSession(ctx, s.name)
		if s.destroyErr != nil {
			s.logger.Warn().Err(s.destroyErr).Msg("kill pane session")
			return
		}
		s.logger.Debug().Msg("pane session destroyed")
	})
	return s.destroyErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
