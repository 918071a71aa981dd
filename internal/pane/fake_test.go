package pane

import (
	"context"
	"errors"
	"sync"
)

type sentKey struct {
	key     string
	literal bool
}

type fakeBackend struct {
	mu        sync.Mutex
	screen    string
	cursor    Cursor
	created   []string
	sent      []sentKey
	kills     int
	createErr error
	sendErr   error
	screenErr error
	cursorErr error
}

func (f *fakeBackend) NewSession(_ context.Context, name string, _ Geometry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeBackend) SendKey(_ context.Context, _ string, key string, literal bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentKey{key: key, literal: literal})
	return nil
}

func (f *fakeBackend) CapturePane(context.Context, string) (string, error) {
	if f.screenErr != nil {
		return "", f.screenErr
	}
	return f.screen, nil
}

func (f *fakeBackend) CursorPosition(context.Context, string) (Cursor, error) {
	if f.cursorErr != nil {
		return Cursor{}, f.cursorErr
	}
	return f.cursor, nil
}

func (f *fakeBackend) KillSession(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	return nil
}

var errBackend = errors.New("backend down")
