package run

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/pane"
)

// journal is the shared, ordered trace of pane and model calls.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) index(e string, nth int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	seen := 0
	for i, got := range j.events {
		if got == e {
			seen++
			if seen == nth {
				return i
			}
		}
	}
	return -1
}

func (j *journal) count(e string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, got := range j.events {
		if got == e {
			n++
		}
	}
	return n
}

type fakePane struct {
	j          *journal
	screen     string
	cursor     pane.Cursor
	captureErr error
	// failAfter makes the nth capture (1-based) fail.
	failAfter int

	mu       sync.Mutex
	captures int
	sent     []string
}

func (f *fakePane) NewSession(context.Context, string, pane.Geometry) error {
	f.j.add("create")
	return nil
}

func (f *fakePane) SendKey(_ context.Context, _, key string, _ bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, key)
	f.mu.Unlock()
	f.j.add("key")
	return nil
}

func (f *fakePane) CapturePane(context.Context, string) (string, error) {
	f.mu.Lock()
	f.captures++
	n := f.captures
	f.mu.Unlock()
	f.j.add("capture")
	if f.failAfter > 0 && n >= f.failAfter {
		return "", f.captureErr
	}
	return f.screen, nil
}

func (f *fakePane) CursorPosition(context.Context, string) (pane.Cursor, error) {
	return f.cursor, nil
}

func (f *fakePane) KillSession(context.Context, string) error {
	f.j.add("kill")
	return nil
}

func (f *fakePane) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// scriptedCompleter replays queued results per request purpose.
type scriptedCompleter struct {
	j         *journal
	mu        sync.Mutex
	script    map[string][]llm.Result
	onRequest func(llm.Request)
}

func newScripted(j *journal) *scriptedCompleter {
	return &scriptedCompleter{j: j, script: map[string][]llm.Result{}}
}

func (s *scriptedCompleter) push(purpose string, results ...llm.Result) *scriptedCompleter {
	s.script[purpose] = append(s.script[purpose], results...)
	return s
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) llm.Result {
	s.j.add(req.Purpose)
	if s.onRequest != nil {
		s.onRequest(req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.script[req.Purpose]
	if len(queue) == 0 {
		return llm.Result{Err: fmt.Errorf("%w: no scripted %s result", llm.ErrTransport, req.Purpose)}
	}
	s.script[req.Purpose] = queue[1:]
	return queue[0]
}

func candidate(done bool, keys ...string) llm.Result {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	obj := fmt.Sprintf(`{"reasoning":"r","mission_complete":%t,"keypresses":[%s],"branch_map":"plan","next_move":"next"}`,
		done, strings.Join(quoted, ","))
	return llm.Result{Kind: llm.KindObject, Object: obj, Text: obj}
}
