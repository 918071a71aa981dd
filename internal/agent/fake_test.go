package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/metalagman/pllm/internal/pane"
)

// scriptedCompleter replays queued results per request purpose.
type scriptedCompleter struct {
	mu       sync.Mutex
	script   map[string][]llm.Result
	requests []llm.Request
}

func newScripted() *scriptedCompleter {
	return &scriptedCompleter{script: map[string][]llm.Result{}}
}

func (s *scriptedCompleter) push(purpose string, results ...llm.Result) *scriptedCompleter {
	s.script[purpose] = append(s.script[purpose], results...)
	return s
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) llm.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	queue := s.script[req.Purpose]
	if len(queue) == 0 {
		return llm.Result{Err: fmt.Errorf("%w: no scripted %s result", llm.ErrTransport, req.Purpose)}
	}
	s.script[req.Purpose] = queue[1:]
	return queue[0]
}

func (s *scriptedCompleter) count(purpose string) int {
	n := 0
	for _, r := range s.requests {
		if r.Purpose == purpose {
			n++
		}
	}
	return n
}

func object(s string) llm.Result { return llm.Result{Kind: llm.KindObject, Object: s, Text: s} }

func text(s string) llm.Result { return llm.Result{Kind: llm.KindText, Text: s} }

func candidateJSON(reasoning string, keys ...string) string {
	quoted := "["
	for i, k := range keys {
		if i > 0 {
			quoted += ","
		}
		quoted += fmt.Sprintf("%q", k)
	}
	quoted += "]"
	return fmt.Sprintf(`{"reasoning":%q,"mission_complete":false,"keypresses":%s,"branch_map":"plan","next_move":"next"}`, reasoning, quoted)
}

func testView() prompt.View {
	return prompt.View{
		Mission: "list files",
		Screen: pane.Capture{
			Lines:    []string{"$   "},
			Geometry: pane.Geometry{Cols: 4, Rows: 1},
		},
	}
}

func mustTemplates() *prompt.Templates {
	p, err := prompt.NewTemplates()
	if err != nil {
		panic(err)
	}
	return p
}
