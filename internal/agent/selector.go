package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

var firstNumber = regexp.MustCompile(`\d+`)

// Selector asks the model to name the best candidate.
type Selector struct {
	completer llm.Completer
	prompts   prompt.Assembler
	params    llm.Params
	retries   int
	logger    zerolog.Logger
}

// NewSelector constructs a Selector that re-asks up to retries times.
func NewSelector(completer llm.Completer, prompts prompt.Assembler, params llm.Params, retries int, logger zerolog.Logger) *Selector {
	return &Selector{completer: completer, prompts: prompts, params: params, retries: retries, logger: logger}
}

// Select returns the 1-based index of the chosen candidate. Only the selection
// request is repeated; the pool is never resampled. After 1+retries answers
// without a valid index it returns ErrSelectionExhausted.
func (s *Selector) Select(ctx context.Context, in prompt.SelectInput) (int, error) {
	text, err := s.prompts.Select(in)
	if err != nil {
		return 0, fmt.Errorf("build select prompt: %w", err)
	}

	attempts := 1 + s.retries
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res := s.completer.Complete(ctx, llm.Request{
			Purpose: "select",
			Prompt:  text,
			Params:  s.params,
			StopAt:  prompt.EndSelect,
		})
		if res.Err != nil {
			s.logger.Warn().Err(res.Err).Int("attempt", attempt).Msg("select request failed")
		}
		if idx, ok := ParseIndex(res.Text, len(in.Candidates)); ok {
			s.logger.Debug().Int("selected", idx).Int("attempt", attempt).Msg("candidate selected")
			return idx, nil
		}
		s.logger.Warn().Str("reply", res.Text).Int("attempt", attempt).Msg("selection reply has no valid index")
	}
	return 0, fmt.Errorf("%w after %d attempts", ErrSelectionExhausted, attempts)
}

// ParseIndex returns the first integer in reply if it lies in [1, n].
func ParseIndex(reply string, n int) (int, bool) {
	m := firstNumber.FindString(reply)
	if m == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(m)
	if err != nil || idx < 1 || idx > n {
		return 0, false
	}
	return idx, true
}
