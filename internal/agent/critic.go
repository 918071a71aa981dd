package agent

import (
	"context"
	"strings"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

// Critic asks the model for a short evaluation of a candidate.
type Critic struct {
	completer llm.Completer
	prompts   prompt.Assembler
	params    llm.Params
	limit     int
	logger    zerolog.Logger
}

// NewCritic constructs a Critic whose evaluations are cut to limit characters.
func NewCritic(completer llm.Completer, prompts prompt.Assembler, params llm.Params, limit int, logger zerolog.Logger) *Critic {
	return &Critic{completer: completer, prompts: prompts, params: params, limit: limit, logger: logger}
}

// Evaluate returns the critique for cand. Failures yield an empty critique.
func (c *Critic) Evaluate(ctx context.Context, view prompt.View, cand action.Candidate) string {
	text, err := c.prompts.Critique(prompt.CritiqueInput{View: view, Candidate: cand})
	if err != nil {
		c.logger.Error().Err(err).Msg("build critique prompt")
		return ""
	}
	res := c.completer.Complete(ctx, llm.Request{
		Purpose: "critique",
		Prompt:  text,
		Params:  c.params,
		StopAt:  prompt.EndEvaluation,
	})
	if res.Err != nil {
		c.logger.Warn().Err(res.Err).Msg("critique request failed")
	}
	return clip(stripMarker(res.Text, prompt.EndEvaluation), c.limit)
}

// stripMarker cuts s at marker and trims surrounding space.
func stripMarker(s, marker string) string {
	if before, _, found := strings.Cut(s, marker); found {
		s = before
	}
	return strings.TrimSpace(s)
}

// clip truncates s to at most limit runes.
func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
