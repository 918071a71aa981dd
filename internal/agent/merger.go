package agent

import (
	"context"
	"strings"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

// Merger asks the model to fold critique into the selected candidate.
type Merger struct {
	completer llm.Completer
	prompts   prompt.Assembler
	params    llm.Params
	policy    keys.Policy
	logger    zerolog.Logger
}

// NewMerger constructs a Merger.
func NewMerger(completer llm.Completer, prompts prompt.Assembler, params llm.Params, policy keys.Policy, logger zerolog.Logger) *Merger {
	return &Merger{completer: completer, prompts: prompts, params: params, policy: policy, logger: logger}
}

// Apply returns the revised candidate, or selected unchanged when the model
// answers with the no-change sentinel or with anything that does not validate.
// The second result reports whether a revision was adopted.
func (m *Merger) Apply(ctx context.Context, in prompt.ApplyInput, selected action.Candidate) (action.Candidate, bool) {
	text, err := m.prompts.ApplyCritic(in)
	if err != nil {
		m.logger.Error().Err(err).Msg("build apply-critic prompt")
		return selected, false
	}
	res := m.completer.Complete(ctx, llm.Request{
		Purpose: "apply-critic",
		Prompt:  text,
		Params:  m.params,
		StopAt:  prompt.NoChange,
		Review:  true,
	})
	if res.Err != nil {
		m.logger.Warn().Err(res.Err).Msg("apply-critic request failed")
	}

	if res.Kind != llm.KindObject {
		if strings.Contains(res.Text, prompt.NoChange) {
			m.logger.Debug().Msg("apply-critic kept selected candidate")
		} else {
			m.logger.Warn().Str("reply", res.Text).Msg("apply-critic reply is neither JSON nor no-change")
		}
		return selected, false
	}

	revised, err := action.Validate(action.PromoteKeypresses(res.Object))
	if err == nil {
		_, err = revised.Keys(m.policy)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("reply", res.Object).Msg("apply-critic produced an invalid candidate")
		return selected, false
	}
	if revised.CriticEvaluation == "" {
		revised.CriticEvaluation = selected.CriticEvaluation
	}
	return revised, true
}
