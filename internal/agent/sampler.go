package agent

import (
	"context"
	"fmt"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/rs/zerolog"
)

// Sampler requests independent candidate actions for one prompt.
type Sampler struct {
	completer llm.Completer
	params    llm.Params
	policy    keys.Policy
	logger    zerolog.Logger
}

// NewSampler constructs a Sampler.
func NewSampler(completer llm.Completer, params llm.Params, policy keys.Policy, logger zerolog.Logger) *Sampler {
	return &Sampler{completer: completer, params: params, policy: policy, logger: logger}
}

// Sample issues n sequential requests and returns the candidates that
// validated, in request order. An empty pool is ErrEmptyPool.
func (s *Sampler) Sample(ctx context.Context, prompt string, n int) ([]action.Candidate, error) {
	pool := make([]action.Candidate, 0, n)
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := s.logger.With().Int("sample", i+1).Int("of", n).Logger()

		res := s.completer.Complete(ctx, llm.Request{
			Purpose: "sample",
			Prompt:  prompt,
			Params:  s.params,
			Review:  true,
		})
		if res.Err != nil {
			l.Warn().Err(res.Err).Msg("sample request failed")
		}
		if res.Kind != llm.KindObject {
			l.Warn().Msg("sample produced no JSON object")
			continue
		}
		cand, err := action.Validate(res.Object)
		if err != nil {
			l.Warn().Err(err).Msg("discarding invalid candidate")
			continue
		}
		if _, err := cand.Keys(s.policy); err != nil {
			l.Warn().Err(err).Msg("discarding candidate with unknown keys")
			continue
		}
		pool = append(pool, cand)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d samples validated", ErrEmptyPool, n)
	}
	return pool, nil
}
