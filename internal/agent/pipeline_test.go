package agent

import (
	"context"
	"testing"

	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(cfg Config, c *scriptedCompleter) *Pipeline {
	return NewPipeline(cfg, c, mustTemplates(), zerolog.Nop())
}

func TestPipeline_SingleSampleSkipsSelection(t *testing.T) {
	t.Parallel()

	c := newScripted().push("sample", object(candidateJSON("only", "l", "s", "Enter")))
	p := newPipeline(DefaultConfig(), c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "only", d.Candidate.Reasoning)
	assert.Equal(t, 1, d.Index)
	assert.Len(t, d.Keys, 3)
	assert.Zero(t, c.count("select"))
	assert.Zero(t, c.count("critique"))
}

func TestPipeline_EnsembleRunsSelection(t *testing.T) {
	t.Parallel()

	c := newScripted().
		push("sample",
			object(candidateJSON("one", "a")),
			object(candidateJSON("two", "b")),
			object(candidateJSON("three", "c"))).
		push("select", text("Response #2 is best, the number is 2"))
	cfg := DefaultConfig()
	cfg.Samples = 3
	p := newPipeline(cfg, c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Index)
	assert.Equal(t, "two", d.Candidate.Reasoning)
	assert.Len(t, d.Pool, 3)
	assert.Equal(t, 1, c.count("select"))
}

func TestPipeline_SelectionExhaustionAbortsIteration(t *testing.T) {
	t.Parallel()

	c := newScripted().
		push("sample", object(candidateJSON("one")), object(candidateJSON("two"))).
		push("select", text("nine"), text("9"))
	cfg := DefaultConfig()
	cfg.Samples = 2
	p := newPipeline(cfg, c)

	_, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.ErrorIs(t, err, ErrSelectionExhausted)
	assert.Equal(t, 2, c.count("sample"))
}

func TestPipeline_ShrunkPoolOfOneSkipsSelection(t *testing.T) {
	t.Parallel()

	c := newScripted().push("sample", object(candidateJSON("one")), text("garbage"))
	cfg := DefaultConfig()
	cfg.Samples = 2
	p := newPipeline(cfg, c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "one", d.Candidate.Reasoning)
	assert.Zero(t, c.count("select"))
}

func TestPipeline_CriticAttachesClippedEvaluation(t *testing.T) {
	t.Parallel()

	c := newScripted().
		push("sample", object(candidateJSON("one"))).
		push("critique", text("  keys look right, but add Enter. END_EVALUATION"))
	cfg := DefaultConfig()
	cfg.Critic = true
	cfg.CritiqueLimit = 15
	p := newPipeline(cfg, c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "keys look right", d.Candidate.CriticEvaluation)
	assert.Equal(t, prompt.EndEvaluation, c.requests[1].StopAt)
}

func TestPipeline_ApplyCriticNoChange(t *testing.T) {
	t.Parallel()

	c := newScripted().
		push("sample", object(candidateJSON("one", "l"))).
		push("critique", text("fine END_EVALUATION")).
		push("apply-critic", text("NO_CHANGE"))
	cfg := DefaultConfig()
	cfg.ApplyCritic = true
	p := newPipeline(cfg, c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.False(t, d.Revised)
	assert.Equal(t, "one", d.Candidate.Reasoning)
	assert.Equal(t, "fine", d.Candidate.CriticEvaluation)
}

func TestPipeline_ApplyCriticRevision(t *testing.T) {
	t.Parallel()

	c := newScripted().
		push("sample", object(candidateJSON("one", "l")), object(candidateJSON("two", "x"))).
		push("critique", text("missing s"), text("wrong")).
		push("select", text("1")).
		push("apply-critic", object(candidateJSON("one fixed", "l", "s", "Enter")))
	cfg := DefaultConfig()
	cfg.Samples = 2
	cfg.ApplyCritic = true
	cfg.SeeChoices = true
	p := newPipeline(cfg, c)

	d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
	require.NoError(t, err)
	assert.True(t, d.Revised)
	assert.Equal(t, "one fixed", d.Candidate.Reasoning)
	assert.Equal(t, "missing s", d.Candidate.CriticEvaluation)
	assert.Equal(t, keys.Key(keys.Enter), d.Keys[2])
	assert.Contains(t, c.requests[len(c.requests)-1].Prompt, "Response #2")
}

func TestPipeline_ApplyCriticMalformedKeepsSelection(t *testing.T) {
	t.Parallel()

	for name, reply := range map[string]llm.Result{
		"invalid object": object(`{"reasoning":"x"}`),
		"free text":      text("I would rather not"),
		"unknown keys":   object(candidateJSON("bad", "")),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := newScripted().
				push("sample", object(candidateJSON("one", "l"))).
				push("critique", text("ok")).
				push("apply-critic", reply)
			cfg := DefaultConfig()
			cfg.ApplyCritic = true
			p := newPipeline(cfg, c)

			d, err := p.Decide(context.Background(), Turn{View: testView(), Prompt: "p"})
			require.NoError(t, err)
			assert.False(t, d.Revised)
			assert.Equal(t, "one", d.Candidate.Reasoning)
		})
	}
}
