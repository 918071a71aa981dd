package agent

import (
	"context"
	"testing"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeCandidates() []action.Candidate {
	return []action.Candidate{{Reasoning: "a"}, {Reasoning: "b"}, {Reasoning: "c"}}
}

func TestParseIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reply string
		n     int
		want  int
		ok    bool
	}{
		{"2", 3, 2, true},
		{"Response #2 is best, the number is 2", 3, 2, true},
		{"  3\nEND_SELECT", 3, 3, true},
		{"0", 3, 0, false},
		{"4", 3, 0, false},
		{"the third one", 3, 0, false},
		{"", 3, 0, false},
		{"99999999999999999999999", 3, 0, false},
		{"1", 1, 1, true},
	}
	for _, tt := range tests {
		got, ok := ParseIndex(tt.reply, tt.n)
		assert.Equal(t, tt.ok, ok, "reply %q", tt.reply)
		assert.Equal(t, tt.want, got, "reply %q", tt.reply)
	}
}

func TestSelector_FirstIntegerWins(t *testing.T) {
	t.Parallel()

	c := newScripted().push("select", text("Response #2 is best, the number is 2"))
	s := NewSelector(c, mustTemplates(), llm.Params{}, 1, zerolog.Nop())

	idx, err := s.Select(context.Background(), prompt.SelectInput{View: testView(), Candidates: threeCandidates()})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, prompt.EndSelect, c.requests[0].StopAt)
}

func TestSelector_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	c := newScripted().push("select", text("7"), text("3"))
	s := NewSelector(c, mustTemplates(), llm.Params{}, 1, zerolog.Nop())

	idx, err := s.Select(context.Background(), prompt.SelectInput{View: testView(), Candidates: threeCandidates()})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 2, c.count("select"))
}

func TestSelector_ExhaustsRetryBound(t *testing.T) {
	t.Parallel()

	c := newScripted().push("select", text("none"), text("0"), text("2"))
	s := NewSelector(c, mustTemplates(), llm.Params{}, 1, zerolog.Nop())

	_, err := s.Select(context.Background(), prompt.SelectInput{View: testView(), Candidates: threeCandidates()})
	require.ErrorIs(t, err, ErrSelectionExhausted)
	assert.Equal(t, 2, c.count("select"))
}
