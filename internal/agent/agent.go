// Package agent turns one prompt into one chosen action: it samples an
// ensemble of candidates, optionally critiques them, lets the model vote for
// the best one and optionally lets it revise the winner.
package agent

import (
	"errors"

	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
)

var (
	// ErrEmptyPool means no sampled candidate survived validation.
	ErrEmptyPool = errors.New("no valid candidates")
	// ErrSelectionExhausted means the model never named a valid candidate
	// within the retry budget.
	ErrSelectionExhausted = errors.New("selection exhausted")
)

const defaultCritiqueLimit = 390

// Config controls the ensemble protocol.
type Config struct {
	// Samples is the number of candidates requested per iteration.
	Samples int
	// Critic attaches an evaluation to every candidate.
	Critic bool
	// ApplyCritic asks the model to revise the selected candidate.
	ApplyCritic bool
	// SeeChoices shows every candidate, not only the selected one, when revising.
	SeeChoices bool
	// SelectRetries is the number of extra selection requests after the first.
	SelectRetries int
	// CritiqueLimit caps an evaluation in characters.
	CritiqueLimit int
	KeyPolicy     keys.Policy

	SampleParams   llm.Params
	CritiqueParams llm.Params
	SelectParams   llm.Params
	ApplyParams    llm.Params
}

// DefaultConfig returns the single-sample configuration.
func DefaultConfig() Config {
	return Config{
		Samples:        1,
		SelectRetries:  1,
		CritiqueLimit:  defaultCritiqueLimit,
		KeyPolicy:      keys.PolicyLiteral,
		CritiqueParams: llm.Params{MaxTokens: 256, Temperature: llm.Temperature(0.8)},
		SelectParams:   llm.Params{MaxTokens: 10, Temperature: llm.Temperature(0.3)},
		ApplyParams:    llm.Params{Temperature: llm.Temperature(0.3)},
	}
}

func (c Config) normalized() Config {
	if c.Samples < 1 {
		c.Samples = 1
	}
	if c.SelectRetries < 0 {
		c.SelectRetries = 0
	}
	if c.CritiqueLimit <= 0 {
		c.CritiqueLimit = defaultCritiqueLimit
	}
	if !c.KeyPolicy.Valid() {
		c.KeyPolicy = keys.PolicyLiteral
	}
	if c.ApplyCritic {
		c.Critic = true
	}
	return c
}
