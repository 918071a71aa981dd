package agent

import (
	"context"
	"fmt"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

// Turn is the input of one decision.
type Turn struct {
	View             prompt.View
	Prompt           string
	PreviousNextStep string
	// OnStage, when set, is called as Decide enters each stage.
	OnStage func(Stage)
}

// Stage is a step of Decide.
type Stage int

const (
	StageSampling Stage = iota
	StageValidating
	StageSelecting
	StageApplyingCritic
)

func (t Turn) enter(s Stage) {
	if t.OnStage != nil {
		t.OnStage(s)
	}
}

// Decision is the action chosen for one iteration.
type Decision struct {
	Candidate action.Candidate
	Keys      keys.Sequence
	// Index is the 1-based position of the chosen candidate in Pool.
	Index   int
	Pool    []action.Candidate
	Revised bool
}

// Pipeline runs sample, critique, select and apply-critic for one iteration.
type Pipeline struct {
	cfg      Config
	sampler  *Sampler
	critic   *Critic
	selector *Selector
	merger   *Merger
	logger   zerolog.Logger
}

// NewPipeline wires the stages of the ensemble protocol.
func NewPipeline(cfg Config, completer llm.Completer, prompts prompt.Assembler, logger zerolog.Logger) *Pipeline {
	cfg = cfg.normalized()
	return &Pipeline{
		cfg:      cfg,
		sampler:  NewSampler(completer, cfg.SampleParams, cfg.KeyPolicy, logger),
		critic:   NewCritic(completer, prompts, cfg.CritiqueParams, cfg.CritiqueLimit, logger),
		selector: NewSelector(completer, prompts, cfg.SelectParams, cfg.SelectRetries, logger),
		merger:   NewMerger(completer, prompts, cfg.ApplyParams, cfg.KeyPolicy, logger),
		logger:   logger,
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Decide returns the action for this turn. ErrEmptyPool and
// ErrSelectionExhausted mean the iteration should be skipped.
func (p *Pipeline) Decide(ctx context.Context, turn Turn) (Decision, error) {
	turn.enter(StageSampling)
	pool, err := p.sampler.Sample(ctx, turn.Prompt, p.cfg.Samples)
	if err != nil {
		return Decision{}, err
	}
	turn.enter(StageValidating)

	if p.cfg.Critic || len(pool) > 1 {
		turn.enter(StageSelecting)
	}
	if p.cfg.Critic {
		for i := range pool {
			if err := ctx.Err(); err != nil {
				return Decision{}, err
			}
			pool[i] = pool[i].WithCritique(p.critic.Evaluate(ctx, turn.View, pool[i]))
		}
	}

	index := 1
	if len(pool) > 1 {
		index, err = p.selector.Select(ctx, prompt.SelectInput{
			View:             turn.View,
			Candidates:       pool,
			ShowCritique:     p.cfg.Critic,
			PreviousNextStep: turn.PreviousNextStep,
		})
		if err != nil {
			return Decision{}, err
		}
	}
	chosen := pool[index-1]

	revised := false
	if p.cfg.ApplyCritic {
		turn.enter(StageApplyingCritic)
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		in := prompt.ApplyInput{View: turn.View, Candidates: []action.Candidate{chosen}, Selected: 1}
		if p.cfg.SeeChoices {
			in.Candidates, in.Selected = pool, index
		}
		chosen, revised = p.merger.Apply(ctx, in, chosen)
	}

	seq, err := chosen.Keys(p.cfg.KeyPolicy)
	if err != nil {
		return Decision{}, fmt.Errorf("parse chosen keys: %w", err)
	}
	return Decision{
		Candidate: chosen,
		Keys:      seq,
		Index:     index,
		Pool:      pool,
		Revised:   revised,
	}, nil
}
