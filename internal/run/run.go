// Package run implements the mission controller that drives a terminal pane
// toward a mission.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/pllm/internal/agent"
	"github.com/metalagman/pllm/internal/console"
	"github.com/metalagman/pllm/internal/history"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/pane"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

// ErrBudgetExhausted is returned when MaxIterations is reached before the
// mission completes.
var ErrBudgetExhausted = errors.New("iteration budget exhausted")

// Config configures one mission run.
type Config struct {
	RunID       string
	SessionName string
	Mission     string
	Geometry    pane.Geometry
	Pane        pane.Options
	// SettleDelay is waited after keys are sent. Zero disables it.
	SettleDelay time.Duration
	// MaxIterations bounds the loop; zero means unlimited.
	MaxIterations int

	HistoryLimit  int
	SummaryLimit  int
	SummaryParams llm.Params
	IncludeScreen bool

	Agent agent.Config
}

// Deps are the collaborators of a Controller. Console and Recorder are
// optional.
type Deps struct {
	Backend   pane.Backend
	Completer llm.Completer
	Prompts   prompt.Assembler
	Console   console.Console
	Recorder  Recorder
	Logger    zerolog.Logger
}

// Controller runs the mission loop.
type Controller struct {
	cfg       Config
	deps      Deps
	pipeline  *agent.Pipeline
	compactor *history.Compactor
	logger    zerolog.Logger

	state RunState
	phase State
	// observe sees every transition; tests only.
	observe func(State)
}

// NewController validates cfg and wires the loop stages.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if deps.Backend == nil {
		return nil, errors.New("pane backend is required")
	}
	if deps.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if deps.Prompts == nil {
		return nil, errors.New("prompt assembler is required")
	}
	if cfg.SessionName == "" {
		return nil, errors.New("session name is required")
	}
	if !cfg.Geometry.Valid() {
		return nil, fmt.Errorf("invalid geometry %s", cfg.Geometry)
	}
	if deps.Console == nil {
		deps.Console = console.Nop{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if cfg.RunID == "" {
		cfg.RunID = cfg.SessionName
	}
	logger := deps.Logger.With().Str("session", cfg.SessionName).Logger()
	return &Controller{
		cfg:       cfg,
		deps:      deps,
		pipeline:  agent.NewPipeline(cfg.Agent, deps.Completer, deps.Prompts, logger),
		compactor: history.NewCompactor(deps.Completer, deps.Prompts, cfg.HistoryLimit, cfg.SummaryLimit, cfg.SummaryParams, logger),
		logger:    logger,
	}, nil
}

// Run drives the mission until the model reports completion, the context is
// canceled, or a pane operation fails. The pane session is destroyed on every
// exit path. An interrupt yields an aborted outcome with a nil error.
func (c *Controller) Run(ctx context.Context) (out Outcome, err error) {
	out.RunID = c.cfg.RunID
	startedAt := time.Now()

	if recErr := c.deps.Recorder.Start(ctx, c.cfg.RunID, c.cfg.SessionName, c.cfg.Mission); recErr != nil {
		c.logger.Warn().Err(recErr).Msg("record run start")
	}
	defer func() {
		out.State = c.state
		if c.state.Interrupted || err != nil {
			c.transition(StateAborted)
		}
		out.Final = c.phase
		finishCtx := context.WithoutCancel(ctx)
		if recErr := c.deps.Recorder.Finish(finishCtx, c.cfg.RunID, out, err); recErr != nil {
			c.logger.Warn().Err(recErr).Msg("record run finish")
		}
		event := c.logger.Info().
			Str("status", out.Status()).
			Int("iterations", c.state.Iteration).
			Dur("duration", time.Since(startedAt))
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("mission finished")
	}()

	c.transition(StateRunning)
	session, err := pane.Create(ctx, c.deps.Backend, c.cfg.SessionName, c.cfg.Geometry, c.cfg.Pane)
	if err != nil {
		if ctx.Err() != nil {
			c.state.Interrupted = true
			return out, nil
		}
		return out, err
	}
	defer func() {
		if derr := session.Destroy(ctx); derr != nil {
			c.logger.Warn().Err(derr).Msg("destroy pane session")
		}
	}()

	log := history.NewLog(c.cfg.IncludeScreen)
	for !c.state.Complete {
		c.transition(StateRunning)
		if ctx.Err() != nil {
			c.state.Interrupted = true
			return out, nil
		}
		if c.cfg.MaxIterations > 0 && c.state.Iteration >= c.cfg.MaxIterations {
			return out, fmt.Errorf("%w after %d iterations", ErrBudgetExhausted, c.state.Iteration)
		}
		c.state.Iteration++

		executed, compacted, err := c.iterate(ctx, session, log)
		if err != nil {
			if ctx.Err() != nil {
				c.state.Interrupted = true
				return out, nil
			}
			return out, err
		}
		if executed {
			out.Executed++
		} else {
			out.Skipped++
		}
		if compacted {
			out.Compactions++
		}
	}
	c.transition(StateComplete)
	return out, nil
}

// iterate runs one pass of the loop. A returned error is fatal.
func (c *Controller) iterate(ctx context.Context, session *pane.Session, log *history.Log) (executed, compacted bool, err error) {
	n := c.state.Iteration
	logger := c.logger.With().Int("iteration", n).Logger()

	c.transition(StateCapturing)
	screen, err := session.Capture(ctx)
	if err != nil {
		return false, false, err
	}
	view := prompt.View{Mission: c.cfg.Mission, Screen: screen}
	c.deps.Console.Screen(n, "screen", screen)

	c.transition(StateAssemblingPrompt)
	text, err := c.deps.Prompts.Main(prompt.MainInput{
		View:             view,
		History:          log.Text(),
		PreviousNextStep: c.state.PreviousNextStep,
		StepsLeft:        c.compactor.Remaining(log),
	})
	if err != nil {
		return false, false, fmt.Errorf("build main prompt: %w", err)
	}

	c.transition(StateSampling)
	decision, err := c.pipeline.Decide(ctx, agent.Turn{
		View:             view,
		Prompt:           text,
		PreviousNextStep: c.state.PreviousNextStep,
		OnStage:          func(s agent.Stage) { c.transition(stageStates[s]) },
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		logger.Warn().Err(err).Msg("iteration skipped")
		return false, false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	c.deps.Console.Decision(n, decision)

	c.transition(StateExecutingKeys)
	if len(decision.Keys) > 0 {
		logger.Info().Stringer("keys", decision.Keys).Msg("sending keys")
		if err := session.Send(ctx, decision.Keys); err != nil {
			return false, false, err
		}
		if err := settle(ctx, c.cfg.SettleDelay); err != nil {
			return false, false, err
		}
	}

	c.transition(StateRecording)
	cand := decision.Candidate
	record := history.Record{
		Time:      time.Now(),
		Cursor:    screen.Cursor,
		Candidate: cand,
		Critique:  cand.CriticEvaluation,
	}
	if c.cfg.IncludeScreen {
		record.Screen = screen.Render()
	}
	log.Append(record)
	c.state.PreviousNextStep = cand.NextStep

	after, err := session.Capture(ctx)
	if err != nil {
		return true, false, err
	}
	c.deps.Console.Screen(n, "after keys", after)
	logger.Debug().Str("screen", after.Text()).Stringer("cursor", after.Cursor).Msg("post-key console state")

	if recErr := c.deps.Recorder.Iteration(ctx, c.cfg.RunID, IterationRecord{
		Iteration: n,
		Time:      record.Time,
		Cursor:    screen.Cursor,
		Decision:  decision,
	}); recErr != nil {
		logger.Warn().Err(recErr).Msg("record iteration")
	}

	if cand.MissionComplete {
		c.state.Complete = true
		logger.Info().Msg("model reported mission complete")
		return true, false, nil
	}

	if c.compactor.Due(log) {
		c.transition(StateCompacting)
		compacted, err = c.compactor.MaybeCompact(ctx, log, prompt.View{Mission: c.cfg.Mission, Screen: after})
		if err != nil {
			return true, false, err
		}
		if summaries := log.Summaries(); compacted && len(summaries) > 0 {
			c.deps.Console.Compacted(summaries[len(summaries)-1])
		}
	}
	return true, compacted, nil
}

func (c *Controller) transition(next State) {
	if c.phase == next {
		return
	}
	c.logger.Debug().Stringer("from", c.phase).Stringer("to", next).Int("iteration", c.state.Iteration).Msg("transition")
	c.phase = next
	if c.observe != nil {
		c.observe(next)
	}
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
