package run

import "github.com/metalagman/pllm/internal/agent"

// State is a step of the mission state machine.
type State int

const (
	StateRunning State = iota
	StateCapturing
	StateAssemblingPrompt
	StateSampling
	StateValidating
	StateSelecting
	StateApplyingCritic
	StateExecutingKeys
	StateRecording
	StateCompacting
	StateComplete
	StateAborted
)

var stateNames = [...]string{
	StateRunning:          "running",
	StateCapturing:        "capturing",
	StateAssemblingPrompt: "assembling_prompt",
	StateSampling:         "sampling",
	StateValidating:       "validating",
	StateSelecting:        "selecting",
	StateApplyingCritic:   "applying_critic",
	StateExecutingKeys:    "executing_keys",
	StateRecording:        "recording",
	StateCompacting:       "compacting",
	StateComplete:         "complete",
	StateAborted:          "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAborted
}

var stageStates = map[agent.Stage]State{
	agent.StageSampling:       StateSampling,
	agent.StageValidating:     StateValidating,
	agent.StageSelecting:      StateSelecting,
	agent.StageApplyingCritic: StateApplyingCritic,
}

// RunState is the controller's mutable progress.
type RunState struct {
	Iteration        int
	Complete         bool
	PreviousNextStep string
	Interrupted      bool
}

// Outcome summarizes a finished mission.
type Outcome struct {
	RunID    string
	Final    State
	State    RunState
	Executed int
	Skipped  int
	// Compactions counts history compactions.
	Compactions int
}

// Status is the persisted run status for the outcome.
func (o Outcome) Status() string {
	switch {
	case o.Final == StateComplete:
		return "complete"
	case o.State.Interrupted:
		return "interrupted"
	default:
		return "aborted"
	}
}
