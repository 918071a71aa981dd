package run

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/metalagman/pllm/internal/agent"
	"github.com/metalagman/pllm/internal/db"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/pane"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SessionName:  "pllm-test",
		Mission:      "list files",
		Geometry:     pane.Geometry{Cols: 20, Rows: 3},
		Pane:         pane.Options{KeyDelay: -1, StartupDelay: -1},
		HistoryLimit: 5,
		Agent:        agent.DefaultConfig(),
	}
}

func newTestController(t *testing.T, cfg Config, backend pane.Backend, completer llm.Completer, rec Recorder) *Controller {
	t.Helper()
	prompts, err := prompt.NewTemplates()
	require.NoError(t, err)
	c, err := NewController(cfg, Deps{
		Backend:   backend,
		Completer: completer,
		Prompts:   prompts,
		Recorder:  rec,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestController_CompletesAndTearsDown(t *testing.T) {
	t.Parallel()

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).push("sample", candidate(true, "l", "s", " ", "Enter"))

	out, err := newTestController(t, testConfig(), backend, completer, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, out.Final)
	assert.Equal(t, "complete", out.Status())
	assert.True(t, out.State.Complete)
	assert.Equal(t, 1, out.State.Iteration)
	assert.Equal(t, 1, out.Executed)
	assert.Equal(t, []string{"l", "s", "Space", "Enter"}, backend.keys())
	assert.Equal(t, 1, j.count("kill"))
}

func TestController_CompactsBeforeSixthCapture(t *testing.T) {
	t.Parallel()

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).
		push("sample", candidate(false, "a"), candidate(false, "b"), candidate(false, "c"), candidate(false, "d"), candidate(false, "e")).
		push("sample", candidate(true)).
		push("summary", llm.Result{Kind: llm.KindText, Text: "- five steps done\n" + prompt.EndSummary})

	out, err := newTestController(t, testConfig(), backend, completer, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Compactions)
	assert.Equal(t, 6, out.State.Iteration)

	// Each iteration captures before and after keys.
	summary := j.index("summary", 1)
	require.NotEqual(t, -1, summary)
	assert.Less(t, j.index("capture", 10), summary)
	assert.Less(t, summary, j.index("capture", 11))
	assert.Equal(t, 1, j.count("summary"))
}

func TestController_EmptyPoolSkipsIteration(t *testing.T) {
	t.Parallel()

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).
		push("sample", llm.Result{Kind: llm.KindText, Text: "no json here"}, candidate(true, "q"))

	out, err := newTestController(t, testConfig(), backend, completer, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, out.Final)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 1, out.Executed)
	assert.Equal(t, []string{"q"}, backend.keys())
}

func TestController_SelectionExhaustionSkipsKeys(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Agent.Samples = 2
	cfg.Agent.SelectRetries = 0

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).
		push("sample", candidate(false, "x"), candidate(false, "y"), candidate(true, "z"), candidate(true, "w")).
		push("select", llm.Result{Kind: llm.KindText, Text: "none of them"}, llm.Result{Kind: llm.KindText, Text: "2"})

	out, err := newTestController(t, cfg, backend, completer, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, []string{"w"}, backend.keys())
}

func TestController_CaptureFailureIsFatal(t *testing.T) {
	t.Parallel()

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ ", failAfter: 1, captureErr: errors.New("no server")}
	completer := newScripted(j)

	out, err := newTestController(t, testConfig(), backend, completer, nil).Run(context.Background())
	require.ErrorIs(t, err, pane.ErrCapture)
	assert.Equal(t, StateAborted, out.Final)
	assert.Equal(t, "aborted", out.Status())
	assert.Equal(t, 1, j.count("kill"))
	assert.Zero(t, j.count("sample"))
}

func TestController_InterruptStopsRequests(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).push("sample", candidate(false, "a"), candidate(false, "b"))
	completer.onRequest = func(llm.Request) { cancel() }

	out, err := newTestController(t, testConfig(), backend, completer, nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, out.State.Interrupted)
	assert.Equal(t, StateAborted, out.Final)
	assert.Equal(t, "interrupted", out.Status())
	assert.Equal(t, 1, j.count("sample"))
	assert.Empty(t, backend.keys())
	assert.Equal(t, 1, j.count("kill"))
}

func TestController_IterationBudget(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxIterations = 2

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).push("sample", candidate(false, "a"), candidate(false, "b"), candidate(false, "c"))

	out, err := newTestController(t, cfg, backend, completer, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, StateAborted, out.Final)
	assert.Equal(t, 2, out.State.Iteration)
	assert.Equal(t, 2, j.count("sample"))
}

func TestController_PersistsRun(t *testing.T) {
	t.Parallel()

	conn, err := db.Open(filepath.Join(t.TempDir(), "pllm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	store := NewStore(conn)

	cfg := testConfig()
	cfg.RunID = "run-1"
	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).push("sample", candidate(false, "l"), candidate(true, "Enter"))

	_, err = newTestController(t, cfg, backend, completer, store).Run(context.Background())
	require.NoError(t, err)

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, 2, runs[0].Iterations)
	assert.Equal(t, "list files", runs[0].Mission)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM iterations WHERE run_id='run-1'`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestNewController_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewController(testConfig(), Deps{})
	require.Error(t, err)

	cfg := testConfig()
	cfg.Geometry = pane.Geometry{}
	prompts, err := prompt.NewTemplates()
	require.NoError(t, err)
	_, err = NewController(cfg, Deps{Backend: &fakePane{j: &journal{}}, Completer: newScripted(&journal{}), Prompts: prompts})
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "assembling_prompt", StateAssemblingPrompt.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateSampling.Terminal())
}

func TestController_WalksEnsembleStates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Agent.Samples = 2
	cfg.Agent.ApplyCritic = true

	j := &journal{}
	backend := &fakePane{j: j, screen: "$ "}
	completer := newScripted(j).
		push("sample", candidate(true, "a"), candidate(true, "b")).
		push("critique", llm.Result{Kind: llm.KindText, Text: "fine"}, llm.Result{Kind: llm.KindText, Text: "meh"}).
		push("select", llm.Result{Kind: llm.KindText, Text: "1"}).
		push("apply-critic", llm.Result{Kind: llm.KindText, Text: prompt.NoChange})

	var seen []State
	c := newTestController(t, cfg, backend, completer, nil)
	c.observe = func(s State) { seen = append(seen, s) }
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateCapturing, StateAssemblingPrompt, StateSampling, StateValidating,
		StateSelecting, StateApplyingCritic, StateExecutingKeys, StateRecording, StateComplete,
	}, seen)
	assert.Equal(t, []string{"a"}, backend.keys())
}
