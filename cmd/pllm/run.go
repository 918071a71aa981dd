package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/metalagman/pllm/internal/agent"
	"github.com/metalagman/pllm/internal/config"
	"github.com/metalagman/pllm/internal/console"
	"github.com/metalagman/pllm/internal/history"
	"github.com/metalagman/pllm/internal/keys"
	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/logging"
	"github.com/metalagman/pllm/internal/mission"
	"github.com/metalagman/pllm/internal/pane"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/metalagman/pllm/internal/review"
	"github.com/metalagman/pllm/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runFlags maps run flags to config keys.
var runFlags = map[string]string{
	"endpoint":       "llm.endpoint",
	"samples":        "loop.samples",
	"select-retries": "loop.select_retries",
	"critic":         "loop.critic",
	"apply-critic":   "loop.apply_critic",
	"see-choices":    "loop.see_choices",
	"max-iterations": "loop.max_iterations",
	"history-limit":  "history.limit",
	"include-screen": "history.include_screen",
	"cols":           "pane.cols",
	"rows":           "pane.rows",
	"socket":         "pane.socket",
	"unknown-keys":   "pane.unknown_keys",
	"review":         "review.enabled",
	"echo":           "llm.echo",
}

func runCmd() *cobra.Command {
	var missionText string
	var missionFile string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run [mission]",
		Short: "Run a mission in a fresh tmux session",
		Long: "Run a mission in a fresh tmux session. The mission is given inline, with --mission, " +
			"or with --mission-file; a mission file may start with YAML front matter overriding config keys.",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolveMission(missionText, missionFile, args)
			if err != nil {
				return err
			}
			root, err := workDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root, m.Overrides)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var view console.Console = console.NewPanel(cmd.OutOrStdout())
			if quiet {
				view = console.Nop{}
			}
			return runMission(ctx, absStateDir(root, cfg.StateDir), cfg, m, view)
		},
	}
	cmd.Flags().StringVar(&missionText, "mission", "", "mission text")
	cmd.Flags().StringVar(&missionFile, "mission-file", "", "file with the mission, optionally with YAML front matter")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not render console panels")

	d := config.Default()
	cmd.Flags().String("endpoint", d.LLM.Endpoint, "completion endpoint URL")
	cmd.Flags().Int("samples", d.Loop.Samples, "candidates sampled per iteration")
	cmd.Flags().Int("select-retries", d.Loop.SelectRetries, "extra selection attempts")
	cmd.Flags().Bool("critic", d.Loop.Critic, "critique every candidate")
	cmd.Flags().Bool("apply-critic", d.Loop.ApplyCritic, "let the model revise the chosen candidate (implies --critic)")
	cmd.Flags().Bool("see-choices", d.Loop.SeeChoices, "show the whole pool when revising")
	cmd.Flags().Int("max-iterations", d.Loop.MaxIterations, "stop after N iterations (0 = unlimited)")
	cmd.Flags().Int("history-limit", d.History.Limit, "records kept before the history is summarized")
	cmd.Flags().Bool("include-screen", d.History.IncludeScreen, "keep console state in history records")
	cmd.Flags().Int("cols", d.Pane.Cols, "pane width")
	cmd.Flags().Int("rows", d.Pane.Rows, "pane height")
	cmd.Flags().String("socket", d.Pane.Socket, "tmux socket name (-L)")
	cmd.Flags().String("unknown-keys", d.Pane.UnknownKeys, "unknown key tokens: literal or reject")
	cmd.Flags().Bool("review", d.Review.Enabled, "offer to edit each decoded object in $EDITOR")
	cmd.Flags().Bool("echo", d.LLM.Echo, "echo streamed tokens")
	for flag, key := range runFlags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", flag, err))
		}
	}
	return cmd
}

func resolveMission(text, file string, args []string) (mission.Mission, error) {
	given := 0
	for _, s := range []string{text, file} {
		if s != "" {
			given++
		}
	}
	given += len(args)
	switch {
	case given == 0:
		return mission.Mission{}, errors.New("a mission is required (argument, --mission or --mission-file)")
	case given > 1:
		return mission.Mission{}, errors.New("give the mission only once")
	case file != "":
		return mission.Load(file)
	case text != "":
		return mission.Parse([]byte(text))
	default:
		return mission.Parse([]byte(args[0]))
	}
}

func runMission(ctx context.Context, dir string, cfg config.Config, m mission.Mission, view console.Console) error {
	storeDB, closeFn, err := openDB(dir)
	if err != nil {
		return err
	}
	defer closeFn()

	lock, ok, err := run.TryAcquireRunLock(dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("another pllm run holds %s", filepath.Join(dir, "locks", "run.lock"))
	}
	defer func() { _ = lock.Release() }()

	store := run.NewStore(storeDB)
	if n, err := store.MarkStale(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Warn().Int64("runs", n).Msg("marked unfinished runs as stale")
	}

	runID := uuid.New().String()
	session := "pllm-" + runID[:8]

	audit, err := logging.OpenAudit(cfg.Log.AuditFile, session)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	client, err := newClient(cfg, audit)
	if err != nil {
		return err
	}
	prompts, err := prompt.NewTemplates()
	if err != nil {
		return err
	}

	controller, err := run.NewController(controllerConfig(cfg, runID, session, m.Text), run.Deps{
		Backend:   pane.NewTmux(cfg.Pane.Socket),
		Completer: client,
		Prompts:   prompts,
		Console:   view,
		Recorder:  store,
		Logger:    log.Logger,
	})
	if err != nil {
		return err
	}

	log.Info().Str("session", session).Str("run_id", runID).Msg("mission started")
	out, err := controller.Run(ctx)
	if err != nil {
		return fmt.Errorf("mission aborted: %w", err)
	}
	if out.State.Interrupted {
		return errors.New("mission interrupted")
	}
	log.Info().
		Int("iterations", out.State.Iteration).
		Int("executed", out.Executed).
		Int("skipped", out.Skipped).
		Int("compactions", out.Compactions).
		Msg("mission complete")
	return nil
}

func newClient(cfg config.Config, audit *logging.Audit) (*llm.Client, error) {
	opts := []llm.Option{
		llm.WithLogger(log.Logger),
		llm.WithAudit(audit.Logger),
	}
	if cfg.LLM.Echo {
		opts = append(opts, llm.WithEcho(os.Stdout))
	}
	if cfg.Review.Enabled {
		opts = append(opts, llm.WithReviewer(review.NewEditor(cfg.Review.Editor, cfg.Review.Timeout, log.Logger)))
	}
	return llm.NewClient(llm.Config{
		Endpoint:  cfg.LLM.Endpoint,
		APIKey:    cfg.LLM.APIKey,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Timeout:   cfg.LLM.Timeout,
		Defaults: llm.Params{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: llm.Temperature(cfg.LLM.Temperature),
			TopK:        cfg.LLM.TopK,
			TopP:        cfg.LLM.TopP,
			MinP:        cfg.LLM.MinP,
		},
	}, &http.Client{}, opts...)
}

func controllerConfig(cfg config.Config, runID, session, text string) run.Config {
	a := agent.DefaultConfig()
	a.Samples = cfg.Loop.Samples
	a.SelectRetries = cfg.Loop.SelectRetries
	a.Critic = cfg.Loop.Critic
	a.ApplyCritic = cfg.Loop.ApplyCritic
	a.SeeChoices = cfg.Loop.SeeChoices
	a.CritiqueLimit = cfg.Loop.CritiqueLimit
	a.KeyPolicy = keys.Policy(cfg.Pane.UnknownKeys)

	return run.Config{
		RunID:       runID,
		SessionName: session,
		Mission:     text,
		Geometry:    pane.Geometry{Cols: cfg.Pane.Cols, Rows: cfg.Pane.Rows},
		Pane: pane.Options{
			KeyDelay:     cfg.Pane.KeyDelay,
			StartupDelay: cfg.Pane.StartupDelay,
			Logger:       log.Logger,
		},
		SettleDelay:   cfg.Loop.SettleDelay,
		MaxIterations: cfg.Loop.MaxIterations,
		HistoryLimit:  cfg.History.Limit,
		SummaryLimit:  cfg.History.SummaryLimit,
		SummaryParams: history.DefaultParams(),
		IncludeScreen: cfg.History.IncludeScreen,
		Agent:         a,
	}
}
