package main

import (
	"errors"
	"fmt"

	"github.com/metalagman/pllm/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	var keepLast int
	var keepDays int
	var dryRun bool
	var all bool
	cmd := &cobra.Command{
		Use:          "prune",
		Short:        "Prune old runs from the database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root, nil)
			if err != nil {
				return err
			}
			dir := absStateDir(root, cfg.StateDir)
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
				return errors.New("a pllm run is in progress; try again later")
			}
			defer func() { _ = lock.Release() }()

			if all {
				if dryRun {
					return errors.New("--all cannot be combined with --dry-run")
				}
				if err := run.PruneAll(cmd.Context(), storeDB); err != nil {
					return fmt.Errorf("prune failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pruned all runs.")
				return nil
			}

			policy := run.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				policy = run.RetentionPolicy{KeepLast: cfg.Retain.KeepLast, KeepDays: cfg.Retain.KeepDays}
			}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return errors.New("set --keep-last or --keep-days (or configure retention)")
			}

			res, err := run.PruneRuns(cmd.Context(), storeDB, policy, dryRun)
			if err != nil {
				return err
			}
			mode := "deleted"
			if dryRun {
				mode = "would delete"
			}
			log.Info().Msgf("%s %d runs (kept %d of %d)", mode, res.Deleted, res.Kept, res.Considered)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without deleting")
	cmd.Flags().BoolVar(&all, "all", false, "delete every run")
	return cmd
}
