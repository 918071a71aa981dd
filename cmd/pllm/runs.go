package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/pllm/internal/run"
	"github.com/spf13/cobra"
)

const missionColumnWidth = 48

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "runs",
		Short:        "List recorded missions, newest first",
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
			storeDB, closeFn, err := openDB(absStateDir(root, cfg.StateDir))
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := run.NewStore(storeDB).ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most N runs (0 = all)")
	return cmd
}

func renderRuns(runs []run.RunSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "SESSION", "CREATED", "STATUS", "ITER", "MISSION")
	for _, r := range runs {
		t.Row(r.RunID[:min(8, len(r.RunID))], r.Session, r.CreatedAt, r.Status, strconv.Itoa(r.Iterations), oneLine(r.Mission, missionColumnWidth))
	}
	return t.Render()
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
