package run

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetentionPolicy controls run cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
}

// PruneRuns deletes old run records. Iterations and events go with them.
// Runs still marked running are always kept.
func PruneRuns(ctx context.Context, db *sql.DB, policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}
	rows, err := db.QueryContext(ctx, `SELECT run_id, created_at, status FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type runRow struct {
		id        string
		createdAt time.Time
		status    string
		parseErr  error
	}
	var runs []runRow
	for rows.Next() {
		var id, createdAt, status string
		if err := rows.Scan(&id, &createdAt, &status); err != nil {
			return PruneResult{}, fmt.Errorf("scan run: %w", err)
		}
		parsed, parseErr := time.Parse(time.RFC3339, createdAt)
		runs = append(runs, runRow{id: id, createdAt: parsed, status: status, parseErr: parseErr})
	}
	if err := rows.Err(); err != nil {
		return PruneResult{}, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()

	res := PruneResult{Considered: len(runs)}
	for idx, row := range runs {
		keep := row.status == "running"
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 && (row.parseErr != nil || row.createdAt.After(cutoff)) {
			keep = true
		}
		if keep {
			res.Kept++
			continue
		}
		if !dryRun {
			if _, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id=?`, row.id); err != nil {
				return res, fmt.Errorf("delete run %s: %w", row.id, err)
			}
		}
		res.Deleted++
	}
	return res, nil
}

// PruneAll removes every run record.
func PruneAll(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"events", "iterations", "runs"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s table: %w", table, err)
		}
	}
	return nil
}
