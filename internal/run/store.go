package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/pllm/internal/agent"
	"github.com/metalagman/pllm/internal/pane"
)

// Recorder persists run progress. Failures are logged, never fatal.
type Recorder interface {
	Start(ctx context.Context, runID, session, mission string) error
	Iteration(ctx context.Context, runID string, rec IterationRecord) error
	Finish(ctx context.Context, runID string, out Outcome, runErr error) error
}

// IterationRecord is one executed iteration.
type IterationRecord struct {
	Iteration int
	Time      time.Time
	Cursor    pane.Cursor
	Decision  agent.Decision
}

type nopRecorder struct{}

func (nopRecorder) Start(context.Context, string, string, string) error      { return nil }
func (nopRecorder) Iteration(context.Context, string, IterationRecord) error { return nil }
func (nopRecorder) Finish(context.Context, string, Outcome, error) error     { return nil }

// Store persists runs and iterations in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a store for run/iteration persistence.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Start inserts the run record and a run_started event.
func (s *Store) Start(ctx context.Context, runID, session, mission string) error {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(run_id, session, created_at, mission, status) VALUES(?, ?, ?, ?, ?)`,
		runID, session, createdAt, mission, "running"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertEvent(ctx, tx, runID, "run_started", "run started", ""); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// Iteration inserts an executed iteration and bumps the run counter.
func (s *Store) Iteration(ctx context.Context, runID string, rec IterationRecord) error {
	keysJSON, err := json.Marshal(rec.Decision.Candidate.Keypresses)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	c := rec.Decision.Candidate
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin iteration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO iterations(run_id, iteration, ts, cursor_x, cursor_y, keys, reasoning, next_move, critique, pool_size, selected, revised, mission_complete)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Iteration, rec.Time.UTC().Format(time.RFC3339), rec.Cursor.X, rec.Cursor.Y, string(keysJSON),
		c.Reasoning, c.NextStep, nullableString(c.CriticEvaluation), len(rec.Decision.Pool), rec.Decision.Index,
		rec.Decision.Revised, c.MissionComplete); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert iteration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET iterations=? WHERE run_id=?`, rec.Iteration, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit iteration: %w", err)
	}
	return nil
}

// Finish stores the final status and a run_finished event.
func (s *Store) Finish(ctx context.Context, runID string, out Outcome, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}
	data, err := json.Marshal(map[string]int{
		"executed":    out.Executed,
		"skipped":     out.Skipped,
		"compactions": out.Compactions,
	})
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin finish run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, iterations=?, compactions=?, error=? WHERE run_id=?`,
		out.Status(), time.Now().UTC().Format(time.RFC3339), out.State.Iteration, out.Compactions, nullableString(errText), runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}
	if err := insertEvent(ctx, tx, runID, "run_finished", out.Status(), string(data)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish run: %w", err)
	}
	return nil
}

// RunSummary is a row of the runs listing.
type RunSummary struct {
	RunID      string
	Session    string
	CreatedAt  string
	Status     string
	Iterations int
	Mission    string
	Error      string
}

// ListRuns returns the newest runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, session, created_at, status, iterations, mission, COALESCE(error, '') FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Session, &r.CreatedAt, &r.Status, &r.Iterations, &r.Mission, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRunStatus returns the status for a run id, or empty if missing.
func (s *Store) GetRunStatus(ctx context.Context, runID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_id=?`, runID)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read run status: %w", err)
	}
	return status, nil
}

// MarkStale flags runs left in the running state by a crashed process.
// It must be called while holding the run lock.
func (s *Store) MarkStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status='stale' WHERE status='running'`)
	if err != nil {
		return 0, fmt.Errorf("mark stale runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark stale runs: %w", err)
	}
	return n, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, runID, typ, message, dataJSON string) error {
	seq, err := nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(run_id, seq, ts, type, message, data_json) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, seq, ts, typ, message, nullableString(dataJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func nextSeq(ctx context.Context, tx *sql.Tx, runID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id=?`, runID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
