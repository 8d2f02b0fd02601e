package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scp/internal/interp"
)

// Run is the persisted summary of one interpreted request.
type Run struct {
	ID      string
	Program string
	State   string
	Seq     int64
}

// StepRecord is one persisted trace line.
type StepRecord struct {
	Seq      int64
	Kind     string
	Operator string
	Outcome  string
	Code     string
}

// StepRecords converts interpreter trace steps into rows.
func StepRecords(steps []interp.Step) []StepRecord {
	out := make([]StepRecord, len(steps))
	for i, st := range steps {
		out[i] = StepRecord{
			Seq:      st.Seq,
			Kind:     st.Kind.String(),
			Operator: st.Operator,
			Outcome:  st.Outcome.String(),
			Code:     string(st.Code),
		}
	}
	return out
}

// WriteRun inserts run together with its steps. Rewriting a run ID is a
// no-op so that a replayed run cannot duplicate its trace.
func (s *Store) WriteRun(ctx context.Context, run Run, steps []StepRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, program, state, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Program, run.State, run.Seq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, st := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, seq, kind, operator, outcome, code)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, st.Seq, st.Kind, st.Operator, st.Outcome, st.Code)
		if err != nil {
			return fmt.Errorf("write run: step %d: %w", st.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ReadRun returns a run and its steps ordered by seq.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, []StepRecord, error) {
	var run Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, program, state, seq FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Program, &run.State, &run.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("read run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("read run %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, operator, outcome, code
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		var st StepRecord
		if err := rows.Scan(&st.Seq, &st.Kind, &st.Operator, &st.Outcome, &st.Code); err != nil {
			return Run{}, nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("iterate steps: %w", err)
	}
	return run, steps, nil
}

// CountStepsByKind returns how many recorded steps each operator kind has
// across all runs.
func (s *Store) CountStepsByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM steps GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count steps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan step count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}
