// Package ledger records every run file split-nlogo writes in a SQLite
// database, so sweeps can be queried after the fact (which run file holds
// which parameter values).
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nvandessel/split-nlogo/internal/expand"
	"github.com/nvandessel/split-nlogo/internal/naming"

	_ "modernc.org/sqlite" // SQLite driver
)

// Ledger is an open run ledger.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run ledger %s: %w", path, err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file the ledger was opened from.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Value is one variable assignment of a run.
type Value struct {
	Variable string
	Value    string
}

// Run is one recorded run file.
type Run struct {
	Number int
	File   string
	Values []Value
}

// Experiment is everything recorded for one expanded experiment.
type Experiment struct {
	Name               string
	ModelFile          string
	Repetitions        int
	RepetitionsPerRun  int
	RunsPerCombination int
	Combinations       int
	TotalRuns          int
	Runs               []Run
}

// Recorder is an expand.RunSink that collects runs for a later Commit.
type Recorder struct {
	policy naming.Policy
	runs   []Run
}

// NewRecorder returns a Recorder that names run files with policy.
func NewRecorder(policy naming.Policy) *Recorder {
	return &Recorder{policy: policy}
}

// Emit records run.
func (r *Recorder) Emit(run expand.RunInstance) error {
	values := make([]Value, len(run.Combination))
	for i, p := range run.Combination {
		values[i] = Value{Variable: p.Variable, Value: p.Value.String()}
	}
	r.runs = append(r.runs, Run{
		Number: run.Number,
		File:   r.policy.RunFilePath(run.Experiment, run.Number, run.Width),
		Values: values,
	})
	return nil
}

// Experiment assembles the recorded runs with the expansion result and
// clears the recorder.
func (r *Recorder) Experiment(modelFile string, res *expand.Result) Experiment {
	exp := Experiment{
		Name:               res.Processed.Name,
		ModelFile:          modelFile,
		Repetitions:        res.Plan.Repetitions.Original,
		RepetitionsPerRun:  res.Plan.Repetitions.InExperiment,
		RunsPerCombination: res.Plan.Repetitions.OfExperiment,
		Combinations:       res.Plan.Combinations,
		TotalRuns:          res.Processed.TotalRuns,
		Runs:               r.runs,
	}
	r.runs = nil
	return exp
}

// Commit stores exp, replacing whatever was recorded earlier under the
// same experiment name. The whole experiment is written in one
// transaction.
func (l *Ledger) Commit(ctx context.Context, exp Experiment) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, exp.Name); err != nil {
		return fmt.Errorf("failed to clear experiment %q: %w", exp.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO experiments (name, model_file, repetitions, repetitions_per_run,
			runs_per_combination, combinations, total_runs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		exp.Name, exp.ModelFile, exp.Repetitions, exp.RepetitionsPerRun,
		exp.RunsPerCombination, exp.Combinations, exp.TotalRuns); err != nil {
		return fmt.Errorf("failed to insert experiment %q: %w", exp.Name, err)
	}

	runStmt, err := tx.PrepareContext(ctx, `INSERT INTO runs (experiment, number, file) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert: %w", err)
	}
	defer runStmt.Close()

	valueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_values (experiment, number, position, variable, value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer valueStmt.Close()

	for _, run := range exp.Runs {
		if _, err := runStmt.ExecContext(ctx, exp.Name, run.Number, run.File); err != nil {
			return fmt.Errorf("failed to insert run %d of %q: %w", run.Number, exp.Name, err)
		}
		for i, v := range run.Values {
			if _, err := valueStmt.ExecContext(ctx, exp.Name, run.Number, i, v.Variable, v.Value); err != nil {
				return fmt.Errorf("failed to insert value %s of run %d: %w", v.Variable, run.Number, err)
			}
		}
	}

	return tx.Commit()
}

// Lookup returns the recorded experiment named name, with its runs in run
// order. The second result is false if nothing is recorded under name.
func (l *Ledger) Lookup(ctx context.Context, name string) (Experiment, bool, error) {
	exp := Experiment{Name: name}
	err := l.db.QueryRowContext(ctx, `
		SELECT model_file, repetitions, repetitions_per_run, runs_per_combination,
			combinations, total_runs
		FROM experiments WHERE name = ?`, name).Scan(
		&exp.ModelFile, &exp.Repetitions, &exp.RepetitionsPerRun,
		&exp.RunsPerCombination, &exp.Combinations, &exp.TotalRuns)
	if err == sql.ErrNoRows {
		return Experiment{}, false, nil
	}
	if err != nil {
		return Experiment{}, false, fmt.Errorf("failed to query experiment %q: %w", name, err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT r.number, r.file, v.variable, v.value
		FROM runs r LEFT JOIN run_values v
			ON v.experiment = r.experiment AND v.number = r.number
		WHERE r.experiment = ?
		ORDER BY r.number, v.position`, name)
	if err != nil {
		return Experiment{}, false, fmt.Errorf("failed to query runs of %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			number   int
			file     string
			variable sql.NullString
			value    sql.NullString
		)
		if err := rows.Scan(&number, &file, &variable, &value); err != nil {
			return Experiment{}, false, fmt.Errorf("failed to scan run: %w", err)
		}
		if n := len(exp.Runs); n == 0 || exp.Runs[n-1].Number != number {
			exp.Runs = append(exp.Runs, Run{Number: number, File: file})
		}
		if variable.Valid {
			last := &exp.Runs[len(exp.Runs)-1]
			last.Values = append(last.Values, Value{Variable: variable.String, Value: value.String})
		}
	}
	if err := rows.Err(); err != nil {
		return Experiment{}, false, err
	}
	return exp, true, nil
}
