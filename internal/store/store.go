// Package store archives phase reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/sepia/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for archived reports.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			arith_attempts INTEGER NOT NULL,
			arith_correct INTEGER NOT NULL,
			arith_problems INTEGER NOT NULL,
			digits_answered INTEGER NOT NULL,
			digits_submitted TEXT NOT NULL,
			digits_expected TEXT NOT NULL,
			digits_correct INTEGER NOT NULL,
			targets_answered INTEGER NOT NULL,
			targets_submitted TEXT NOT NULL,
			targets_expected TEXT NOT NULL,
			targets_correct INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS report_operator_stats (
			report_id TEXT NOT NULL,
			op INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			PRIMARY KEY (report_id, op)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertReport stores a report and its per-operator tallies.
func (s *Store) InsertReport(ctx context.Context, r model.Report) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, started_at, ended_at, duration_ms,
			arith_attempts, arith_correct, arith_problems,
			digits_answered, digits_submitted, digits_expected, digits_correct,
			targets_answered, targets_submitted, targets_expected, targets_correct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PhaseID,
		r.StartedAt.UTC().Format(timeLayout),
		r.EndedAt.UTC().Format(timeLayout),
		r.Duration.Milliseconds(),
		r.Arithmetic.Attempts,
		r.Arithmetic.Correct,
		r.Arithmetic.Problems,
		r.Digits.Answered,
		r.Digits.Submitted,
		r.Digits.Expected,
		r.Digits.Correct,
		r.Targets.Answered,
		r.Targets.Submitted,
		r.Targets.Expected,
		r.Targets.Correct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", r.PhaseID, err)
	}

	if len(r.Arithmetic.ByOperator) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO report_operator_stats (report_id, op, attempts, correct) VALUES (?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, op := range model.Operators {
			t, ok := r.Arithmetic.ByOperator[op]
			if !ok {
				continue
			}
			if _, err = stmt.ExecContext(ctx, r.PhaseID, int(op), t.Attempts, t.Correct); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListReports returns archived reports, oldest first. Last keeps only the
// most recent reports.
func (s *Store) ListReports(ctx context.Context, filter model.HistoryFilter) ([]model.Report, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := ""
	if filter.Last > 0 {
		limit = "LIMIT ?"
		args = append(args, filter.Last)
	}
	query := fmt.Sprintf(`SELECT id, started_at, ended_at, duration_ms,
			arith_attempts, arith_correct, arith_problems,
			digits_answered, digits_submitted, digits_expected, digits_correct,
			targets_answered, targets_submitted, targets_expected, targets_correct
		FROM reports
		WHERE %s
		ORDER BY started_at DESC
		%s`, strings.Join(clauses, " AND "), limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var startedAt, endedAt string
		var durationMs int64
		if err := rows.Scan(&r.PhaseID, &startedAt, &endedAt, &durationMs,
			&r.Arithmetic.Attempts, &r.Arithmetic.Correct, &r.Arithmetic.Problems,
			&r.Digits.Answered, &r.Digits.Submitted, &r.Digits.Expected, &r.Digits.Correct,
			&r.Targets.Answered, &r.Targets.Submitted, &r.Targets.Expected, &r.Targets.Correct,
		); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, err
		}
		if r.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for display.
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}
	for i := range reports {
		ops, err := s.operatorStats(ctx, reports[i].PhaseID)
		if err != nil {
			return nil, err
		}
		reports[i].Arithmetic.ByOperator = ops
	}
	return reports, nil
}

func (s *Store) operatorStats(ctx context.Context, reportID string) (map[model.Operator]model.Tally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT op, attempts, correct FROM report_operator_stats WHERE report_id = ?`, reportID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[model.Operator]model.Tally{}
	for rows.Next() {
		var op int
		var t model.Tally
		if err := rows.Scan(&op, &t.Attempts, &t.Correct); err != nil {
			return nil, err
		}
		result[model.Operator(op)] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
