package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store persists the history of check runs using SQLite.
// Only finished reports are stored; the graph itself is recomputed on every run.
type Store struct {
	db *sql.DB
}

// Run is one persisted check. Report is only populated by LoadRun and LatestRun.
type Run struct {
	ID         int64          `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	Root       string         `json:"root"`
	Status     report.Status  `json:"status"`
	Violations int            `json:"violations"`
	RuleErrors int            `json:"rule_errors"`
	Report     *report.Report `json:"report,omitempty"`
}

// NewStore initializes a new Store in the specified storage directory.
// It creates the directory if it doesn't exist and opens/creates 'hexanorm.db'.
func NewStore(storageDir string) (*Store, error) {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	dbPath := filepath.Join(storageDir, "hexanorm.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			root TEXT,
			status TEXT NOT NULL,
			violations INTEGER NOT NULL,
			rule_errors INTEGER NOT NULL,
			report TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS violations (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rule TEXT NOT NULL,
			severity TEXT NOT NULL,
			subject TEXT NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_run ON violations(run_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec schema query: %w", err)
		}
	}
	return nil
}

// SaveRun stores a finished report and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, root string, startedAt time.Time, r *report.Report) (int64, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, root, status, violations, rule_errors, report)
		VALUES (?, ?, ?, ?, ?, ?)
	`, startedAt.UTC().Format(time.RFC3339Nano), root, string(r.Status), len(r.Violations), len(r.RuleErrors), string(body))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO violations (run_id, rule, severity, subject, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, v := range r.Violations {
		if _, err := stmt.ExecContext(ctx, id, v.Rule, string(v.Severity), v.Subject, v.Message); err != nil {
			return 0, err
		}
	}

	return id, tx.Commit()
}

// ListRuns returns the most recent runs first, without report bodies.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, root, status, violations, rule_errors
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started string
			status  string
		)
		if err := rows.Scan(&run.ID, &started, &run.Root, &status, &run.Violations, &run.RuleErrors); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.Status = report.Status(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadRun returns a run including its report.
func (s *Store) LoadRun(ctx context.Context, id int64) (*Run, error) {
	return s.loadOne(ctx, `SELECT id, started_at, root, status, violations, rule_errors, report FROM runs WHERE id = ?`, id)
}

// LatestRun returns the most recent run including its report.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	return s.loadOne(ctx, `SELECT id, started_at, root, status, violations, rule_errors, report FROM runs ORDER BY id DESC LIMIT 1`)
}

func (s *Store) loadOne(ctx context.Context, query string, args ...any) (*Run, error) {
	var (
		run     Run
		started string
		status  string
		body    string
	)
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&run.ID, &started, &run.Root, &status, &run.Violations, &run.RuleErrors, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.Status = report.Status(status)

	var r report.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode report of run %d: %w", run.ID, err)
	}
	run.Report = &r
	return &run, nil
}

// RuleCounts returns, for a run, the number of stored violations per rule.
func (s *Store) RuleCounts(ctx context.Context, id int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule, COUNT(*) FROM violations WHERE run_id = ? GROUP BY rule`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			rule string
			n    int
		)
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, err
		}
		out[rule] = n
	}
	return out, rows.Err()
}
