package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the append-only audit log of completed cycles and runs
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// AppendCycle records one completed cycle. Missing ID, Sequence and
// CreatedAt are filled in; the assigned values are written back to entry.
func (s *SQLiteStore) AppendCycle(ctx context.Context, entry *CycleEntry) error {
	if entry == nil {
		return fmt.Errorf("cycle entry is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if entry.Sequence == 0 {
		var last sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM cycles`).Scan(&last); err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		entry.Sequence = last.Int64 + 1
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO cycles (
			id, run_id, sequence, task, reasoning, decision_json, decision_kind, tool_name, outcome, is_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RunID,
		entry.Sequence,
		entry.Task,
		entry.Reasoning,
		entry.DecisionJSON,
		entry.DecisionKind,
		entry.ToolName,
		entry.Outcome,
		entry.IsError,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", entry.Sequence, err)
	}
	return tx.Commit()
}

// RecentCycles returns the last n cycles in ascending sequence order.
// n <= 0 returns nothing.
func (s *SQLiteStore) RecentCycles(ctx context.Context, n int) ([]CycleEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, sequence, task, reasoning, decision_json, decision_kind, tool_name, outcome, is_error, created_at
		 FROM cycles
		 ORDER BY sequence DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]CycleEntry, 0, n)
	for rows.Next() {
		var item CycleEntry
		if err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.Sequence,
			&item.Task,
			&item.Reasoning,
			&item.DecisionJSON,
			&item.DecisionKind,
			&item.ToolName,
			&item.Outcome,
			&item.IsError,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(ret)-1; i < j; i, j = i+1, j-1 {
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret, nil
}

// LastSequence returns the highest recorded cycle sequence, 0 when empty
func (s *SQLiteStore) LastSequence(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM cycles`).Scan(&last); err != nil {
		return 0, err
	}
	return last.Int64, nil
}

// StartRun records the beginning of a controller run
func (s *SQLiteStore) StartRun(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, task, continue_mode, started_at) VALUES (?, ?, ?, ?)`,
		run.ID,
		run.Task,
		run.ContinueMode,
		run.StartedAt,
	)
	return err
}

// FinishRun stores how a run ended
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, haltReason string, cycles int, errText string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET halt_reason = ?, cycles = ?, error = ?, ended_at = ? WHERE id = ?`,
		haltReason,
		cycles,
		errText,
		s.now(),
		id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecentRuns returns the last n runs, newest first
func (s *SQLiteStore) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task, continue_mode, started_at, ended_at, halt_reason, cycles, error
		 FROM runs
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Run, 0, n)
	for rows.Next() {
		var item Run
		var endedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.Task,
			&item.ContinueMode,
			&item.StartedAt,
			&endedAt,
			&item.HaltReason,
			&item.Cycles,
			&item.Error,
		); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t := endedAt.Time
			item.EndedAt = &t
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// ErrNotFound is returned when an update targets a missing row
var ErrNotFound = errors.New("not found")
