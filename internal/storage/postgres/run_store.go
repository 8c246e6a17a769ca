// Package postgres provides the Postgres-backed run ledger.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/newsdesk/internal/report"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable receives one row per run.
const DefaultTable = "newsdesk_runs"

// Config controls the Postgres connection pool used for run rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RunStore writes run reports into Postgres.
type RunStore struct {
	pool  pool
	table string
}

// NewRunStore connects a pool using cfg.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: p, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(p pool, table string) (*RunStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: p, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the run table when it does not exist.
func (s *RunStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id        TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	error_message TEXT,
	collected     INTEGER NOT NULL DEFAULT 0,
	admitted      INTEGER NOT NULL DEFAULT 0,
	committed     INTEGER NOT NULL DEFAULT 0,
	abandoned     INTEGER NOT NULL DEFAULT 0,
	swept         INTEGER NOT NULL DEFAULT 0,
	archive_uri   TEXT,
	report        JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create run table: %w", err)
	}
	return nil
}

// RecordRun upserts the run row keyed by run id.
func (s *RunStore) RecordRun(ctx context.Context, r *report.Report) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if r == nil || r.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	swept := 0
	if r.Sweep != nil {
		swept = r.Sweep.Deleted
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	status,
	error_message,
	collected,
	admitted,
	committed,
	abandoned,
	swept,
	archive_uri,
	report
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	collected = EXCLUDED.collected,
	admitted = EXCLUDED.admitted,
	committed = EXCLUDED.committed,
	abandoned = EXCLUDED.abandoned,
	swept = EXCLUDED.swept,
	archive_uri = EXCLUDED.archive_uri,
	report = EXCLUDED.report`, s.table)

	args := []any{
		r.RunID,
		r.StartedAt,
		nullTime(r.FinishedAt),
		r.Status,
		nullString(r.Error),
		r.Collected,
		r.Admitted,
		r.Committed,
		r.Abandoned,
		swept,
		nullString(r.ArchiveURI),
		body,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Run returns one recorded run.
func (s *RunStore) Run(ctx context.Context, runID string) (report.Report, bool, error) {
	query := fmt.Sprintf(`SELECT report FROM %s WHERE run_id = $1`, s.table)
	runs, err := s.query(ctx, query, runID)
	if err != nil || len(runs) == 0 {
		return report.Report{}, false, err
	}
	return runs[0], true, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]report.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT report FROM %s ORDER BY started_at DESC LIMIT $1`, s.table)
	return s.query(ctx, query, limit)
}

func (s *RunStore) query(ctx context.Context, query string, args ...any) ([]report.Report, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var r report.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
