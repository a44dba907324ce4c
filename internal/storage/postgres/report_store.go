// Package postgres provides the Postgres-backed report store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

const defaultTable = "audit_reports"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ReportStore keeps finished audits in a single table with the report as
// jsonb.
type ReportStore struct {
	pool  pool
	table string
}

var _ audit.ReportStore = (*ReportStore)(nil)

// NewReportStore connects a pool from cfg.
func NewReportStore(ctx context.Context, cfg Config) (*ReportStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	store, err := NewReportStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewReportStoreWithPool wraps an existing pool (primarily for testing).
func NewReportStoreWithPool(p pool, table string) (*ReportStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ReportStore{pool: p, table: table}, nil
}

// EnsureSchema creates the table and its listing index when missing.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          TEXT PRIMARY KEY,
	seed_url    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	total_pages INTEGER NOT NULL,
	report      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at DESC);`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *ReportStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ReportStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveReport upserts rec.
func (s *ReportStore) SaveReport(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	body, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, seed_url, created_at, total_pages, report)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	seed_url = EXCLUDED.seed_url,
	created_at = EXCLUDED.created_at,
	total_pages = EXCLUDED.total_pages,
	report = EXCLUDED.report`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		rec.ID, rec.SeedURL, rec.CreatedAt.UTC(), rec.Report.Stats.TotalPages, body,
	); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads one record, or audit.ErrNotFound.
func (s *ReportStore) GetReport(ctx context.Context, id string) (audit.Record, error) {
	query := fmt.Sprintf(`SELECT id, seed_url, created_at, report FROM %s WHERE id = $1`, s.table)
	var (
		rec  audit.Record
		body []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.SeedURL, &rec.CreatedAt, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Record{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Record{}, fmt.Errorf("select report: %w", err)
	}
	if err := json.Unmarshal(body, &rec.Report); err != nil {
		return audit.Record{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return rec, nil
}

// ListReports returns summaries, newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit, offset int) ([]audit.Summary, error) {
	query := fmt.Sprintf(`
SELECT id, seed_url, created_at, total_pages
FROM %s
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, s.table)
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []audit.Summary
	for rows.Next() {
		var sum audit.Summary
		if err := rows.Scan(&sum.ID, &sum.SeedURL, &sum.CreatedAt, &sum.TotalPages); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report summaries: %w", err)
	}
	return out, nil
}
