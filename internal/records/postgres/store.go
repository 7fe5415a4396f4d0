// Package postgres persists screenshot records in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable stores one row per public screenshot URL.
const DefaultTable = "webscreenshot"

type execCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts records keyed by screenshot_url.
type RecordStore struct {
	pool  execCloser
	table string
}

// New connects to Postgres and returns a RecordStore.
func New(ctx context.Context, dsn, table string) (*RecordStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("records.postgres.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the table if it does not exist. Only url is indexed.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	screenshot_url TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	user_agent TEXT NOT NULL,
	created TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_url_idx ON %s (url)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", s.table, err)
		}
	}
	return nil
}

// PutRecord inserts or replaces the row for record.PublicURL.
func (s *RecordStore) PutRecord(ctx context.Context, record screenshot.Record) error {
	if record.PublicURL == "" {
		return fmt.Errorf("record public url is required")
	}
	query := fmt.Sprintf(`INSERT INTO %s (screenshot_url, url, width, height, user_agent, created)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (screenshot_url) DO UPDATE SET
	url = EXCLUDED.url,
	width = EXCLUDED.width,
	height = EXCLUDED.height,
	user_agent = EXCLUDED.user_agent,
	created = EXCLUDED.created`, s.table)

	_, err := s.pool.Exec(ctx, query,
		record.PublicURL,
		record.SourceURL,
		record.Size.Width,
		record.Size.Height,
		record.RendererIdentity,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
