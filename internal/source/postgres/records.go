// Package postgres reads candidate site records from a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webscreenshot/internal/source"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds one row per spidered site.
const DefaultTable = "spider_results"

type queryCloser interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// RecordFetcher implements source.RecordFetcher over a table with a text key
// column and a text[] urls column.
type RecordFetcher struct {
	pool  queryCloser
	table string
}

// New connects to Postgres and returns a RecordFetcher.
func New(ctx context.Context, dsn, table string) (*RecordFetcher, error) {
	if dsn == "" {
		return nil, fmt.Errorf("source.postgres.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	f, err := NewWithPool(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return f, nil
}

// NewWithPool constructs a fetcher from an existing pool (primarily for testing).
func NewWithPool(pool queryCloser, table string) (*RecordFetcher, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordFetcher{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (f *RecordFetcher) Close() {
	if f == nil || f.pool == nil {
		return
	}
	f.pool.Close()
}

// FetchRecords selects every row of the table.
func (f *RecordFetcher) FetchRecords(ctx context.Context) ([]source.SiteRecord, error) {
	query := fmt.Sprintf(`SELECT key, urls FROM %s`, f.table)
	rows, err := f.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.table, err)
	}
	defer rows.Close()

	var out []source.SiteRecord
	for rows.Next() {
		var (
			key  string
			urls []string
		)
		if err := rows.Scan(&key, &urls); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", f.table, err)
		}
		out = append(out, source.SiteRecord{Key: key, URLs: urls})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", f.table, err)
	}
	return out, nil
}
