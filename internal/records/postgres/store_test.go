package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

func sampleRecord() screenshot.Record {
	return screenshot.Record{
		SourceURL:        "https://example.org/",
		Size:             screenshot.Size{Width: 1500, Height: 1500},
		PublicURL:        "http://bucket/1500x1500/abc.png",
		RendererIdentity: "phantomjs-2.1.1",
		CreatedAt:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPutRecordUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectExec(`(?s)INSERT INTO webscreenshot.*ON CONFLICT \(screenshot_url\) DO UPDATE`).
		WithArgs(rec.PublicURL, rec.SourceURL, 1500, 1500, rec.RendererIdentity, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.PutRecord(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRecordExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "shots")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO shots`).WillReturnError(errors.New("connection reset"))

	err = store.PutRecord(context.Background(), sampleRecord())
	require.ErrorContains(t, err, "upsert shots: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS webscreenshot`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS webscreenshot_url_idx`).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.ErrorContains(t, err, "pool is required")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;name")
	require.ErrorContains(t, err, "invalid table name")

	_, err = New(context.Background(), "", "")
	require.ErrorContains(t, err, "dsn is required")

	rec := sampleRecord()
	rec.PublicURL = ""
	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.ErrorContains(t, store.PutRecord(context.Background(), rec), "public url is required")
}
