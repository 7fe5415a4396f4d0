package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestFetchRecordsScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f, err := NewWithPool(mock, "")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"key", "urls"}).
		AddRow("site-a", []string{"https://a.example/", "http://a.example/"}).
		AddRow("site-b", []string{})
	mock.ExpectQuery("SELECT key, urls FROM spider_results").WillReturnRows(rows)

	records, err := f.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "site-a", records[0].Key)
	require.Equal(t, []string{"https://a.example/", "http://a.example/"}, records[0].URLs)
	require.Empty(t, records[1].URLs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRecordsQueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f, err := NewWithPool(mock, "sites")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT key, urls FROM sites").WillReturnError(errors.New("relation does not exist"))

	_, err = f.FetchRecords(context.Background())
	require.ErrorContains(t, err, "query sites")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "sites; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "", "")
	require.ErrorContains(t, err, "dsn is required")
}
