package datastore

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	kind     string
	entities []datastore.PropertyList
	keys     []*datastore.Key
	err      error
}

func (f *fakeRunner) GetAll(_ context.Context, _ *datastore.Query, dst interface{}) ([]*datastore.Key, error) {
	if f.err != nil {
		return nil, f.err
	}
	out, ok := dst.(*[]datastore.PropertyList)
	if !ok {
		return nil, errors.New("unexpected destination type")
	}
	*out = f.entities
	return f.keys, nil
}

func checksEntity(urls ...interface{}) datastore.PropertyList {
	return datastore.PropertyList{
		{Name: "created", Value: "2018-01-01"},
		{Name: "checks", Value: &datastore.Entity{Properties: []datastore.Property{
			{Name: "url_canonicalization", Value: urls},
		}}},
	}
}

func TestFetchRecordsExtractsCanonicalURLs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		entities: []datastore.PropertyList{
			checksEntity("https://a.example/", "http://a.example/"),
			{{Name: "checks", Value: &datastore.Entity{}}},
			{{Name: "other", Value: int64(1)}},
		},
		keys: []*datastore.Key{
			datastore.NameKey(DefaultKind, "a", nil),
			datastore.NameKey(DefaultKind, "b", nil),
			datastore.NameKey(DefaultKind, "c", nil),
		},
	}

	f, err := New(runner, "")
	require.NoError(t, err)

	records, err := f.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "a", records[0].Key)
	require.Equal(t, []string{"https://a.example/", "http://a.example/"}, records[0].URLs)
	require.Empty(t, records[1].URLs)
	require.Empty(t, records[2].URLs)
}

func TestFetchRecordsWrapsQueryError(t *testing.T) {
	t.Parallel()

	f, err := New(&fakeRunner{err: errors.New("permission denied")}, "spider-results")
	require.NoError(t, err)

	_, err = f.FetchRecords(context.Background())
	require.ErrorContains(t, err, "query spider-results")
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "")
	require.Error(t, err)
}

func TestStringValues(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"x"}, stringValues("x"))
	require.Equal(t, []string{"a", "b"}, stringValues([]string{"a", "b"}))
	require.Equal(t, []string{"a"}, stringValues([]interface{}{"a", int64(3)}))
	require.Nil(t, stringValues(int64(3)))
}
