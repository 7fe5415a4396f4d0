// Package datastore reads candidate site records from Google Cloud Datastore.
package datastore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/datastore"

	"github.com/JakeFAU/webscreenshot/internal/source"
)

// DefaultKind is the entity kind written by the spider.
const DefaultKind = "spider-results"

const (
	propChecks = "checks"
	propURLs   = "url_canonicalization"
)

type queryRunner interface {
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) ([]*datastore.Key, error)
}

// RecordFetcher implements source.RecordFetcher over a Datastore kind.
type RecordFetcher struct {
	client queryRunner
	kind   string
}

// New creates a RecordFetcher. client is usually a *datastore.Client.
func New(client queryRunner, kind string) (*RecordFetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("datastore client is required")
	}
	if strings.TrimSpace(kind) == "" {
		kind = DefaultKind
	}
	return &RecordFetcher{client: client, kind: kind}, nil
}

// FetchRecords loads every entity of the kind with eventual consistency and
// extracts checks.url_canonicalization from each.
func (f *RecordFetcher) FetchRecords(ctx context.Context) ([]source.SiteRecord, error) {
	q := datastore.NewQuery(f.kind).EventualConsistency()
	var entities []datastore.PropertyList
	keys, err := f.client.GetAll(ctx, q, &entities)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.kind, err)
	}

	out := make([]source.SiteRecord, 0, len(entities))
	for i, props := range entities {
		rec := source.SiteRecord{URLs: canonicalURLs(props)}
		if i < len(keys) && keys[i] != nil {
			rec.Key = keys[i].Name
		}
		out = append(out, rec)
	}
	return out, nil
}

func canonicalURLs(props datastore.PropertyList) []string {
	for _, p := range props {
		if p.Name != propChecks {
			continue
		}
		checks, ok := p.Value.(*datastore.Entity)
		if !ok || checks == nil {
			return nil
		}
		for _, cp := range checks.Properties {
			if cp.Name == propURLs {
				return stringValues(cp.Value)
			}
		}
		return nil
	}
	return nil
}

func stringValues(v interface{}) []string {
	switch vals := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), vals...)
	case string:
		return []string{vals}
	default:
		return nil
	}
}
