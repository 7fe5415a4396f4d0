// Package datastore persists screenshot records as Cloud Datastore entities.
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// DefaultKind is the entity kind screenshot records are stored under.
const DefaultKind = "webscreenshot"

// entity is the stored shape. Only url is indexed.
type entity struct {
	URL           string    `datastore:"url"`
	Size          []int64   `datastore:"size,noindex"`
	ScreenshotURL string    `datastore:"screenshot_url,noindex"`
	UserAgent     string    `datastore:"user_agent,noindex"`
	Created       time.Time `datastore:"created,noindex"`
}

type putter interface {
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
}

// RecordStore upserts records keyed by their public URL.
type RecordStore struct {
	client putter
	kind   string
}

// New creates a RecordStore. client is usually a *datastore.Client.
func New(client putter, kind string) (*RecordStore, error) {
	if client == nil {
		return nil, fmt.Errorf("datastore client is required")
	}
	if strings.TrimSpace(kind) == "" {
		kind = DefaultKind
	}
	return &RecordStore{client: client, kind: kind}, nil
}

// PutRecord writes record under NameKey(kind, record.PublicURL). Writing the
// same key twice replaces the entity.
func (s *RecordStore) PutRecord(ctx context.Context, record screenshot.Record) error {
	if strings.TrimSpace(record.PublicURL) == "" {
		return fmt.Errorf("record public url is required")
	}
	key := datastore.NameKey(s.kind, record.PublicURL, nil)
	if _, err := s.client.Put(ctx, key, toEntity(record)); err != nil {
		return fmt.Errorf("put %s entity: %w", s.kind, err)
	}
	return nil
}

func toEntity(record screenshot.Record) *entity {
	return &entity{
		URL:           record.SourceURL,
		Size:          []int64{int64(record.Size.Width), int64(record.Size.Height)},
		ScreenshotURL: record.PublicURL,
		UserAgent:     record.RendererIdentity,
		Created:       record.CreatedAt,
	}
}
