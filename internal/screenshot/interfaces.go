package screenshot

import (
	"context"
	"io"
	"time"
)

// Renderer turns one URL into one PNG at outputPath. The returned error is
// informational only; callers judge success by the presence of outputPath.
type Renderer interface {
	Render(ctx context.Context, task Task, outputPath string) error
	// Identity names the rendering engine, stored with every record.
	Identity() string
}

// ObjectStore writes screenshot bytes and exposes them publicly.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, contentType string, body io.Reader) error
	MakePublic(ctx context.Context, key string) (string, error)
}

// RecordStore upserts screenshot metadata keyed by Record.PublicURL.
type RecordStore interface {
	PutRecord(ctx context.Context, record Record) error
}

// Publisher pushes record notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Throttle delays renders per target host.
type Throttle interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for content addressing.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
