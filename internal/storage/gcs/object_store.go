// Package gcs provides an ObjectStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// PublicBaseURL prefixes keys in returned URLs; defaults to http://<bucket>.
	PublicBaseURL string
	// CredentialsPath points at a service account JSON file. Empty means ADC.
	CredentialsPath string
	// VerifyBucket fetches bucket attributes on Open so bad credentials fail fast.
	VerifyBucket bool
}

// ObjectStore writes screenshots to a bucket and publishes them via ACL.
type ObjectStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
	owned      bool
}

// Open creates a storage client from cfg and wraps it.
func Open(ctx context.Context, cfg Config) (*ObjectStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	store, err := New(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	store.owned = true
	if cfg.VerifyBucket {
		if _, err := client.Bucket(store.bucket).Attrs(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("get gcs bucket %q attributes: %w", store.bucket, err)
		}
	}
	return store, nil
}

// New wraps an existing client.
func New(client *storage.Client, cfg Config) (*ObjectStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = "http://" + cfg.Bucket
	}
	return &ObjectStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: base,
	}, nil
}

// PutObject uploads body to key, overwriting any existing object.
func (s *ObjectStore) PutObject(ctx context.Context, key string, contentType string, body io.Reader) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, body); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// MakePublic grants allUsers read access and returns the public URL.
func (s *ObjectStore) MakePublic(ctx context.Context, key string) (string, error) {
	acl := s.client.Bucket(s.bucket).Object(key).ACL()
	if err := acl.Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("make %s public: %w", key, err)
	}
	return screenshot.PublicURL(s.publicBase, key), nil
}

// Close releases the client if Open created it.
func (s *ObjectStore) Close() error {
	if s == nil || !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
