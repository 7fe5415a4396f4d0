// Package s3 provides an ObjectStore backed by S3 or an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Config captures the parameters required to reach the bucket.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL overrides the derived public URL prefix.
	PublicBaseURL string
}

// ObjectStore uploads screenshots with PutObject and publishes them with a canned ACL.
type ObjectStore struct {
	client       *s3.Client
	bucket       string
	endpoint     string
	usePathStyle bool
	publicBase   string
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*ObjectStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("create aws config: %w", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	return &ObjectStore{
		client:       client,
		bucket:       strings.TrimSpace(cfg.Bucket),
		endpoint:     endpoint,
		usePathStyle: cfg.UsePathStyle,
		publicBase:   strings.TrimSpace(cfg.PublicBaseURL),
	}, nil
}

// PutObject uploads body to key, overwriting any existing object.
func (s *ObjectStore) PutObject(ctx context.Context, key string, contentType string, body io.Reader) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	// The SDK needs a seekable body to sign payloads over plain HTTP endpoints.
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// MakePublic applies the public-read canned ACL and returns the object's URL.
func (s *ObjectStore) MakePublic(ctx context.Context, key string) (string, error) {
	_, err := s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("make %s public: %w", key, err)
	}
	return s.publicURL(key), nil
}

func (s *ObjectStore) publicURL(key string) string {
	escapedKey := strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
	if s.publicBase != "" {
		return screenshot.PublicURL(s.publicBase, escapedKey)
	}
	if s.usePathStyle {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escapedKey)
	}
	scheme := "https://"
	host := strings.TrimPrefix(s.endpoint, "https://")
	if strings.HasPrefix(s.endpoint, "http://") {
		scheme = "http://"
		host = strings.TrimPrefix(s.endpoint, "http://")
	}
	return fmt.Sprintf("%s%s.%s/%s", scheme, s.bucket, host, escapedKey)
}
