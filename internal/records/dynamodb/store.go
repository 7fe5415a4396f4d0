// Package dynamodb persists screenshot records in a DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

const (
	attrScreenshotURL = "screenshot_url"
	attrURL           = "url"
	attrSize          = "size"
	attrUserAgent     = "user_agent"
	attrCreated       = "created"
)

// Config captures the parameters required to reach the table.
type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// RecordStore writes one item per public URL. The table's partition key must
// be the string attribute screenshot_url.
type RecordStore struct {
	client    *dynamodb.Client
	tableName string
}

// New builds a DynamoDB client from cfg.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &RecordStore{client: client, tableName: strings.TrimSpace(cfg.TableName)}, nil
}

// PutRecord writes the item, replacing any item with the same screenshot_url.
func (s *RecordStore) PutRecord(ctx context.Context, record screenshot.Record) error {
	if strings.TrimSpace(record.PublicURL) == "" {
		return fmt.Errorf("record public url is required")
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      toItem(record),
	})
	if err != nil {
		return fmt.Errorf("put item into %s: %w", s.tableName, err)
	}
	return nil
}

func toItem(record screenshot.Record) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrScreenshotURL: &types.AttributeValueMemberS{Value: record.PublicURL},
		attrURL:           &types.AttributeValueMemberS{Value: record.SourceURL},
		attrSize: &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberN{Value: strconv.Itoa(record.Size.Width)},
			&types.AttributeValueMemberN{Value: strconv.Itoa(record.Size.Height)},
		}},
		attrUserAgent: &types.AttributeValueMemberS{Value: record.RendererIdentity},
		attrCreated:   &types.AttributeValueMemberS{Value: record.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}
