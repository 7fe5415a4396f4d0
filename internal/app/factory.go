package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/webscreenshot/internal/config"
	"github.com/JakeFAU/webscreenshot/internal/logging"
	"github.com/JakeFAU/webscreenshot/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/webscreenshot/internal/publisher/pubsub"
	datastorerecords "github.com/JakeFAU/webscreenshot/internal/records/datastore"
	dynamorecords "github.com/JakeFAU/webscreenshot/internal/records/dynamodb"
	memoryrecords "github.com/JakeFAU/webscreenshot/internal/records/memory"
	postgresrecords "github.com/JakeFAU/webscreenshot/internal/records/postgres"
	"github.com/JakeFAU/webscreenshot/internal/renderer/command"
	"github.com/JakeFAU/webscreenshot/internal/renderer/headless"
	"github.com/JakeFAU/webscreenshot/internal/source"
	datastoresource "github.com/JakeFAU/webscreenshot/internal/source/datastore"
	postgressource "github.com/JakeFAU/webscreenshot/internal/source/postgres"
	"github.com/JakeFAU/webscreenshot/internal/storage/gcs"
	"github.com/JakeFAU/webscreenshot/internal/storage/local"
	memorystorage "github.com/JakeFAU/webscreenshot/internal/storage/memory"
	"github.com/JakeFAU/webscreenshot/internal/storage/s3"
)

// notificationAttributes are attached to every published record.
var notificationAttributes = map[string]string{"producer": "webscreenshot"}

// factory turns config kinds into concrete services.
type factory struct {
	cfg    config.Config
	logger *zap.Logger
	app    *App

	datastoreClient *datastore.Client
}

func (f *factory) build(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"source", f.buildSource},
		{"renderer", f.buildRenderer},
		{"storage", f.buildObjectStore},
		{"records", f.buildRecordStore},
		{"publisher", f.buildPublisher},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}
	f.buildThrottle()
	return nil
}

// datastore opens one client shared by the source and the record store.
func (f *factory) datastore(ctx context.Context) (*datastore.Client, error) {
	if f.datastoreClient != nil {
		return f.datastoreClient, nil
	}
	projectID := f.cfg.Datastore.ProjectID
	if projectID == "" {
		projectID = datastore.DetectProjectID
	}
	var opts []option.ClientOption
	if f.cfg.Datastore.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(f.cfg.Datastore.CredentialsPath))
	}
	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create datastore client: %w", err)
	}
	f.datastoreClient = client
	f.app.addCloser("datastore", client.Close)
	return client, nil
}

func (f *factory) buildSource(ctx context.Context) error {
	if f.app.source != nil {
		return nil
	}
	opts := []source.Option{source.WithLogger(f.logger)}
	if len(f.cfg.Run.URLs) > 0 {
		f.logger.Info("using urls given on the command line", zap.Int("count", len(f.cfg.Run.URLs)))
		f.app.source = source.NewStatic(f.cfg.Run.URLs, opts...)
		return nil
	}

	switch f.cfg.Source.Kind {
	case config.SourceDatastore:
		client, err := f.datastore(ctx)
		if err != nil {
			return err
		}
		fetcher, err := datastoresource.New(client, f.cfg.Source.RecordKind)
		if err != nil {
			return err
		}
		f.app.source = source.New(fetcher, opts...)
	case config.SourcePostgres:
		fetcher, err := postgressource.New(ctx, f.cfg.Source.Postgres.DSN, f.cfg.Source.Postgres.Table)
		if err != nil {
			return err
		}
		f.app.addCloser("source postgres", func() error { fetcher.Close(); return nil })
		f.app.source = source.New(fetcher, opts...)
	case config.SourceStatic:
		f.app.source = source.NewStatic(f.cfg.Run.URLs, opts...)
	default:
		return fmt.Errorf("unknown source kind: %s", f.cfg.Source.Kind)
	}
	return nil
}

func (f *factory) buildRenderer(_ context.Context) error {
	if f.app.renderer != nil {
		return nil
	}
	r := f.cfg.Renderer
	switch r.Kind {
	case config.RendererExec:
		renderer, err := command.New(command.Config{
			Binary:    r.Binary,
			Args:      r.Args,
			DebugArgs: r.DebugArgs,
			Verbose:   logging.IsDebug(f.cfg.Logging.Level),
			Timeout:   f.cfg.RenderTimeout(),
			Identity:  r.Identity,
		}, f.logger.Named("renderer"))
		if err != nil {
			return err
		}
		f.app.renderer = renderer
	case config.RendererChromedp:
		renderer, err := headless.New(headless.Config{
			MaxParallel: r.MaxParallel,
			UserAgent:   r.UserAgent,
			Timeout:     f.cfg.RenderTimeout(),
			Settle:      f.cfg.RenderSettle(),
			Identity:    r.Identity,
			ExecPath:    r.ExecPath,
		}, f.logger.Named("renderer"))
		if err != nil {
			return err
		}
		f.app.addCloser("browser", func() error { renderer.Close(); return nil })
		f.app.renderer = renderer
	default:
		return fmt.Errorf("unknown renderer kind: %s", r.Kind)
	}
	return nil
}

func (f *factory) buildThrottle() {
	if f.app.throttle != nil || f.cfg.Renderer.DomainQPS <= 0 {
		return
	}
	f.app.throttle = ratelimit.New(ratelimit.Config{QPS: f.cfg.Renderer.DomainQPS, Burst: 1})
}

func (f *factory) buildObjectStore(ctx context.Context) error {
	if f.app.objects != nil {
		return nil
	}
	s := f.cfg.Storage
	switch s.Kind {
	case config.StorageGCS:
		f.logger.Info("using gcs storage", zap.String("bucket", s.Bucket))
		store, err := gcs.Open(ctx, gcs.Config{
			Bucket:          s.Bucket,
			PublicBaseURL:   s.PublicBaseURL,
			CredentialsPath: s.CredentialsPath,
			VerifyBucket:    s.VerifyBucket,
		})
		if err != nil {
			return err
		}
		f.app.addCloser("gcs", store.Close)
		f.app.objects = store
	case config.StorageS3:
		f.logger.Info("using s3 storage", zap.String("bucket", s.Bucket))
		store, err := s3.New(ctx, s3.Config{
			Bucket:          s.Bucket,
			Region:          s.S3.Region,
			Endpoint:        s.S3.Endpoint,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			UsePathStyle:    s.S3.UsePathStyle,
			PublicBaseURL:   s.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		f.app.objects = store
	case config.StorageLocal:
		f.logger.Info("using local storage", zap.String("base_dir", s.Local.BaseDir))
		store, err := local.New(local.Config{BaseDir: s.Local.BaseDir, PublicBaseURL: s.PublicBaseURL})
		if err != nil {
			return err
		}
		f.app.objects = store
	case config.StorageMemory:
		f.logger.Warn("using in-memory storage, screenshots will be discarded on exit")
		f.app.objects = memorystorage.NewObjectStore(s.PublicBaseURL)
	default:
		return fmt.Errorf("unknown storage kind: %s", s.Kind)
	}
	return nil
}

func (f *factory) buildRecordStore(ctx context.Context) error {
	if f.app.records != nil {
		return nil
	}
	r := f.cfg.Records
	switch r.Kind {
	case config.RecordsDatastore:
		client, err := f.datastore(ctx)
		if err != nil {
			return err
		}
		store, err := datastorerecords.New(client, r.Collection)
		if err != nil {
			return err
		}
		f.app.records = store
	case config.RecordsPostgres:
		store, err := postgresrecords.New(ctx, r.Postgres.DSN, r.Collection)
		if err != nil {
			return err
		}
		f.app.addCloser("records postgres", func() error { store.Close(); return nil })
		if r.Postgres.CreateTable {
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		f.app.records = store
	case config.RecordsDynamoDB:
		store, err := dynamorecords.New(ctx, dynamorecords.Config{
			TableName:       r.Collection,
			Region:          r.DynamoDB.Region,
			Endpoint:        r.DynamoDB.Endpoint,
			AccessKeyID:     r.DynamoDB.AccessKeyID,
			SecretAccessKey: r.DynamoDB.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		f.app.records = store
	case config.RecordsMemory:
		f.logger.Warn("using in-memory records, metadata will be discarded on exit")
		f.app.records = memoryrecords.NewRecordStore()
	default:
		return fmt.Errorf("unknown records kind: %s", r.Kind)
	}
	return nil
}

func (f *factory) buildPublisher(ctx context.Context) error {
	if f.app.publisher != nil || f.cfg.PubSub.TopicName == "" {
		return nil
	}
	f.logger.Info("publishing record notifications", zap.String("topic", f.cfg.PubSub.TopicName))
	credentials := f.cfg.PubSub.CredentialsPath
	if credentials == "" {
		credentials = f.cfg.Datastore.CredentialsPath
	}
	pub, err := pubsubpublisher.Open(ctx, f.cfg.PubSub.ProjectID, credentials,
		pubsubpublisher.WithAttributes(notificationAttributes))
	if err != nil {
		return err
	}
	f.app.addCloser("pubsub", pub.Close)
	f.app.publisher = pub
	return nil
}
