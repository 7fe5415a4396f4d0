// Package config loads and validates run configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Component kinds accepted by the factory in package app.
const (
	RendererExec     = "exec"
	RendererChromedp = "chromedp"

	SourceDatastore = "datastore"
	SourcePostgres  = "postgres"
	SourceStatic    = "static"

	StorageGCS    = "gcs"
	StorageS3     = "s3"
	StorageLocal  = "local"
	StorageMemory = "memory"

	RecordsDatastore = "datastore"
	RecordsPostgres  = "postgres"
	RecordsDynamoDB  = "dynamodb"
	RecordsMemory    = "memory"

	KeyHashMD5    = "md5"
	KeyHashSHA256 = "sha256"
)

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig     `mapstructure:"logging"`
	Run       RunConfig         `mapstructure:"run"`
	Sizes     []screenshot.Size `mapstructure:"sizes"`
	Renderer  RendererConfig    `mapstructure:"renderer"`
	Source    SourceConfig      `mapstructure:"source"`
	Datastore DatastoreConfig   `mapstructure:"datastore"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Records   RecordsConfig     `mapstructure:"records"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RunConfig governs the worker pool and run-level outcomes.
type RunConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
	// ScratchDir is the parent of the per-run temporary directory. Empty means os.TempDir.
	ScratchDir        string   `mapstructure:"scratch_dir"`
	URLs              []string `mapstructure:"urls"`
	FailOnZeroSuccess bool     `mapstructure:"fail_on_zero_success"`
	SkipRateAlert     float64  `mapstructure:"skip_rate_alert"`
}

// RendererConfig selects and tunes the rendering engine.
type RendererConfig struct {
	Kind           string   `mapstructure:"kind"`
	Binary         string   `mapstructure:"binary"`
	Args           []string `mapstructure:"args"`
	DebugArgs      []string `mapstructure:"debug_args"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	Identity       string   `mapstructure:"identity"`
	UserAgent      string   `mapstructure:"user_agent"`
	DomainQPS      float64  `mapstructure:"domain_qps"`
	MaxParallel    int      `mapstructure:"max_parallel"`
	SettleMillis   int      `mapstructure:"settle_ms"`
	ExecPath       string   `mapstructure:"exec_path"`
}

// SourceConfig selects where candidate URLs come from.
type SourceConfig struct {
	Kind       string               `mapstructure:"kind"`
	RecordKind string               `mapstructure:"record_kind"`
	Postgres   PostgresSourceConfig `mapstructure:"postgres"`
}

// PostgresSourceConfig points at a table of site records.
type PostgresSourceConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// DatastoreConfig is shared by the datastore source and record store.
type DatastoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsPath string `mapstructure:"credentials_path"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Kind            string        `mapstructure:"kind"`
	Bucket          string        `mapstructure:"bucket"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	CredentialsPath string        `mapstructure:"credentials_path"`
	ContentType     string        `mapstructure:"content_type"`
	KeyHash         string        `mapstructure:"key_hash"`
	VerifyBucket    bool          `mapstructure:"verify_bucket"`
	S3              S3Config      `mapstructure:"s3"`
	Local           LocalFSConfig `mapstructure:"local"`
}

// S3Config holds S3-compatible endpoint settings.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// LocalFSConfig holds filesystem store settings.
type LocalFSConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// RecordsConfig selects and configures the metadata store.
type RecordsConfig struct {
	Kind       string                `mapstructure:"kind"`
	Collection string                `mapstructure:"collection"`
	Postgres   PostgresRecordsConfig `mapstructure:"postgres"`
	DynamoDB   DynamoDBConfig        `mapstructure:"dynamodb"`
}

// PostgresRecordsConfig holds the connection for the records table.
type PostgresRecordsConfig struct {
	DSN         string `mapstructure:"dsn"`
	CreateTable bool   `mapstructure:"create_table"`
}

// DynamoDBConfig holds DynamoDB endpoint settings.
type DynamoDBConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// PubSubConfig holds metadata for record notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	TopicName       string `mapstructure:"topic_name"`
	CredentialsPath string `mapstructure:"credentials_path"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	PushGatewayURL string `mapstructure:"push_gateway_url"`
	JobName        string `mapstructure:"job_name"`
	ListenAddr     string `mapstructure:"listen_addr"`
}

// Load builds a Config from defaults, an optional file, the environment and
// flags. When path is empty, config.yaml is looked up in the usual places and
// its absence is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENSHOTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/webscreenshot/")
		v.AddConfigPath("$HOME/.webscreenshot")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var flagKeys = map[string]string{
	"loglevel": "logging.level",
	"url":      "run.urls",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.queue_depth", 16)
	v.SetDefault("run.scratch_dir", "")
	v.SetDefault("run.urls", []string{})
	v.SetDefault("run.fail_on_zero_success", true)
	v.SetDefault("run.skip_rate_alert", 0.5)

	sizes := make([]map[string]any, 0, 2)
	for _, s := range screenshot.DefaultSizes() {
		sizes = append(sizes, map[string]any{"width": s.Width, "height": s.Height})
	}
	v.SetDefault("sizes", sizes)

	v.SetDefault("renderer.kind", RendererExec)
	v.SetDefault("renderer.binary", "/phantomjs/bin/phantomjs")
	v.SetDefault("renderer.args", []string{"/rasterize.js", "{url}", "{output}", "{size}"})
	v.SetDefault("renderer.debug_args", []string{"--debug=true", "--webdriver-loglevel=DEBUG"})
	v.SetDefault("renderer.timeout_seconds", 60)
	v.SetDefault("renderer.identity", "")
	v.SetDefault("renderer.user_agent", "")
	v.SetDefault("renderer.domain_qps", 0)
	v.SetDefault("renderer.max_parallel", 0)
	v.SetDefault("renderer.settle_ms", 500)
	v.SetDefault("renderer.exec_path", "")

	v.SetDefault("source.kind", SourceDatastore)
	v.SetDefault("source.record_kind", "spider-results")
	v.SetDefault("source.postgres.dsn", "")
	v.SetDefault("source.postgres.table", "spider_results")

	v.SetDefault("datastore.project_id", "")
	v.SetDefault("datastore.credentials_path", "/secrets/datastore-writer.json")

	v.SetDefault("storage.kind", StorageGCS)
	v.SetDefault("storage.bucket", "green-spider-screenshots.sendung.de")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.credentials_path", "/secrets/screenshots-uploader.json")
	v.SetDefault("storage.content_type", "image/png")
	v.SetDefault("storage.verify_bucket", true)
	v.SetDefault("storage.key_hash", KeyHashMD5)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.local.base_dir", "")

	v.SetDefault("records.kind", RecordsDatastore)
	v.SetDefault("records.collection", "webscreenshot")
	v.SetDefault("records.postgres.dsn", "")
	v.SetDefault("records.postgres.create_table", false)
	v.SetDefault("records.dynamodb.region", "us-east-1")
	v.SetDefault("records.dynamodb.endpoint", "")
	v.SetDefault("records.dynamodb.access_key_id", "")
	v.SetDefault("records.dynamodb.secret_access_key", "")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.credentials_path", "")

	v.SetDefault("metrics.push_gateway_url", "")
	v.SetDefault("metrics.job_name", "webscreenshot")
	v.SetDefault("metrics.listen_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.Concurrency <= 0 {
		return fmt.Errorf("run.concurrency must be > 0")
	}
	if c.Run.QueueDepth < 0 {
		return fmt.Errorf("run.queue_depth must be >= 0")
	}
	if c.Run.SkipRateAlert < 0 || c.Run.SkipRateAlert > 1 {
		return fmt.Errorf("run.skip_rate_alert must be within [0, 1]")
	}
	if len(c.Sizes) == 0 {
		return fmt.Errorf("sizes must not be empty")
	}
	for _, s := range c.Sizes {
		if !s.Valid() {
			return fmt.Errorf("invalid size %s: width and height must be > 0", s)
		}
	}
	if c.Renderer.TimeoutSeconds <= 0 {
		return fmt.Errorf("renderer.timeout_seconds must be > 0")
	}
	if c.Renderer.DomainQPS < 0 {
		return fmt.Errorf("renderer.domain_qps must be >= 0")
	}
	switch c.Renderer.Kind {
	case RendererExec:
		if c.Renderer.Binary == "" {
			return fmt.Errorf("renderer.binary is required for the exec renderer")
		}
	case RendererChromedp:
	default:
		return fmt.Errorf("unknown renderer.kind %q", c.Renderer.Kind)
	}

	switch c.Source.Kind {
	case SourceDatastore:
	case SourcePostgres:
		if c.Source.Postgres.DSN == "" && len(c.Run.URLs) == 0 {
			return fmt.Errorf("source.postgres.dsn is required for the postgres source")
		}
	case SourceStatic:
		if len(c.Run.URLs) == 0 {
			return fmt.Errorf("run.urls must not be empty for the static source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}

	switch c.Storage.Kind {
	case StorageGCS, StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for %s", c.Storage.Kind)
		}
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for local storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage.kind %q", c.Storage.Kind)
	}

	switch c.Storage.KeyHash {
	case "", KeyHashMD5, KeyHashSHA256:
	default:
		return fmt.Errorf("unknown storage.key_hash %q", c.Storage.KeyHash)
	}

	switch c.Records.Kind {
	case RecordsDatastore, RecordsDynamoDB, RecordsMemory:
	case RecordsPostgres:
		if c.Records.Postgres.DSN == "" {
			return fmt.Errorf("records.postgres.dsn is required for postgres records")
		}
	default:
		return fmt.Errorf("unknown records.kind %q", c.Records.Kind)
	}
	if c.Records.Collection == "" {
		return fmt.Errorf("records.collection is required")
	}

	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// RenderTimeout converts renderer.timeout_seconds to a duration.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Renderer.TimeoutSeconds) * time.Second
}

// RenderSettle converts renderer.settle_ms to a duration.
func (c Config) RenderSettle() time.Duration {
	return time.Duration(c.Renderer.SettleMillis) * time.Millisecond
}
