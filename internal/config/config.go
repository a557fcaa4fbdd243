package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Blob     BlobConfig     `mapstructure:"blob" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Resize   ResizeConfig   `mapstructure:"resize"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// PublicBaseURL overrides the scheme and host used when building the
	// resize and status endpoints returned to clients.
	PublicBaseURL   string        `mapstructure:"public_base_url" validate:"omitempty,url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// MetricsPort is the listener the worker process exposes /metrics on.
	// Zero disables it.
	MetricsPort int `mapstructure:"metrics_port" validate:"gte=0,lt=65536"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// StoreConfig selects the status store implementation.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=postgres memory"`
}

// QueueConfig selects and tunes the job queue.
type QueueConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=redis sqs memory"`
	// Name is the Redis stream key or the SQS queue name.
	Name              string        `mapstructure:"name" validate:"required"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gte=1s"`
}

// RedisConfig contains settings for the Redis Streams queue.
type RedisConfig struct {
	Addrs         []string      `mapstructure:"addrs"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db" validate:"gte=0"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	Consumer      string        `mapstructure:"consumer"`
	MaxLen        int64         `mapstructure:"max_len" validate:"gte=0"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

// AWSConfig holds credentials and endpoint overrides shared by the S3 blob
// store and the SQS queue. Empty credentials fall back to the default
// AWS credential chain.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// BlobConfig selects and tunes the blob store.
type BlobConfig struct {
	Backend       string        `mapstructure:"backend" validate:"required,oneof=s3 memory"`
	Bucket        string        `mapstructure:"bucket"`
	PublicBaseURL string        `mapstructure:"public_base_url" validate:"omitempty,url"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry" validate:"gte=1m"`
	UsePathStyle  bool          `mapstructure:"use_path_style"`
}

// WorkerConfig tunes the resize worker loop.
type WorkerConfig struct {
	Concurrency      int           `mapstructure:"concurrency" validate:"gte=1"`
	BatchSize        int           `mapstructure:"batch_size" validate:"gte=1,lte=10"`
	WaitTime         time.Duration `mapstructure:"wait_time" validate:"gte=1s,lte=20s"`
	TransformTimeout time.Duration `mapstructure:"transform_timeout" validate:"gt=0"`
}

// ResizeConfig bounds the images the worker will decode.
type ResizeConfig struct {
	// MaxPixels caps width*height read from the image header.
	MaxPixels int64 `mapstructure:"max_pixels" validate:"gt=0"`
}

// SentryConfig contains error reporting settings. An empty DSN disables
// reporting.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}
