package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads,
// e.g. ATSCALE_SERVER_PORT for server.port.
const EnvPrefix = "ATSCALE"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal; viper only consults the environment for keys it knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics_port", 9090)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("store.backend", "postgres")

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.name", "atscale-resize")
	v.SetDefault("queue.visibility_timeout", 2*time.Minute)

	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.consumer_group", "resize-workers")
	v.SetDefault("redis.consumer", "")
	v.SetDefault("redis.max_len", 100000)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")

	v.SetDefault("blob.backend", "s3")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.presign_expiry", time.Hour)
	v.SetDefault("blob.use_path_style", false)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.wait_time", 10*time.Second)
	v.SetDefault("worker.transform_timeout", time.Minute)

	v.SetDefault("resize.max_pixels", 40_000_000)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}

// Validate runs struct-tag validation and then the checks that span
// sections, such as requiring a database URL for the postgres backend.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var problems []string
	if c.Store.Backend == "postgres" && c.Database.URL == "" {
		problems = append(problems, "database.url is required when store.backend is postgres")
	}
	if c.Queue.Backend == "redis" && len(c.Redis.Addrs) == 0 {
		problems = append(problems, "redis.addrs is required when queue.backend is redis")
	}
	if c.Queue.Backend == "redis" && c.Redis.ConsumerGroup == "" {
		problems = append(problems, "redis.consumer_group is required when queue.backend is redis")
	}
	if c.Blob.Backend == "s3" && c.Blob.Bucket == "" {
		problems = append(problems, "blob.bucket is required when blob.backend is s3")
	}
	if (c.Blob.Backend == "s3" || c.Queue.Backend == "sqs") && c.AWS.Region == "" {
		problems = append(problems, "aws.region is required for the s3 blob store and the sqs queue")
	}
	if c.Worker.TransformTimeout >= c.Queue.VisibilityTimeout {
		problems = append(problems, "worker.transform_timeout must be shorter than queue.visibility_timeout")
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		problems = append(problems, "aws.access_key_id and aws.secret_access_key must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
