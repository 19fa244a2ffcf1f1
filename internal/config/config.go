package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/healthdesk/admin-api/pkg/messaging/redis"
	"github.com/healthdesk/admin-api/pkg/worker"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Suspension SuspensionConfig `mapstructure:"suspension"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	HealthPort      int           `mapstructure:"health_port"`
}

// StorageConfig selects the backend: postgres, mongo or memory.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type SuspensionConfig struct {
	WarningThreshold  int `mapstructure:"warning_threshold"`
	DeletionThreshold int `mapstructure:"deletion_threshold"`
	ExpiryBatchSize   int `mapstructure:"expiry_batch_size"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	ClientTTL         time.Duration `mapstructure:"client_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type JobsConfig struct {
	ExpirySchedule        string `mapstructure:"expiry_schedule"`
	ActivityCleanup       string `mapstructure:"activity_cleanup_schedule"`
	ActivityRetentionDays int    `mapstructure:"activity_retention_days"`
	OutboxRetentionDays   int    `mapstructure:"outbox_retention_days"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// envOverrides are secrets and endpoints that deployments inject as ADMIN_*
// environment variables. Empty values leave the file config untouched.
type envOverrides struct {
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	DatabaseHost  string `envconfig:"DB_HOST"`
	DatabasePort  int    `envconfig:"DB_PORT"`
	DatabaseUser  string `envconfig:"DB_USER"`
	DatabasePass  string `envconfig:"DB_PASSWORD"`
	DatabaseName  string `envconfig:"DB_NAME"`
	MongoURI      string `envconfig:"MONGO_URI"`
	RedisURL      string `envconfig:"REDIS_URL"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "admin_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("mongo.database", "admin")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.channel", "doctor-events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)

	v.SetDefault("jwt.issuer", "admin-api")
	v.SetDefault("jwt.expiry_hours", 12)

	v.SetDefault("suspension.warning_threshold", 5)
	v.SetDefault("suspension.deletion_threshold", 6)
	v.SetDefault("suspension.expiry_batch_size", 100)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.client_ttl", 10*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.max_retries", 5)

	v.SetDefault("jobs.expiry_schedule", "@every 5m")
	v.SetDefault("jobs.activity_cleanup_schedule", "@daily")
	v.SetDefault("jobs.activity_retention_days", 365)
	v.SetDefault("jobs.outbox_retention_days", 7)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads an optional .env file, then config.yaml, then ADMIN_*
// environment overrides. A missing config file is not an error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix("ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("admin", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.applyOverrides(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(env envOverrides) {
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	set(&c.Storage.Driver, env.StorageDriver)
	set(&c.Database.Host, env.DatabaseHost)
	set(&c.Database.User, env.DatabaseUser)
	set(&c.Database.Password, env.DatabasePass)
	set(&c.Database.Name, env.DatabaseName)
	set(&c.Mongo.URI, env.MongoURI)
	set(&c.Redis.URL, env.RedisURL)
	set(&c.JWT.Secret, env.JWTSecret)
	set(&c.SMTP.Password, env.SMTPPassword)
	set(&c.Log.Level, env.LogLevel)
	if env.DatabasePort != 0 {
		c.Database.Port = env.DatabasePort
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "mongo" && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required for the mongo driver")
	}
	if c.Suspension.WarningThreshold < 1 {
		return fmt.Errorf("suspension.warning_threshold must be at least 1")
	}
	if c.Suspension.DeletionThreshold <= c.Suspension.WarningThreshold {
		return fmt.Errorf("suspension.deletion_threshold must be greater than warning_threshold")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox batch_size and poll_interval must be positive")
	}
	return nil
}

// ToBrokerConfig converts the redis section into broker options.
func (c *Config) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.Redis.URL,
		MaxRetries:   c.Redis.MaxRetries,
		RetryBackoff: c.Redis.RetryBackoff,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

// ToWorkerConfig converts the outbox section, publishing to topic.
func (c OutboxConfig) ToWorkerConfig(topic string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		Topic:         topic,
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetries:    c.MaxRetries,
	}
}
