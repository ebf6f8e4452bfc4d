// Package config loads runtime settings from an optional YAML file and
// CORKBOARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"corkboard/pkg/platform/validation"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	devJWTSecret = "dev-secret-key-change-in-production-0000"
)

type Config struct {
	Environment string          `mapstructure:"environment" validate:"oneof=production development"`
	Server      ServerConfig    `mapstructure:"server"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Session     SessionConfig   `mapstructure:"session"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
	CSRF        CSRFConfig      `mapstructure:"csrf"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Audit       AuditConfig     `mapstructure:"audit"`
	Admin       AdminConfig     `mapstructure:"admin"`
	Mail        MailConfig      `mapstructure:"mail"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	PublicURL       string        `mapstructure:"public_url" validate:"required,url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type SessionConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer          string        `mapstructure:"issuer" validate:"required"`
	TokenTTL        time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl" validate:"gt=0"`
}

type RateLimitConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Store    string `mapstructure:"store" validate:"oneof=memory redis"`
	// Capacity bounds the number of tracked identities per bucket.
	Capacity         int `mapstructure:"capacity" validate:"min=1"`
	FailureThreshold int `mapstructure:"failure_threshold" validate:"min=1"`
	SuccessThreshold int `mapstructure:"success_threshold" validate:"min=1"`
}

type CSRFConfig struct {
	// ExemptPaths is a comma-separated list of path prefixes, e.g. webhooks.
	ExemptPaths string `mapstructure:"exempt_paths"`
}

// RedisConfig mirrors go-redis pool options. An empty URL means no Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig points at Postgres. An empty URL keeps every store in memory.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuditConfig struct {
	Retention     time.Duration `mapstructure:"retention" validate:"gt=0"`
	PurgeInterval time.Duration `mapstructure:"purge_interval" validate:"gt=0"`
	KafkaBrokers  string        `mapstructure:"kafka_brokers"`
	KafkaTopic    string        `mapstructure:"kafka_topic"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type MailConfig struct {
	SMTPHost    string        `mapstructure:"smtp_host"`
	SMTPPort    int           `mapstructure:"smtp_port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from" validate:"required,email"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsProduction reports whether production-only protections apply.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("session.jwt_secret", devJWTSecret)
	v.SetDefault("session.issuer", "corkboard")
	v.SetDefault("session.token_ttl", "24h")
	v.SetDefault("session.verification_ttl", "48h")

	v.SetDefault("ratelimit.disabled", false)
	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.capacity", 10000)
	v.SetDefault("ratelimit.failure_threshold", 5)
	v.SetDefault("ratelimit.success_threshold", 3)

	v.SetDefault("csrf.exempt_paths", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("audit.retention", "2160h")
	v.SetDefault("audit.purge_interval", "1h")
	v.SetDefault("audit.kafka_brokers", "")
	v.SetDefault("audit.kafka_topic", "corkboard.audit")

	v.SetDefault("admin.token", "")

	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "no-reply@corkboard.local")
	v.SetDefault("mail.max_attempts", 3)
	v.SetDefault("mail.backoff", "500ms")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configPath (optional) and the environment into a validated Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("corkboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/corkboard")
	}

	v.SetEnvPrefix("CORKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if msg, ok := validation.Struct(cfg); !ok {
		return fmt.Errorf("invalid config: %s", msg)
	}
	if cfg.RateLimit.Store == "redis" && cfg.Redis.URL == "" {
		return errors.New("invalid config: ratelimit.store=redis requires redis.url")
	}
	if cfg.IsProduction() && cfg.Session.JWTSecret == devJWTSecret {
		return errors.New("invalid config: session.jwt_secret must be set in production")
	}
	return nil
}
