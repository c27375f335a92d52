package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Invitation InvitationConfig `mapstructure:"invitation"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Mail       MailConfig       `mapstructure:"mail"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Events     EventsConfig     `mapstructure:"events"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	// BaseURL is the public web app address used in emailed links.
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	WorkerPort      int           `mapstructure:"worker_port"`
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
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL builds the postgres:// form used by the migration runner.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

func (c RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	SessionCacheTTL time.Duration `mapstructure:"session_cache_ttl"`
	PermissionTTL   time.Duration `mapstructure:"permission_cache_ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	MaxLoginAttempt int           `mapstructure:"max_login_attempts"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`

	// EncryptionKey protects MFA secrets at rest; 32 bytes for AES-256.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type InvitationConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	AcceptURL string        `mapstructure:"accept_url"`
}

type PaymentConfig struct {
	SecretKey       string `mapstructure:"secret_key"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	DefaultCurrency string `mapstructure:"default_currency"`
	BaseURL         string `mapstructure:"base_url"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// RetryDelay is multiplied by the attempt count to schedule the next try.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type JobsConfig struct {
	SessionPurgeSchedule     string `mapstructure:"session_purge_schedule"`
	InvitationExpirySchedule string `mapstructure:"invitation_expiry_schedule"`
	OutboxCleanupSchedule    string `mapstructure:"outbox_cleanup_schedule"`
	AuditCleanupSchedule     string `mapstructure:"audit_cleanup_schedule"`
	OutboxRetentionDays      int    `mapstructure:"outbox_retention_days"`
	AuditRetentionDays       int    `mapstructure:"audit_retention_days"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	TTL               time.Duration `mapstructure:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EventsConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	TrackedFields map[string][]string `mapstructure:"tracked_fields"`
}

// secrets are read from CLINIC_* environment variables and override the file.
type secrets struct {
	DatabasePassword     string `envconfig:"DATABASE_PASSWORD"`
	JWTSecret            string `envconfig:"JWT_SECRET"`
	EncryptionKey        string `envconfig:"ENCRYPTION_KEY"`
	PaymentSecretKey     string `envconfig:"PAYMENT_SECRET_KEY"`
	PaymentWebhookSecret string `envconfig:"PAYMENT_WEBHOOK_SECRET"`
	SMTPPassword         string `envconfig:"SMTP_PASSWORD"`
	RedisURL             string `envconfig:"REDIS_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "clinic-api")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.worker_port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.issuer", "clinic-api")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.session_cache_ttl", "1m")
	v.SetDefault("auth.cookie_name", "clinic_session")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lockout_duration", "15m")
	v.SetDefault("auth.permission_cache_ttl", "5m")

	v.SetDefault("invitation.ttl", "168h")
	v.SetDefault("invitation.accept_url", "http://localhost:3000/invitations/accept")

	v.SetDefault("payment.default_currency", "brl")

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@clinic.local")
	v.SetDefault("mail.from_name", "Clinic")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_delay", "1s")
	v.SetDefault("outbox.max_retries", 10)

	v.SetDefault("jobs.session_purge_schedule", "@every 1h")
	v.SetDefault("jobs.invitation_expiry_schedule", "@every 15m")
	v.SetDefault("jobs.outbox_cleanup_schedule", "0 3 * * *")
	v.SetDefault("jobs.audit_cleanup_schedule", "30 3 * * *")
	v.SetDefault("jobs.outbox_retention_days", 7)
	v.SetDefault("jobs.audit_retention_days", 365)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.ttl", "10m")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("events.enabled", true)
}

// LoadConfig reads .env (optional), config.yml (optional) and the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Warn().Msg("config file not found, using defaults and environment")
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("clinic", &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	applySecrets(&cfg, s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applySecrets(cfg *Config, s secrets) {
	override := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	override(&cfg.Database.Password, s.DatabasePassword)
	override(&cfg.Auth.JWTSecret, s.JWTSecret)
	override(&cfg.Auth.EncryptionKey, s.EncryptionKey)
	override(&cfg.Payment.SecretKey, s.PaymentSecretKey)
	override(&cfg.Payment.WebhookSecret, s.PaymentWebhookSecret)
	override(&cfg.Mail.Password, s.SMTPPassword)
	override(&cfg.Redis.URL, s.RedisURL)
}

// Validate checks settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch len(c.Auth.EncryptionKey) {
	case 16, 24, 32:
	default:
		return errors.New("auth.encryption_key must be 16, 24 or 32 bytes")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	return nil
}
