package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Payments PaymentsConfig
	Maps     MapsConfig
	MQTT     MQTTConfig
	Worker   WorkerConfig
	Email    EmailConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env         string `mapstructure:"APP_ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	CORSOrigin  string `mapstructure:"CORS_ORIGIN"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	WebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	// BaseURL overrides the API endpoint (stripe-mock in development).
	BaseURL string `mapstructure:"STRIPE_BASE_URL"`
}

// PaymentsConfig holds payment business limits.
type PaymentsConfig struct {
	Currency      string  `mapstructure:"PAYMENT_CURRENCY"`
	MinAmount     float64 `mapstructure:"PAYMENT_MIN_AMOUNT"`
	MaxAmount     float64 `mapstructure:"PAYMENT_MAX_AMOUNT"`
	DepositAmount float64 `mapstructure:"PAYMENT_DEPOSIT_AMOUNT"`
}

// MapsConfig holds geocoding and routing settings.
type MapsConfig struct {
	NominatimURL string        `mapstructure:"MAPS_NOMINATIM_URL"`
	OSRMURL      string        `mapstructure:"MAPS_OSRM_URL"`
	UserAgent    string        `mapstructure:"MAPS_USER_AGENT"`
	CountryCodes string        `mapstructure:"MAPS_COUNTRY_CODES"`
	Timeout      time.Duration `mapstructure:"MAPS_TIMEOUT"`
	CacheTTL     time.Duration `mapstructure:"MAPS_CACHE_TTL"`
}

// MQTTConfig holds broker settings for driver tracking.
type MQTTConfig struct {
	Enabled     bool          `mapstructure:"MQTT_ENABLED"`
	Broker      string        `mapstructure:"MQTT_BROKER"`
	ClientID    string        `mapstructure:"MQTT_CLIENT_ID"`
	Username    string        `mapstructure:"MQTT_USERNAME"`
	Password    string        `mapstructure:"MQTT_PASSWORD"`
	TopicPrefix string        `mapstructure:"MQTT_TOPIC_PREFIX"`
	QoS         byte          `mapstructure:"MQTT_QOS"`
	Timeout     time.Duration `mapstructure:"MQTT_TIMEOUT"`
	LocationTTL time.Duration `mapstructure:"MQTT_LOCATION_TTL"`
}

// WorkerConfig holds background task settings.
type WorkerConfig struct {
	Concurrency int    `mapstructure:"WORKER_CONCURRENCY"`
	Queue       string `mapstructure:"WORKER_QUEUE"`
	MaxRetry    int    `mapstructure:"WORKER_MAX_RETRY"`
}

// EmailConfig holds outgoing mail settings. An empty SMTPHost selects the
// logging sender.
type EmailConfig struct {
	From     string `mapstructure:"EMAIL_FROM"`
	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASSWORD"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Addr returns the SMTP server address in host:port format.
func (e *EmailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.SMTPHost, e.SMTPPort)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = v.ReadInConfig()

	cfg := &Config{}

	// ── App ─────────────────────────────────────────────
	cfg.App = AppConfig{
		Env:         v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		FrontendURL: v.GetString("FRONTEND_URL"),
		CORSOrigin:  v.GetString("CORS_ORIGIN"),
	}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         v.GetString("SERVER_HOST"),
		Port:         v.GetInt("SERVER_PORT"),
		ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     v.GetString("POSTGRES_HOST"),
		Port:     v.GetInt("POSTGRES_PORT"),
		User:     v.GetString("POSTGRES_USER"),
		Password: v.GetString("POSTGRES_PASSWORD"),
		DBName:   v.GetString("POSTGRES_DB"),
		SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		MaxConns: v.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: v.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Stripe / payments ───────────────────────────────
	cfg.Stripe = StripeConfig{
		SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		BaseURL:       v.GetString("STRIPE_BASE_URL"),
	}
	cfg.Payments = PaymentsConfig{
		Currency:      v.GetString("PAYMENT_CURRENCY"),
		MinAmount:     v.GetFloat64("PAYMENT_MIN_AMOUNT"),
		MaxAmount:     v.GetFloat64("PAYMENT_MAX_AMOUNT"),
		DepositAmount: v.GetFloat64("PAYMENT_DEPOSIT_AMOUNT"),
	}

	// ── Maps ────────────────────────────────────────────
	cfg.Maps = MapsConfig{
		NominatimURL: v.GetString("MAPS_NOMINATIM_URL"),
		OSRMURL:      v.GetString("MAPS_OSRM_URL"),
		UserAgent:    v.GetString("MAPS_USER_AGENT"),
		CountryCodes: v.GetString("MAPS_COUNTRY_CODES"),
		Timeout:      v.GetDuration("MAPS_TIMEOUT"),
		CacheTTL:     v.GetDuration("MAPS_CACHE_TTL"),
	}

	// ── MQTT ────────────────────────────────────────────
	cfg.MQTT = MQTTConfig{
		Enabled:     v.GetBool("MQTT_ENABLED"),
		Broker:      v.GetString("MQTT_BROKER"),
		ClientID:    v.GetString("MQTT_CLIENT_ID"),
		Username:    v.GetString("MQTT_USERNAME"),
		Password:    v.GetString("MQTT_PASSWORD"),
		TopicPrefix: v.GetString("MQTT_TOPIC_PREFIX"),
		QoS:         byte(v.GetUint("MQTT_QOS")),
		Timeout:     v.GetDuration("MQTT_TIMEOUT"),
		LocationTTL: v.GetDuration("MQTT_LOCATION_TTL"),
	}

	// ── Worker / email ──────────────────────────────────
	cfg.Worker = WorkerConfig{
		Concurrency: v.GetInt("WORKER_CONCURRENCY"),
		Queue:       v.GetString("WORKER_QUEUE"),
		MaxRetry:    v.GetInt("WORKER_MAX_RETRY"),
	}
	cfg.Email = EmailConfig{
		From:     v.GetString("EMAIL_FROM"),
		SMTPHost: v.GetString("SMTP_HOST"),
		SMTPPort: v.GetInt("SMTP_PORT"),
		SMTPUser: v.GetString("SMTP_USER"),
		SMTPPass: v.GetString("SMTP_PASSWORD"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// ── Defaults ────────────────────────────────────────
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGIN", "*")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "5s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "moveops")
	v.SetDefault("POSTGRES_PASSWORD", "moveops_secret")
	v.SetDefault("POSTGRES_DB", "moveops_db")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_CONNS", 50)
	v.SetDefault("POSTGRES_MIN_CONNS", 10)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_BASE_URL", "")

	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("PAYMENT_MIN_AMOUNT", 0.50)
	v.SetDefault("PAYMENT_MAX_AMOUNT", 10000)
	v.SetDefault("PAYMENT_DEPOSIT_AMOUNT", 50)

	v.SetDefault("MAPS_NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("MAPS_OSRM_URL", "https://router.project-osrm.org")
	v.SetDefault("MAPS_USER_AGENT", "moveops/1.0")
	v.SetDefault("MAPS_COUNTRY_CODES", "us")
	v.SetDefault("MAPS_TIMEOUT", "10s")
	v.SetDefault("MAPS_CACHE_TTL", "720h")

	v.SetDefault("MQTT_ENABLED", false)
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID", "moveops-api")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_TOPIC_PREFIX", "moveops")
	v.SetDefault("MQTT_QOS", 1)
	v.SetDefault("MQTT_TIMEOUT", "5s")
	v.SetDefault("MQTT_LOCATION_TTL", "10m")

	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_QUEUE", "notifications")
	v.SetDefault("WORKER_MAX_RETRY", 5)

	v.SetDefault("EMAIL_FROM", "MoveOps <no-reply@moveops.local>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
}

// validate rejects settings no component can run with.
func (c *Config) validate() error {
	if c.Payments.MinAmount <= 0 || c.Payments.MaxAmount < c.Payments.MinAmount {
		return fmt.Errorf("config: payment limits [%v, %v] are invalid", c.Payments.MinAmount, c.Payments.MaxAmount)
	}
	if c.Payments.DepositAmount < c.Payments.MinAmount {
		return fmt.Errorf("config: deposit %v below minimum payment %v", c.Payments.DepositAmount, c.Payments.MinAmount)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("config: MQTT_QOS %d must be 0, 1 or 2", c.MQTT.QoS)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: WORKER_CONCURRENCY must be positive")
	}
	return nil
}
