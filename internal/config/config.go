// Package config loads and validates server config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds sync-server configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8787).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty the server runs on
	// in-memory stores that lose state on restart, for dev and tests.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SyncAPIKey is the plaintext operator/bridge API key. Prefer
	// SyncAPIKeyHash in anything beyond local setups.
	SyncAPIKey string `mapstructure:"SYNC_API_KEY"`
	// SyncAPIKeyHash is the bcrypt hash of the API key; takes precedence
	// over SyncAPIKey when both are set.
	SyncAPIKeyHash string `mapstructure:"SYNC_API_KEY_HASH"`
	// DeviceCodeTTL is how long an unactivated device code lives (e.g. "15m").
	DeviceCodeTTL string `mapstructure:"DEVICE_CODE_TTL"`
	// DevicePollInterval is the poll interval handed to device-flow clients.
	DevicePollInterval string `mapstructure:"DEVICE_POLL_INTERVAL"`
	// TokenTTL is the issued bearer token lifetime; "0" issues tokens that
	// never expire (revocation still works via machine revoke).
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// VerificationURI is where a human activates a user code.
	VerificationURI string `mapstructure:"VERIFICATION_URI"`
	// OTLPEndpoint enables OTel exporters when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// KafkaBrokers is a comma-separated broker list; when set, audit
	// entries are also streamed to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the audit stream topic.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// LokiURL is used by cmd/worker to push audit entries to Loki.
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is cmd/worker's consumer group.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored; env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8787")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SYNC_API_KEY", "")
	v.SetDefault("SYNC_API_KEY_HASH", "")
	v.SetDefault("DEVICE_CODE_TTL", "15m")
	v.SetDefault("DEVICE_POLL_INTERVAL", "5s")
	v.SetDefault("TOKEN_TTL", "0")
	v.SetDefault("VERIFICATION_URI", "http://localhost:8787/device")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "specsync-audit")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "specsync-audit-worker")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL is required when APP_ENV=production")
	}
	if cfg.Env == "production" && cfg.SyncAPIKey != "" && cfg.SyncAPIKeyHash == "" {
		return nil, errors.New("config: set SYNC_API_KEY_HASH instead of SYNC_API_KEY when APP_ENV=production")
	}
	return &cfg, nil
}

// CodeTTL parses DeviceCodeTTL; 15m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.DeviceCodeTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// PollInterval parses DevicePollInterval; 5s if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.DevicePollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// BearerTTL parses TokenTTL; 0 (no expiry) if unset or invalid.
func (c *Config) BearerTTL() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// KafkaBrokersList splits the comma-separated broker config. A non-empty
// result means the audit stream is enabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
