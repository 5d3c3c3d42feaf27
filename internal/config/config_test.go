package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8787" {
		t.Errorf("HTTPAddr = %q, want :8787", cfg.HTTPAddr)
	}
	if cfg.AuditKafkaTopic != "specsync-audit" {
		t.Errorf("AuditKafkaTopic = %q", cfg.AuditKafkaTopic)
	}
	if cfg.CodeTTL() != 15*time.Minute {
		t.Errorf("CodeTTL = %v, want 15m", cfg.CodeTTL())
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval())
	}
	if cfg.BearerTTL() != 0 {
		t.Errorf("BearerTTL = %v, want 0 (no expiry)", cfg.BearerTTL())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("DEVICE_CODE_TTL", "5m")
	t.Setenv("TOKEN_TTL", "24h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want :9000", cfg.HTTPAddr)
	}
	if cfg.CodeTTL() != 5*time.Minute {
		t.Errorf("CodeTTL = %v, want 5m", cfg.CodeTTL())
	}
	if cfg.BearerTTL() != 24*time.Hour {
		t.Errorf("BearerTTL = %v, want 24h", cfg.BearerTTL())
	}
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Error("expected error for production without DATABASE_URL")
	}
}

func TestLoad_ProductionRejectsPlainAPIKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/specsync")
	t.Setenv("SYNC_API_KEY", "plaintext")
	if _, err := Load(); err == nil {
		t.Error("expected error for plaintext API key in production")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	c := &Config{KafkaBrokers: "b1:9092, b2:9092 ,,"}
	got := c.KafkaBrokersList()
	if len(got) != 2 || got[0] != "b1:9092" || got[1] != "b2:9092" {
		t.Errorf("brokers = %v, want [b1:9092 b2:9092]", got)
	}
	if (&Config{}).KafkaBrokersList() != nil {
		t.Error("empty config should yield nil broker list")
	}
}

func TestDurationHelpers_InvalidFallsBack(t *testing.T) {
	c := &Config{DeviceCodeTTL: "soon", DevicePollInterval: "-3s", TokenTTL: "never"}
	if c.CodeTTL() != 15*time.Minute {
		t.Errorf("CodeTTL = %v, want fallback 15m", c.CodeTTL())
	}
	if c.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v, want fallback 5s", c.PollInterval())
	}
	if c.BearerTTL() != 0 {
		t.Errorf("BearerTTL = %v, want fallback 0", c.BearerTTL())
	}
}
