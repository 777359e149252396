package config

import (
	"strings"
	"testing"
	"time"

	"voice-platform/internal/telephony"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "DB_HOST", "REDIS_HOST", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err)
		}
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.applyDefaults()
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected error for production without DB_SSLMODE, got %v", err)
	}
}

func TestApplyDefaults_Local(t *testing.T) {
	c := validLocal()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute || c.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected token ttls %v %v", c.Auth.AccessTokenTTL, c.Auth.RefreshTokenTTL)
	}
	if c.Dialer.RateLimit != 10 || c.Dialer.Backend != "memory" || c.App.StoreBackend != "memory" {
		t.Fatalf("unexpected dialer defaults %+v store=%q", c.Dialer, c.App.StoreBackend)
	}
	if c.Dialer.CallWait != 30*time.Second {
		t.Fatalf("expected call wait 30s by default, got %v", c.Dialer.CallWait)
	}
}

func TestValidate_RejectsUnknownChoices(t *testing.T) {
	c := validLocal()
	c.App.StoreBackend = "etcd"
	c.Dialer.Backend = "kafka"
	c.Carriers.Primary = "vonage"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"STORE_BACKEND", "DIALER_BACKEND", "CARRIER_PRIMARY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err)
		}
	}
}

func TestValidate_StorageNeedsKeys(t *testing.T) {
	c := validLocal()
	c.Storage.Endpoint = "minio:9000"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "MINIO_ACCESS_KEY") {
		t.Fatalf("expected storage key error, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "voice")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("PLIVO_AUTH_ID", "MA1")
	t.Setenv("PLIVO_PRIORITY", "0")
	t.Setenv("CARRIER_FAILOVER", "false")
	t.Setenv("DIALER_CALL_WAIT", "90s")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPAddr() != ":9090" || c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
	if c.Carriers.Failover {
		t.Fatalf("expected failover disabled")
	}
	if c.Dialer.CallWait != 90*time.Second {
		t.Fatalf("expected call wait 90s, got %v", c.Dialer.CallWait)
	}

	byProvider := map[telephony.Provider]telephony.CarrierConfig{}
	for _, cc := range c.CarrierConfigs() {
		byProvider[cc.Provider] = cc
	}
	if tw := byProvider[telephony.ProviderTwilio]; !tw.Enabled || tw.Credentials["account_sid"] != "AC1" || tw.Priority != 1 {
		t.Fatalf("unexpected twilio config %+v", tw)
	}
	if pl := byProvider[telephony.ProviderPlivo]; !pl.Enabled || pl.Priority != 0 {
		t.Fatalf("unexpected plivo config %+v", pl)
	}
	if byProvider[telephony.ProviderTelnyx].Enabled {
		t.Fatalf("telnyx should not be enabled without credentials")
	}
}
