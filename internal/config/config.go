package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voice-platform/internal/telephony"
)

// Config holds all configuration required by the API process.
// All values come from env, optionally seeded from a local .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Carriers CarriersConfig
	Storage  StorageConfig
	Dialer   DialerConfig
	Voice    VoiceConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string

	// StoreBackend selects where call state lives: memory, redis or postgres.
	StoreBackend string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CarriersConfig configures the telephony gateway. A carrier whose
// credentials are missing is simply not configured.
type CarriersConfig struct {
	WebhookBaseURL string
	DefaultFrom    string
	Primary        string
	Failover       bool
	HealthInterval time.Duration

	Twilio     CarrierCredentials
	Telnyx     CarrierCredentials
	Plivo      CarrierCredentials
	SignalWire CarrierCredentials
}

type CarrierCredentials struct {
	Priority    int
	Credentials map[string]string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether the audio object tier is configured.
func (s StorageConfig) Enabled() bool { return s.Endpoint != "" }

type DialerConfig struct {
	// RateLimit caps successfully placed calls per business per minute.
	RateLimit int
	// CallWait bounds how long a campaign waits on one call.
	CallWait time.Duration
	// Backend holds limiter state: memory or redis.
	Backend string
}

type VoiceConfig struct {
	AgentURL string
	APIKey   string
}

func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.StoreBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in applyDefaults.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Carriers.WebhookBaseURL = strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL"))
	c.Carriers.DefaultFrom = strings.TrimSpace(os.Getenv("DEFAULT_CALLER_ID"))
	c.Carriers.Primary = strings.ToLower(strings.TrimSpace(os.Getenv("CARRIER_PRIMARY")))
	c.Carriers.Failover = optionalBool("CARRIER_FAILOVER", true)
	c.Carriers.HealthInterval = mustDuration("CARRIER_HEALTH_INTERVAL")
	c.Carriers.Twilio = carrierFromEnv("TWILIO", 1, "account_sid", "auth_token")
	c.Carriers.Telnyx = carrierFromEnv("TELNYX", 2, "api_key", "connection_id")
	c.Carriers.Plivo = carrierFromEnv("PLIVO", 3, "auth_id", "auth_token")
	c.Carriers.SignalWire = carrierFromEnv("SIGNALWIRE", 4, "project_id", "auth_token", "space_url")

	c.Storage.Endpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Storage.AccessKey = strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	c.Storage.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Storage.Bucket = strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	c.Storage.UseSSL = optionalBool("MINIO_USE_SSL", false)

	{
		n, err := optionalInt("DIALER_RATE_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Dialer.RateLimit = n
	}
	c.Dialer.CallWait = mustDuration("DIALER_CALL_WAIT")
	c.Dialer.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("DIALER_BACKEND")))

	c.Voice.AgentURL = strings.TrimSpace(os.Getenv("VOICE_AGENT_URL"))
	c.Voice.APIKey = os.Getenv("VOICE_AGENT_API_KEY")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// applyDefaults fills optional values. Production-only requirements are left
// empty so Validate can report them.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.App.StoreBackend == "" {
		c.App.StoreBackend = "memory"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Carriers.HealthInterval <= 0 {
		c.Carriers.HealthInterval = time.Minute
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "voice-audio"
	}
	if c.Dialer.RateLimit <= 0 {
		c.Dialer.RateLimit = 10
	}
	if c.Dialer.CallWait <= 0 {
		c.Dialer.CallWait = 30 * time.Second
	}
	if c.Dialer.Backend == "" {
		c.Dialer.Backend = "memory"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	switch c.App.StoreBackend {
	case "", "memory", "redis", "postgres":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, got %q", c.App.StoreBackend))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Carriers.WebhookBaseURL == "" {
			errs = append(errs, errors.New("WEBHOOK_BASE_URL is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL > 0 && c.Auth.RefreshTokenTTL > 0 && c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Carriers.Primary != "" {
		if _, ok := telephony.ParseProvider(c.Carriers.Primary); !ok {
			errs = append(errs, fmt.Errorf("CARRIER_PRIMARY must be one of twilio, telnyx, plivo, signalwire, got %q", c.Carriers.Primary))
		}
	}
	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set"))
	}
	switch c.Dialer.Backend {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("DIALER_BACKEND must be memory or redis, got %q", c.Dialer.Backend))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// CarrierConfigs turns the carrier section into adapter configs. Every
// carrier is listed; telephony.NewCarriers skips incomplete bundles.
func (c Config) CarrierConfigs() []telephony.CarrierConfig {
	entries := []struct {
		provider telephony.Provider
		creds    CarrierCredentials
	}{
		{telephony.ProviderTwilio, c.Carriers.Twilio},
		{telephony.ProviderTelnyx, c.Carriers.Telnyx},
		{telephony.ProviderPlivo, c.Carriers.Plivo},
		{telephony.ProviderSignalWire, c.Carriers.SignalWire},
	}
	out := make([]telephony.CarrierConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, telephony.CarrierConfig{
			Provider:       e.provider,
			Enabled:        len(e.creds.Credentials) > 0,
			Priority:       e.creds.Priority,
			WebhookBaseURL: c.Carriers.WebhookBaseURL,
			DefaultFrom:    c.Carriers.DefaultFrom,
			Credentials:    e.creds.Credentials,
		})
	}
	return out
}

// carrierFromEnv reads PREFIX_<KEY> for each credential key and
// PREFIX_PRIORITY. Credentials stays nil when none are set.
func carrierFromEnv(prefix string, defaultPriority int, keys ...string) CarrierCredentials {
	out := CarrierCredentials{Priority: defaultPriority}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(prefix + "_PRIORITY"))); err == nil {
		out.Priority = n
	}
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(prefix + "_" + strings.ToUpper(k)))
		if v == "" {
			continue
		}
		if out.Credentials == nil {
			out.Credentials = map[string]string{}
		}
		out.Credentials[k] = v
	}
	return out
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
