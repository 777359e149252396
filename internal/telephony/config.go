package telephony

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var ErrMissingCredentials = errors.New("telephony: missing credentials")

// CarrierConfig configures one vendor. It is immutable after gateway construction.
type CarrierConfig struct {
	Provider Provider
	Enabled  bool

	// Priority orders failover; lower is tried first.
	Priority int

	// WebhookBaseURL is the public base under which /{provider}/voice etc. are served.
	WebhookBaseURL string
	DefaultFrom    string

	// Credentials is the opaque vendor bundle:
	// twilio: account_sid, auth_token
	// telnyx: api_key, connection_id
	// plivo: auth_id, auth_token
	// signalwire: project_id, auth_token, space_url
	Credentials map[string]string
}

func (c CarrierConfig) credential(key string) string {
	return strings.TrimSpace(c.Credentials[key])
}

func (c CarrierConfig) require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if c.credential(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", ErrMissingCredentials, c.Provider, strings.Join(missing, ", "))
	}
	return nil
}

func (c CarrierConfig) webhook(path string) string {
	return strings.TrimRight(c.WebhookBaseURL, "/") + "/" + string(c.Provider) + "/" + path
}

// Option tweaks adapter construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	now        func() time.Time
}

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithBaseURL points the adapter at a different API root (tests, regional endpoints).
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = strings.TrimRight(u, "/") } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock is used by tests that assert webhook timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// NewCarrier builds the adapter for cfg.Provider.
// It returns ErrMissingCredentials when the bundle is incomplete; callers
// omit that carrier rather than failing the process.
func NewCarrier(cfg CarrierConfig, opts ...Option) (Carrier, error) {
	switch cfg.Provider {
	case ProviderTwilio:
		return NewTwilio(cfg, opts...)
	case ProviderSignalWire:
		return NewSignalWire(cfg, opts...)
	case ProviderTelnyx:
		return NewTelnyx(cfg, opts...)
	case ProviderPlivo:
		return NewPlivo(cfg, opts...)
	default:
		return nil, fmt.Errorf("telephony: unsupported provider %q", cfg.Provider)
	}
}

// NewCarriers builds every enabled, fully-credentialed carrier in cfgs.
// Carriers that cannot be built are logged and skipped.
func NewCarriers(cfgs []CarrierConfig, log *slog.Logger, opts ...Option) []ConfiguredCarrier {
	if log == nil {
		log = slog.Default()
	}
	out := make([]ConfiguredCarrier, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		c, err := NewCarrier(cfg, append([]Option{WithLogger(log)}, opts...)...)
		if err != nil {
			log.Warn("carrier not configured", "provider", cfg.Provider, "err", err)
			continue
		}
		out = append(out, ConfiguredCarrier{Carrier: c, Priority: cfg.Priority})
	}
	return out
}

// ConfiguredCarrier pairs an adapter with its failover priority.
type ConfiguredCarrier struct {
	Carrier  Carrier
	Priority int
}
