package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goliatone/go-config/cfgx"

	"github.com/goliatone/go-httfy/pkg/retry"
)

// Provider names accepted by ProviderConfig.Name.
const (
	ProviderFirebase = "firebase"
	ProviderMemory   = "memory"
	ProviderRemote   = "remote"
)

// Config captures module-level configuration knobs. Feature packages (token,
// api, relay, etc.) pull from these nested structs.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" json:"provider"`
	Token    TokenConfig    `mapstructure:"token" json:"token"`
	API      APIConfig      `mapstructure:"api" json:"api"`
	Relay    RelayConfig    `mapstructure:"relay" json:"relay"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
}

// ProviderConfig selects and configures the messaging provider.
type ProviderConfig struct {
	Name            string        `mapstructure:"name" json:"name"`
	ProjectID       string        `mapstructure:"project_id" json:"project_id"`
	ClientEmail     string        `mapstructure:"client_email" json:"client_email"`
	PrivateKey      string        `mapstructure:"private_key" json:"private_key"`
	CredentialsFile string        `mapstructure:"credentials_file" json:"credentials_file"`
	RemoteURL       string        `mapstructure:"remote_url" json:"remote_url"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
	DryRun          bool          `mapstructure:"dry_run" json:"dry_run"`
}

// TokenConfig controls delivery token acquisition. RetryPolicy is "constant"
// (RetryDelay every time) or "exponential" (RetryDelay doubling up to RetryMaxDelay).
type TokenConfig struct {
	VAPIDKey      string        `mapstructure:"vapid_key" json:"vapid_key"`
	MaxRetries    int           `mapstructure:"max_retries" json:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" json:"retry_delay"`
	RetryPolicy   string        `mapstructure:"retry_policy" json:"retry_policy"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay" json:"retry_max_delay"`
}

// Backoff builds the token retry policy.
func (t TokenConfig) Backoff() (retry.Backoff, error) {
	return retry.ForPolicy(t.RetryPolicy, t.RetryDelay, t.RetryMaxDelay)
}

// APIConfig scopes the HTTP server.
type APIConfig struct {
	Addr           string   `mapstructure:"addr" json:"addr"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	RatePerSecond  float64  `mapstructure:"rate_per_second" json:"rate_per_second"`
	RateBurst      int      `mapstructure:"rate_burst" json:"rate_burst"`
	OriginPatterns []string `mapstructure:"origin_patterns" json:"origin_patterns"`
}

// RelayConfig controls the websocket relay. Enabled is nil when unset, which
// reads as enabled.
type RelayConfig struct {
	Enabled      *bool         `mapstructure:"enabled" json:"enabled,omitempty"`
	URL          string        `mapstructure:"url" json:"url"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max" json:"reconnect_max"`
}

// IsEnabled reports whether the hub and stream route should run.
func (r RelayConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// LoggingConfig picks the logger backend.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Name:    ProviderMemory,
			Timeout: 10 * time.Second,
		},
		Token: TokenConfig{
			MaxRetries:    2,
			RetryDelay:    2 * time.Second,
			RetryPolicy:   retry.PolicyConstant,
			RetryMaxDelay: 30 * time.Second,
		},
		API: APIConfig{
			Addr:          ":8080",
			MaxBodyBytes:  64 << 10,
			RatePerSecond: 5,
			RateBurst:     10,
		},
		Relay: RelayConfig{
			Enabled:      boolPtr(true),
			ReconnectMax: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderMemory:
	case ProviderFirebase:
		hasInline := c.Provider.ProjectID != "" && c.Provider.ClientEmail != "" && c.Provider.PrivateKey != ""
		if !hasInline && c.Provider.CredentialsFile == "" {
			return errors.New("provider: firebase requires project_id, client_email and private_key, or credentials_file")
		}
	case ProviderRemote:
		if c.Provider.RemoteURL == "" {
			return errors.New("provider.remote_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("provider.name %q is not supported", c.Provider.Name)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must be >= 0")
	}
	if c.Token.MaxRetries < 0 {
		return fmt.Errorf("token.max_retries must be >= 0")
	}
	if c.Token.RetryDelay < 0 || c.Token.RetryMaxDelay < 0 {
		return fmt.Errorf("token retry delays must be >= 0")
	}
	if _, err := c.Token.Backoff(); err != nil {
		return fmt.Errorf("token.retry_policy: %w", err)
	}
	if c.API.RatePerSecond < 0 || c.API.RateBurst < 0 {
		return fmt.Errorf("api rate limits must be >= 0")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// While cfgx.Build still returns zero values, we fallback to a lightweight
// decoder to keep smoke tests meaningful.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	if settings.lookup != nil {
		cfg = ApplyEnv(cfg, settings.lookup)
	}
	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
	lookup    func(string) (string, bool)
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

// WithEnv overlays environment variables read through lookup. Pass nil to use os.LookupEnv.
func WithEnv(lookup func(string) (string, bool)) LoadOption {
	return func(lo *loadOptions) {
		if lookup == nil {
			lookup = os.LookupEnv
		}
		lo.lookup = lookup
	}
}

// ApplyEnv overlays FIREBASE_* credentials and HTTFY_* overrides on cfg. Setting
// Firebase credentials selects the firebase provider unless HTTFY_PROVIDER says otherwise.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) Config {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	credentials := false
	if v, ok := get("FIREBASE_PROJECT_ID"); ok {
		cfg.Provider.ProjectID = v
	}
	if v, ok := get("FIREBASE_CLIENT_EMAIL"); ok {
		cfg.Provider.ClientEmail = v
		credentials = true
	}
	if v, ok := get("FIREBASE_PRIVATE_KEY"); ok {
		cfg.Provider.PrivateKey = strings.Trim(v, `"`)
		credentials = true
	}
	if v, ok := get("FIREBASE_CREDENTIALS_FILE"); ok {
		cfg.Provider.CredentialsFile = v
		credentials = true
	}
	if v, ok := get("FIREBASE_VAPID_KEY"); ok {
		cfg.Token.VAPIDKey = v
	}
	if credentials && (cfg.Provider.Name == "" || cfg.Provider.Name == ProviderMemory) {
		cfg.Provider.Name = ProviderFirebase
	}

	if v, ok := get("HTTFY_PROVIDER"); ok {
		cfg.Provider.Name = strings.ToLower(v)
	}
	if v, ok := get("HTTFY_API_URL"); ok {
		cfg.Provider.RemoteURL = v
	}
	if v, ok := get("HTTFY_ADDR"); ok {
		cfg.API.Addr = v
	}
	if v, ok := get("HTTFY_RELAY_URL"); ok {
		cfg.Relay.URL = v
	}
	if v, ok := get("HTTFY_RELAY_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Relay.Enabled = boolPtr(b)
		}
	}
	if v, ok := get("HTTFY_RATE_PER_SECOND"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.API.RatePerSecond = f
		}
	}
	if v, ok := get("HTTFY_TOKEN_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Token.MaxRetries = n
		}
	}
	if v, ok := get("HTTFY_TOKEN_RETRY_POLICY"); ok {
		cfg.Token.RetryPolicy = strings.ToLower(v)
	}
	if v, ok := get("HTTFY_DRY_RUN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Provider.DryRun = b
		}
	}
	if v, ok := get("HTTFY_LOG_LEVEL"); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get("HTTFY_LOG_FORMAT"); ok {
		cfg.Logging.Format = strings.ToLower(v)
	}
	return cfg
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Provider.Name == "" {
		c.Provider.Name = defaults.Provider.Name
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = defaults.Provider.Timeout
	}
	if c.Token.MaxRetries == 0 {
		c.Token.MaxRetries = defaults.Token.MaxRetries
	}
	if c.Token.RetryDelay == 0 {
		c.Token.RetryDelay = defaults.Token.RetryDelay
	}
	if c.Token.RetryPolicy == "" {
		c.Token.RetryPolicy = defaults.Token.RetryPolicy
	}
	if c.Token.RetryMaxDelay == 0 {
		c.Token.RetryMaxDelay = defaults.Token.RetryMaxDelay
	}
	if c.API.Addr == "" {
		c.API.Addr = defaults.API.Addr
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = defaults.API.MaxBodyBytes
	}
	if c.API.RatePerSecond == 0 {
		c.API.RatePerSecond = defaults.API.RatePerSecond
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = defaults.API.RateBurst
	}
	if c.Relay.ReconnectMax == 0 {
		c.Relay.ReconnectMax = defaults.Relay.ReconnectMax
	}
	if c.Relay.Enabled == nil {
		c.Relay.Enabled = defaults.Relay.Enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	return c
}

func boolPtr(v bool) *bool { return &v }

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
