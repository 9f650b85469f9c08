// Package core composes the model store, renderer, lifecycle controller and
// status prober into the wgadmin engine, and holds its configuration.
package core

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/go-i2p/wgadmin/lib/command"
	"github.com/go-i2p/wgadmin/lib/render"
	"github.com/go-i2p/wgadmin/lib/resilience"
	"github.com/go-i2p/wgadmin/lib/validation"
)

// Default configuration values
const (
	DefaultStorePath        = "interfaces.toml"
	DefaultConfigDir        = "/tmp"
	DefaultListen           = "127.0.0.1:8000"
	DefaultRateLimit        = 10.0
	DefaultRateBurst        = 20
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 60 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultCommandBackoff   = 200 * time.Millisecond
	DefaultBreakerThreshold = 0 // disabled
	DefaultBreakerTimeout   = 30 * time.Second

	// EnvPrefix prefixes environment overrides, e.g. WGADMIN_API_TOKEN.
	EnvPrefix = "WGADMIN"
)

// Prober and key provider kinds.
const (
	ProberCommand = "command"
	ProberWgctrl  = "wgctrl"

	KeysCommand = "command"
	KeysNative  = "native"
)

// Config holds all configuration for wgadmin.
type Config struct {
	Store     StoreConfig     `toml:"store" mapstructure:"store"`
	Render    RenderConfig    `toml:"render" mapstructure:"render"`
	Commands  CommandsConfig  `toml:"commands" mapstructure:"commands"`
	Lifecycle LifecycleConfig `toml:"lifecycle" mapstructure:"lifecycle"`
	Status    StatusConfig    `toml:"status" mapstructure:"status"`
	API       APIConfig       `toml:"api" mapstructure:"api"`
	Keys      KeysConfig      `toml:"keys" mapstructure:"keys"`
}

// StoreConfig locates the model document.
type StoreConfig struct {
	// Path is the TOML document holding servers and peers
	Path string `toml:"path" mapstructure:"path"`
}

// RenderConfig controls the generated wg-quick files.
type RenderConfig struct {
	// ConfigDir receives <name>.conf and update_<name>.conf
	ConfigDir string `toml:"config_dir" mapstructure:"config_dir"`
	// EgressInterface is used by the default PostUp/PostDown rules
	EgressInterface string `toml:"egress_interface" mapstructure:"egress_interface"`
	// EndpointHost is written into peer configs for servers without an endpoint
	EndpointHost string `toml:"endpoint_host" mapstructure:"endpoint_host"`
	// PostUp and PostDown replace the built-in hooks when set
	PostUp   string `toml:"post_up,omitempty" mapstructure:"post_up"`
	PostDown string `toml:"post_down,omitempty" mapstructure:"post_down"`
	// Keepalive is the PersistentKeepalive of peer configs, 0 to omit
	Keepalive int `toml:"keepalive" mapstructure:"keepalive"`
}

// CommandsConfig controls how wg and wg-quick are run.
type CommandsConfig struct {
	WG      string `toml:"wg" mapstructure:"wg"`
	WGQuick string `toml:"wg_quick" mapstructure:"wg_quick"`
	// Timeout bounds a single invocation; 0 waits indefinitely
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
	// Retries is the number of extra attempts after a failure
	Retries    int           `toml:"retries" mapstructure:"retries"`
	Backoff    time.Duration `toml:"backoff" mapstructure:"backoff"`
	MaxBackoff time.Duration `toml:"max_backoff" mapstructure:"max_backoff"`
	// BreakerThreshold opens a tool's circuit after this many consecutive
	// failures; 0 disables circuit breaking
	BreakerThreshold int           `toml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `toml:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// LifecycleConfig controls runtime side effects of model changes.
type LifecycleConfig struct {
	// ReloadRequiresUp rejects hot-reloads of interfaces that are down
	ReloadRequiresUp bool `toml:"reload_requires_up" mapstructure:"reload_requires_up"`
	// AutoReload hot-reloads a live interface after its peers change
	AutoReload bool `toml:"auto_reload" mapstructure:"auto_reload"`
	// StopOnDelete takes a live interface down before deleting its server
	StopOnDelete bool `toml:"stop_on_delete" mapstructure:"stop_on_delete"`
}

// StatusConfig selects the status prober.
type StatusConfig struct {
	// Prober is "command" (wg show interfaces) or "wgctrl"
	Prober string `toml:"prober" mapstructure:"prober"`
}

// APIConfig contains HTTP API settings.
type APIConfig struct {
	// Listen is the address to bind the API server to
	Listen string `toml:"listen" mapstructure:"listen"`
	// Token is the bearer token; empty disables authentication
	Token string `toml:"token,omitempty" mapstructure:"token"`
	// RateLimit is requests per second allowed per client, 0 to disable
	RateLimit       float64       `toml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst       int           `toml:"rate_burst" mapstructure:"rate_burst"`
	ReadTimeout     time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// KeysConfig selects the key provider.
type KeysConfig struct {
	// Provider is "command" (wg genkey/pubkey) or "native"
	Provider string `toml:"provider" mapstructure:"provider"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: DefaultStorePath,
		},
		Render: RenderConfig{
			ConfigDir:       DefaultConfigDir,
			EgressInterface: render.DefaultEgressInterface,
			EndpointHost:    render.DefaultEndpointHost,
			Keepalive:       render.DefaultKeepalive,
		},
		Commands: CommandsConfig{
			WG:               "wg",
			WGQuick:          "wg-quick",
			Backoff:          DefaultCommandBackoff,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerTimeout:   DefaultBreakerTimeout,
		},
		Lifecycle: LifecycleConfig{
			ReloadRequiresUp: true,
			AutoReload:       true,
			StopOnDelete:     true,
		},
		Status: StatusConfig{
			Prober: ProberCommand,
		},
		API: APIConfig{
			Listen:          DefaultListen,
			RateLimit:       DefaultRateLimit,
			RateBurst:       DefaultRateBurst,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Keys: KeysConfig{
			Provider: KeysCommand,
		},
	}
}

// setDefaults registers every key of DefaultConfig with v, which is also
// what makes the keys visible to environment overrides.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	defaults := map[string]any{
		"store.path":                   d.Store.Path,
		"render.config_dir":            d.Render.ConfigDir,
		"render.egress_interface":      d.Render.EgressInterface,
		"render.endpoint_host":         d.Render.EndpointHost,
		"render.post_up":               d.Render.PostUp,
		"render.post_down":             d.Render.PostDown,
		"render.keepalive":             d.Render.Keepalive,
		"commands.wg":                  d.Commands.WG,
		"commands.wg_quick":            d.Commands.WGQuick,
		"commands.timeout":             d.Commands.Timeout,
		"commands.retries":             d.Commands.Retries,
		"commands.backoff":             d.Commands.Backoff,
		"commands.max_backoff":         d.Commands.MaxBackoff,
		"commands.breaker_threshold":   d.Commands.BreakerThreshold,
		"commands.breaker_timeout":     d.Commands.BreakerTimeout,
		"lifecycle.reload_requires_up": d.Lifecycle.ReloadRequiresUp,
		"lifecycle.auto_reload":        d.Lifecycle.AutoReload,
		"lifecycle.stop_on_delete":     d.Lifecycle.StopOnDelete,
		"status.prober":                d.Status.Prober,
		"api.listen":                   d.API.Listen,
		"api.token":                    d.API.Token,
		"api.rate_limit":               d.API.RateLimit,
		"api.rate_burst":               d.API.RateBurst,
		"api.read_timeout":             d.API.ReadTimeout,
		"api.write_timeout":            d.API.WriteTimeout,
		"api.shutdown_timeout":         d.API.ShutdownTimeout,
		"keys.provider":                d.Keys.Provider,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadConfig reads configuration from a TOML file and WGADMIN_* environment
// variables, which take precedence. If path is empty or the file doesn't
// exist, defaults plus environment are used.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			log.WithField("path", path).Debug("config file not found, using defaults")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs validation.Errors
	errs.Add(validation.Required("store.path", c.Store.Path))
	errs.Add(validation.Required("render.config_dir", c.Render.ConfigDir))
	errs.Add(validation.Host("render.endpoint_host", c.Render.EndpointHost))
	errs.Add(validation.Hook("render.post_up", c.Render.PostUp))
	errs.Add(validation.Hook("render.post_down", c.Render.PostDown))
	errs.Add(validation.IntRange("render.keepalive", c.Render.Keepalive, 0, 65535))
	errs.Add(validation.Required("commands.wg", c.Commands.WG))
	errs.Add(validation.Required("commands.wg_quick", c.Commands.WGQuick))
	errs.Add(validation.DurationRange("commands.timeout", c.Commands.Timeout, time.Second, time.Hour))
	errs.Add(validation.IntRange("commands.retries", c.Commands.Retries, 0, 10))
	errs.Add(validation.NonNegative("commands.breaker_threshold", c.Commands.BreakerThreshold))
	if c.Status.Prober != ProberCommand && c.Status.Prober != ProberWgctrl {
		errs.Add(validation.NewResult("status.prober", "must be \"command\" or \"wgctrl\"", validation.ErrInvalidFormat))
	}
	if c.Keys.Provider != KeysCommand && c.Keys.Provider != KeysNative {
		errs.Add(validation.NewResult("keys.provider", "must be \"command\" or \"native\"", validation.ErrInvalidFormat))
	}
	errs.Add(validation.Required("api.listen", c.API.Listen))
	if c.API.RateLimit < 0 {
		errs.Add(validation.NewResult("api.rate_limit", "must be non-negative", validation.ErrOutOfRange))
	}
	if c.API.RateLimit > 0 {
		errs.Add(validation.IntRange("api.rate_burst", c.API.RateBurst, 1, 10000))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Warnings lists settings that are valid but almost certainly not what a
// deployment wants.
func (c *Config) Warnings() []string {
	var out []string
	host := c.Render.EndpointHost
	if ip, err := netip.ParseAddr(host); (err == nil && ip.IsLoopback()) || strings.EqualFold(host, "localhost") {
		out = append(out, fmt.Sprintf("render.endpoint_host is %s; peer configs for servers without an endpoint will dial the peer itself", host))
	}
	return out
}

// RenderOptions converts the render section into renderer options.
func (c *Config) RenderOptions() render.Options {
	opts := render.DefaultOptions()
	if c.Render.PostUp != "" {
		opts.PostUp = c.Render.PostUp
	}
	if c.Render.PostDown != "" {
		opts.PostDown = c.Render.PostDown
	}
	if c.Render.EgressInterface != "" {
		opts.EgressInterface = c.Render.EgressInterface
	}
	opts.EndpointHost = c.Render.EndpointHost
	opts.Keepalive = c.Render.Keepalive
	return opts
}

// CommandPolicy converts the commands section into a runner policy.
func (c *Config) CommandPolicy() command.Policy {
	return command.Policy{
		Retry: resilience.RetryConfig{
			Retries:    uint64(c.Commands.Retries),
			Backoff:    c.Commands.Backoff,
			MaxBackoff: c.Commands.MaxBackoff,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: c.Commands.BreakerThreshold,
			Timeout:          c.Commands.BreakerTimeout,
		},
	}
}
