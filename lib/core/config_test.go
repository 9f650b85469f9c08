package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-i2p/wgadmin/lib/render"
	"github.com/go-i2p/wgadmin/lib/validation"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Path != DefaultStorePath {
		t.Errorf("store.path = %q, want %q", cfg.Store.Path, DefaultStorePath)
	}
	if cfg.Render.ConfigDir != DefaultConfigDir {
		t.Errorf("render.config_dir = %q, want %q", cfg.Render.ConfigDir, DefaultConfigDir)
	}
	if cfg.Commands.Retries != 0 {
		t.Errorf("commands.retries should default to 0, got %d", cfg.Commands.Retries)
	}
	if cfg.Commands.Timeout != 0 {
		t.Errorf("commands.timeout should default to 0, got %v", cfg.Commands.Timeout)
	}
	if !cfg.Lifecycle.ReloadRequiresUp || !cfg.Lifecycle.AutoReload || !cfg.Lifecycle.StopOnDelete {
		t.Errorf("lifecycle flags should default to true, got %+v", cfg.Lifecycle)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty store path",
			modify:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
		},
		{
			name:    "empty config dir",
			modify:  func(c *Config) { c.Render.ConfigDir = "" },
			wantErr: true,
		},
		{
			name:    "endpoint host with port",
			modify:  func(c *Config) { c.Render.EndpointHost = "vpn.example.com:51820" },
			wantErr: true,
		},
		{
			name:    "negative keepalive",
			modify:  func(c *Config) { c.Render.Keepalive = -1 },
			wantErr: true,
		},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.Commands.Retries = 11 },
			wantErr: true,
		},
		{
			name:    "sub-second timeout",
			modify:  func(c *Config) { c.Commands.Timeout = time.Millisecond },
			wantErr: true,
		},
		{
			name:    "unknown prober",
			modify:  func(c *Config) { c.Status.Prober = "netlink" },
			wantErr: true,
		},
		{
			name:    "unknown key provider",
			modify:  func(c *Config) { c.Keys.Provider = "hsm" },
			wantErr: true,
		},
		{
			name:    "zero burst with rate limit",
			modify:  func(c *Config) { c.API.RateBurst = 0 },
			wantErr: true,
		},
		{
			name:    "rate limit disabled ignores burst",
			modify:  func(c *Config) { c.API.RateLimit = 0; c.API.RateBurst = 0 },
			wantErr: false,
		},
		{
			name:    "wgctrl prober and native keys",
			modify:  func(c *Config) { c.Status.Prober = ProberWgctrl; c.Keys.Provider = KeysNative },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Warnings(t *testing.T) {
	tests := []struct {
		host string
		want int
	}{
		{render.DefaultEndpointHost, 1},
		{"::1", 1},
		{"localhost", 1},
		{"203.0.113.7", 0},
		{"vpn.example.com", 0},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Render.EndpointHost = tt.host
		if got := cfg.Warnings(); len(got) != tt.want {
			t.Errorf("Warnings() for %q = %v, want %d warnings", tt.host, got, tt.want)
		}
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = ""
	cfg.Commands.WG = ""

	var errs validation.Errors
	if !errors.As(cfg.Validate(), &errs) || len(errs) != 2 {
		t.Errorf("want 2 collected errors, got %v", cfg.Validate())
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.API.Listen != DefaultListen {
		t.Errorf("api.listen = %q, want default", cfg.API.Listen)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wgadmin.toml")
	content := `
[store]
path = "/var/lib/wgadmin/interfaces.toml"

[render]
config_dir = "/etc/wireguard"
egress_interface = "enp0s3"

[commands]
timeout = "30s"
retries = 2

[lifecycle]
auto_reload = false
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Store.Path != "/var/lib/wgadmin/interfaces.toml" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Render.ConfigDir != "/etc/wireguard" || cfg.Render.EgressInterface != "enp0s3" {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Commands.Timeout != 30*time.Second || cfg.Commands.Retries != 2 {
		t.Errorf("commands = %+v", cfg.Commands)
	}
	if cfg.Lifecycle.AutoReload {
		t.Error("lifecycle.auto_reload should be false")
	}
	if !cfg.Lifecycle.ReloadRequiresUp {
		t.Error("unset keys should keep their defaults")
	}
	if cfg.Commands.WG != "wg" {
		t.Errorf("commands.wg = %q, want default", cfg.Commands.WG)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("WGADMIN_API_TOKEN", "s3cret")
	t.Setenv("WGADMIN_LIFECYCLE_STOP_ON_DELETE", "false")
	t.Setenv("WGADMIN_RENDER_KEEPALIVE", "0")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.API.Token != "s3cret" {
		t.Errorf("api.token = %q", cfg.API.Token)
	}
	if cfg.Lifecycle.StopOnDelete {
		t.Error("lifecycle.stop_on_delete should be overridden to false")
	}
	if cfg.Render.Keepalive != 0 {
		t.Errorf("render.keepalive = %d", cfg.Render.Keepalive)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("[store\npath ="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(broken); err == nil {
		t.Error("LoadConfig() should fail on malformed TOML")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[status]\nprober = \"netlink\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("LoadConfig() should reject invalid values")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wgadmin.toml")

	cfg := DefaultConfig()
	cfg.Render.ConfigDir = "/etc/wireguard"
	cfg.Commands.Timeout = 45 * time.Second
	cfg.API.Token = "token"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestRenderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.EgressInterface = "ens3"
	cfg.Render.PostDown = "echo down"
	cfg.Render.Keepalive = 15

	opts := cfg.RenderOptions()
	if opts.EgressInterface != "ens3" || opts.PostDown != "echo down" || opts.Keepalive != 15 {
		t.Errorf("RenderOptions() = %+v", opts)
	}
	if opts.PostUp == "" {
		t.Error("PostUp should fall back to the built-in rule")
	}
}

func TestCommandPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commands.Retries = 3
	cfg.Commands.BreakerThreshold = 4

	p := cfg.CommandPolicy()
	if p.Retry.Retries != 3 || p.Breaker.FailureThreshold != 4 {
		t.Errorf("CommandPolicy() = %+v", p)
	}
}
