package core

import (
	"path/filepath"
	"testing"

	"github.com/go-i2p/wgadmin/lib/command/commandtest"
)

// testConfig creates a configuration whose files all live in a per-test
// directory.
func testConfig(t *testing.T) *Config {
	t.Helper()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "interfaces.toml")
	cfg.Render.ConfigDir = filepath.Join(dir, "run")
	cfg.Render.EndpointHost = "203.0.113.7"
	return cfg
}

// newTestEngine opens an engine over a scripted runner that generates real
// keys and reports the given interfaces as up.
func newTestEngine(t *testing.T, cfg *Config, live ...string) (*Engine, *commandtest.Fake) {
	t.Helper()

	fake := commandtest.New().Keys().Live(live...)
	e, err := Open(cfg, fake)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return e, fake
}
