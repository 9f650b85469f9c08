package core

import (
	"fmt"

	"github.com/go-i2p/wgadmin/lib/command"
	"github.com/go-i2p/wgadmin/lib/keys"
	"github.com/go-i2p/wgadmin/lib/lifecycle"
	"github.com/go-i2p/wgadmin/lib/status"
	"github.com/go-i2p/wgadmin/lib/store"
)

// Runner builds the command runner described by the commands section.
func (c *Config) Runner() command.Runner {
	return command.WithPolicy(command.Exec{Timeout: c.Commands.Timeout}, c.CommandPolicy())
}

// KeyProvider builds the configured key provider.
func (c *Config) KeyProvider(runner command.Runner) keys.Provider {
	if c.Keys.Provider == KeysNative {
		return keys.NativeProvider{}
	}
	return keys.NewCommandProvider(runner, c.Commands.WG)
}

// Prober builds the configured status prober.
func (c *Config) Prober(runner command.Runner) status.Prober {
	if c.Status.Prober == ProberWgctrl {
		return status.WgctrlProber{}
	}
	return status.NewCommandProber(runner, c.Commands.WG)
}

// Open loads the model and assembles an Engine from cfg. A nil runner
// uses the one built by cfg.Runner.
func Open(cfg *Config, runner command.Runner) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}
	if runner == nil {
		runner = cfg.Runner()
	}

	st, err := store.Load(cfg.Store.Path, cfg.KeyProvider(runner))
	if err != nil {
		return nil, err
	}

	ctl := lifecycle.New(lifecycle.Config{
		Dir:     cfg.Render.ConfigDir,
		WG:      cfg.Commands.WG,
		WGQuick: cfg.Commands.WGQuick,
		Render:  cfg.RenderOptions(),
	}, runner)

	log.WithField("store", cfg.Store.Path).
		WithField("config_dir", cfg.Render.ConfigDir).
		WithField("prober", cfg.Status.Prober).
		WithField("keys", cfg.Keys.Provider).
		Info("engine ready")

	return NewEngine(Deps{
		Store:      st,
		Controller: ctl,
		Prober:     cfg.Prober(runner),
		Render:     cfg.RenderOptions(),
		Lifecycle:  cfg.Lifecycle,
	})
}
