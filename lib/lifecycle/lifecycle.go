// Package lifecycle brings WireGuard interfaces up, takes them down and
// hot-reloads their peer set through wg-quick and wg.
//
// The controller keeps no state. Every operation renders the interface
// config from the snapshot it is given, writes it to the server's config
// path and then runs the tool. Writing and running are not transactional:
// a stale file left by a failed command is rewritten on the next call.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-i2p/wgadmin/lib/command"
	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/render"
)

// Config configures a Controller.
type Config struct {
	// Dir holds the rendered <name>.conf and update_<name>.conf files.
	Dir string
	// WG and WGQuick are the tool binaries. Empty means "wg" and "wg-quick".
	WG      string
	WGQuick string
	// Render controls hooks and defaults of the rendered config.
	Render render.Options
}

// Controller drives the tunnel runtime.
type Controller struct {
	cfg    Config
	runner command.Runner
}

// New creates a Controller.
func New(cfg Config, runner command.Runner) *Controller {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.WG == "" {
		cfg.WG = "wg"
	}
	if cfg.WGQuick == "" {
		cfg.WGQuick = "wg-quick"
	}
	return &Controller{cfg: cfg, runner: runner}
}

// ConfigPath returns where the interface config of the named server lives.
func (c *Controller) ConfigPath(name string) string {
	return filepath.Join(c.cfg.Dir, name+".conf")
}

// UpdatePath returns where the stripped config used for reloads lives.
func (c *Controller) UpdatePath(name string) string {
	return filepath.Join(c.cfg.Dir, "update_"+name+".conf")
}

// WriteConfig renders srv and writes it to its config path with mode 0600.
func (c *Controller) WriteConfig(srv model.Server) (string, error) {
	path := c.ConfigPath(srv.Name)
	if err := writeFile(path, render.Interface(srv, c.cfg.Render)); err != nil {
		return "", err
	}
	return path, nil
}

// Start writes the config and runs "wg-quick up". A non-zero exit is
// returned as a *errors.CommandError carrying the tool's stderr.
func (c *Controller) Start(ctx context.Context, srv model.Server) error {
	path, err := c.WriteConfig(srv)
	if err != nil {
		return err
	}
	if _, err := command.Output(ctx, c.runner, command.New(c.cfg.WGQuick, "up", path)); err != nil {
		log.WithField("server", srv.Name).WithError(err).Error("failed to bring interface up")
		return fmt.Errorf("starting %s: %w", srv.Name, err)
	}
	log.WithField("server", srv.Name).Info("interface up")
	return nil
}

// Stop writes the config and runs "wg-quick down".
func (c *Controller) Stop(ctx context.Context, srv model.Server) error {
	path, err := c.WriteConfig(srv)
	if err != nil {
		return err
	}
	if _, err := command.Output(ctx, c.runner, command.New(c.cfg.WGQuick, "down", path)); err != nil {
		log.WithField("server", srv.Name).WithError(err).Error("failed to bring interface down")
		return fmt.Errorf("stopping %s: %w", srv.Name, err)
	}
	log.WithField("server", srv.Name).Info("interface down")
	return nil
}

// Reload applies the current peer set to a running interface without
// disturbing existing sessions: the config is stripped to the subset wg
// understands and handed to "wg syncconf".
func (c *Controller) Reload(ctx context.Context, srv model.Server) error {
	path, err := c.WriteConfig(srv)
	if err != nil {
		return err
	}

	stripped, err := command.Output(ctx, c.runner, command.New(c.cfg.WGQuick, "strip", path))
	if err != nil {
		log.WithField("server", srv.Name).WithError(err).Error("failed to strip config")
		return fmt.Errorf("reloading %s: %w", srv.Name, err)
	}

	update := c.UpdatePath(srv.Name)
	if err := writeFile(update, stripped); err != nil {
		return err
	}

	if _, err := command.Output(ctx, c.runner, command.New(c.cfg.WG, "syncconf", srv.Name, update)); err != nil {
		log.WithField("server", srv.Name).WithError(err).Error("failed to sync config")
		return fmt.Errorf("reloading %s: %w", srv.Name, err)
	}

	log.WithField("server", srv.Name).
		WithField("peers", len(srv.EnabledPeers())).
		Info("interface reloaded")
	return nil
}

// RemoveConfig deletes the rendered files of the named server. Missing
// files are not an error.
func (c *Controller) RemoveConfig(name string) error {
	var errs []error
	for _, path := range []string{c.ConfigPath(name), c.UpdatePath(name)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
