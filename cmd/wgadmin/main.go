// wgadmin manages WireGuard tunnel interfaces and their peers.
//
// It keeps a declarative model of servers and peers in a TOML file,
// renders wg-quick configs from it, and drives the interfaces with the
// wg and wg-quick tools.
//
// Usage:
//
//	wgadmin serve                      Run the HTTP API
//	wgadmin status                     List servers and whether they are up
//	wgadmin render <server>            Print a server's interface config
//	wgadmin peer-config <server> <peer> Print or save a peer's config
//	wgadmin keygen                     Generate a keypair
//	wgadmin config init [path]         Write the default configuration
//	wgadmin version                    Print version information
//
// Every command accepts --config (default "wgadmin.toml"). Settings can also
// be given as WGADMIN_* environment variables, e.g. WGADMIN_API_TOKEN.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-i2p/wgadmin/lib/command"
	"github.com/go-i2p/wgadmin/lib/core"
)

const defaultConfigPath = "wgadmin.toml"

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	// runner overrides the command runner built from the configuration.
	runner command.Runner
}

// loadConfig reads the configuration named by --config.
func (a *app) loadConfig() (*core.Config, error) {
	return core.LoadConfig(a.configPath)
}

// openEngine loads the configuration and the model behind it.
func (a *app) openEngine() (*core.Config, *core.Engine, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	e, err := core.Open(cfg, a.runner)
	if err != nil {
		return nil, nil, err
	}
	return cfg, e, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wgadmin",
		Short:         "WireGuard tunnel control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "path to configuration file")

	root.AddCommand(
		newServeCmd(a),
		newStatusCmd(a),
		newRenderCmd(a),
		newPeerConfigCmd(a),
		newKeygenCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
