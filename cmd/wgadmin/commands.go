package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/go-i2p/wgadmin/lib/core"
	"github.com/go-i2p/wgadmin/lib/keys"
	"github.com/go-i2p/wgadmin/version"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers and whether their interfaces are up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, e, err := a.openEngine()
			if err != nil {
				return err
			}
			list, err := e.ListServers(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tADDRESS\tPORT\tPEERS\tSTATE")
			for _, s := range list {
				state := "down"
				if s.Up {
					state = "up"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", s.Index, s.Name, s.Address, s.Port, s.Peers, state)
			}
			return tw.Flush()
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render <server>",
		Short: "Print a server's interface config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, e, err := a.openEngine()
			if err != nil {
				return err
			}
			data, err := e.InterfaceConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = out(cmd).Write(data)
			return err
		},
	}
}

func newPeerConfigCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "peer-config <server> <peer>",
		Short: "Print a peer's config, or save it with --output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, e, err := a.openEngine()
			if err != nil {
				return err
			}
			pc, err := e.PeerConfig(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if output == "" {
				_, err = out(cmd).Write(pc.Content)
				return err
			}
			if fi, err := os.Stat(output); err == nil && fi.IsDir() {
				output = filepath.Join(output, pc.Filename)
			}
			if err := os.WriteFile(output, pc.Content, 0o600); err != nil {
				return fmt.Errorf("writing peer config: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "wrote", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file or directory to write the config to")
	return cmd
}

func newKeygenCmd(a *app) *cobra.Command {
	var native bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a WireGuard keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var provider keys.Provider = keys.NativeProvider{}
			if !native {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				runner := a.runner
				if runner == nil {
					runner = cfg.Runner()
				}
				provider = cfg.KeyProvider(runner)
			}
			kp, err := provider.GenerateKeypair(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "private_key = %s\npublic_key = %s\n", kp.PrivateKey, kp.PublicKey)
			return nil
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "generate in-process instead of with the configured provider")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(out(cmd), "wgadmin %s\n", version.Full())
		},
	}
}
