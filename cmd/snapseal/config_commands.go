package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"snapseal/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			p := newDetailPrinter(cmd.OutOrStdout())
			p.section("Configuration")
			if exists {
				p.line(kindGood, "File", path)
			} else {
				p.line(kindWarn, "File", path+" (missing, defaults in effect)")
			}
			p.line(kindInfo, "Data dir", cfg.Paths.DataDir)
			p.line(kindInfo, "Inbox dir", cfg.Paths.InboxDir)
			p.line(kindInfo, "Socket", cfg.SocketPath())
			p.line(kindInfo, "Records DB", cfg.RecordsDBPath())
			p.line(kindInfo, "Assets DB", cfg.AssetsDBPath())
			if cfg.Registry.BaseURL == "" {
				p.line(kindWarn, "Registry", "(unset — uploads will fail until configured)")
			} else {
				p.line(kindInfo, "Registry", cfg.Registry.BaseURL)
			}
			p.line(kindInfo, "Watcher", yesNo(cfg.Watcher.Enabled))
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a sample configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(args)
			if err != nil {
				return err
			}

			if !force {
				if _, statErr := os.Stat(target); statErr == nil {
					return fmt.Errorf("%s already exists; pass --force to replace it", target)
				} else if !errors.Is(statErr, fs.ErrNotExist) {
					return fmt.Errorf("check %s: %w", target, statErr)
				}
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Set registry.base_url, then run `snapseal login`.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")
	return cmd
}

func resolveInitTarget(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		expanded, err := config.ExpandPath(args[0])
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}
