package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xmhha/usage-monitor/pkg/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}

				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "# Effective configuration")
				fmt.Fprintf(out, "# Source: %s\n\n", configSource(opts))
				_, err = out.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file location",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader(opts.configPath).Path())
				return err
			},
		},
		newConfigResetCmd(opts),
	)

	return cmd
}

func newConfigResetCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Write the default configuration to the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.NewLoader(opts.configPath).Path()

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat config file: %w", err)
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// configSource describes where the effective configuration came from.
func configSource(opts *options) string {
	path := config.NewLoader(opts.configPath).Path()
	if _, err := os.Stat(path); err != nil {
		return "defaults (no file at " + path + ")"
	}
	return path
}
