package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arthurfary/passman/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save passman settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := a.resolvedConfigPath(); path != "" {
				fmt.Fprintf(a.stdout, "# %s\n", path)
			}
			if err := toml.NewEncoder(a.stdout).Encode(a.cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the effective settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.resolvedConfigPath()
			if path == "" {
				return userError{msg: "no config location; pass --config"}
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "%s Saved settings to %s\n", color.GreenString("✓"), path)
			return nil
		},
	})

	return cmd
}
