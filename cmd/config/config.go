// Package config implements commands for inspecting and creating the
// configuration file.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/drawmap/internal/app"
	"github.com/tphakala/drawmap/internal/conf"
)

const redacted = "********"

// Command creates the config command with its show and init sub-commands.
func Command(rt *app.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(showCommand(rt), initCommand())
	return cmd
}

func showCommand(rt *app.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := *rt.Settings
			if settings.MQTT.Password != "" {
				settings.MQTT.Password = redacted
			}
			data, err := conf.MarshalYAML(&settings)
			if err != nil {
				return err
			}
			if used := conf.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := conf.DefaultConfigFile()
			if len(args) == 1 {
				path = args[0]
			}
			if err := conf.WriteTemplate(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Created default config file at:", path)
			return nil
		},
	}
}
