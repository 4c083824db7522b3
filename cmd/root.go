// Package cmd assembles the drawmap command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawmap/cmd/config"
	"github.com/tphakala/drawmap/cmd/dump"
	"github.com/tphakala/drawmap/cmd/ingest"
	"github.com/tphakala/drawmap/cmd/watch"
	"github.com/tphakala/drawmap/internal/app"
	"github.com/tphakala/drawmap/internal/buildinfo"
)

// RootCommand creates and returns the root command
func RootCommand(rt *app.Runtime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "drawmap",
		Short:         "Drawing ingestion pipeline",
		Long:          "drawmap turns drawing PDFs into a preview image, a coordinate list of numbered callouts and an editable descriptor map.",
		Version:       buildinfo.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, rt); err != nil {
		panic(err)
	}

	configCmd := config.Command(rt)

	rootCmd.AddCommand(
		watch.Command(rt),
		ingest.Command(rt),
		dump.Command(rt),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config init must work without a valid configuration
		if cmd.Parent() == configCmd && cmd.Name() == "init" {
			return nil
		}
		return rt.Init()
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return rt.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, rt *app.Runtime) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rt.ConfigFile, "config", "c", "", "Path to config file (default: search ./, ~/.config/drawmap, /etc/drawmap)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("dir", "", "Directory holding drawing PDFs")
	flags.String("output", "", "Directory for generated artifacts (default: same as --dir)")

	bindings := map[string]string{
		"debug":               "debug",
		"drawings.dir":        "dir",
		"drawings.output_dir": "output",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
