// Package watch implements the long-running ingestion command.
package watch

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawmap/internal/app"
)

// Command creates the watch command.
func Command(rt *app.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and ingest new drawings",
		Long: `Scan the drawing directory, ingest every drawing without a coordinate list,
then keep watching for new or changed files until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rt.Settings.Drawings.Dir = args[0]
			}
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.Watch(cmd.Context())
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the watch command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.IntP("workers", "w", 0, "Concurrent ingestions (0: one per CPU)")
	flags.Bool("notify", true, "Use file-system notifications")
	flags.Duration("poll", 0, "Periodic rescan interval (0: disabled)")
	flags.Bool("api", false, "Serve the HTTP API")
	flags.String("api-listen", "", "Listen address of the HTTP API")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-listen", "", "Listen address of the metrics endpoint")
	flags.Bool("mqtt", false, "Publish ready notifications to MQTT")

	bindings := map[string]string{
		"ingest.workers":      "workers",
		"watch.enabled":       "notify",
		"watch.poll_interval": "poll",
		"api.enabled":         "api",
		"api.listen":          "api-listen",
		"metrics.enabled":     "metrics",
		"metrics.listen":      "metrics-listen",
		"mqtt.enabled":        "mqtt",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
