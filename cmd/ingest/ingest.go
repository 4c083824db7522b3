// Package ingest implements the one-shot ingestion command.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawmap/internal/app"
	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/errors"
)

// ErrSomeFailed is returned when at least one drawing could not be ingested.
var ErrSomeFailed = errors.NewStd("some drawings failed to ingest")

// Command creates the ingest command.
func Command(rt *app.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf|dir>...",
		Short: "Ingest drawings once and exit",
		Long: `Run the ingestion pipeline on the given PDF files, or on every drawing in a
directory that lacks a coordinate list, and print the outcome as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if len(args) == 1 {
				if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
					records, err := a.IngestDir(cmd.Context(), args[0])
					if encErr := enc.Encode(records); encErr != nil {
						return encErr
					}
					if err != nil {
						return err
					}
					for _, r := range records {
						if r.State == coordinator.StateFailed {
							return ErrSomeFailed
						}
					}
					return nil
				}
			}

			results := a.IngestFiles(cmd.Context(), args)
			if err := enc.Encode(results); err != nil {
				return err
			}
			for _, r := range results {
				if r.Error != "" {
					return ErrSomeFailed
				}
			}
			if len(results) < len(args) {
				return fmt.Errorf("interrupted after %d of %d drawings", len(results), len(args))
			}
			return nil
		},
	}

	cmd.Flags().Bool("ocr", false, "Enable the OCR fallback (requires a tesseract build)")
	if err := viper.BindPFlag("ocr.enabled", cmd.Flags().Lookup("ocr")); err != nil {
		panic(err)
	}
	return cmd
}
