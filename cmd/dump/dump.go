// Package dump implements the fragment inspection command.
package dump

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tphakala/drawmap/internal/app"
)

// Command creates the dump command.
func Command(rt *app.Runtime) *cobra.Command {
	var mapped bool

	cmd := &cobra.Command{
		Use:   "dump <file.pdf>",
		Short: "Print the text fragments of a drawing",
		Long: `Print the positioned text fragments found on the first page of a drawing as
JSON. With --mapped, print the coordinate list and descriptor map instead.
Nothing is written to disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			res, err := a.Dump(cmd.Context(), args[0], mapped)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().BoolVarP(&mapped, "mapped", "m", false, "Show mapped coordinates and descriptors")
	return cmd
}
