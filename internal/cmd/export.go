package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		limit  int
	)
	names := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write recent requests to a timestamped file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Export.Limit
			}
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			path, err := export.New(a.cfg.Export.Dir, a.logger).Export(store, f, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTXT), "output format ("+strings.Join(names, "|")+")")
	cmd.Flags().IntVarP(&limit, "limit", "n", export.DefaultLimit, "number of recent requests")
	return cmd
}
