package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no requests recorded")
				return nil
			}
			counts, err := store.Count()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTIER\tSCORE\tLOCATION\tSYMPTOMS")
			for _, e := range entries {
				tier := string(e.Verdict.Tier)
				if e.Verdict.Overridden {
					tier += "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), tier, e.Verdict.Score,
					truncate(e.Location, 24), truncate(e.Symptoms, 40))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\ntotal: %d low, %d medium, %d high (* escalated)\n",
				counts[urgency.TierLow], counts[urgency.TierMedium], counts[urgency.TierHigh])
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of requests to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
