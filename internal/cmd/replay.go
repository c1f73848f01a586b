package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/replay"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		fixturePath string
		limit       int
		verbose     bool
		strict      bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-score a fixture or recorded history with the current settings",
		Long: `Re-score cases with the current scoring settings and report tier changes
against their baseline. Cases come from --fixture (JSON) or, by default, from the
most recent history entries, whose stored tier is the baseline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.settings()
			if err != nil {
				return err
			}

			var cases []replay.Case
			source := fixturePath
			if fixturePath != "" {
				fx, err := replay.LoadFixture(fixturePath)
				if err != nil {
					return err
				}
				if settings, err = fx.Scoring.Apply(settings); err != nil {
					return err
				}
				if cases, err = fx.ToCases(); err != nil {
					return err
				}
			} else {
				store, err := a.openHistory()
				if err != nil {
					return err
				}
				entries, err := store.Recent(limit)
				store.Close()
				if err != nil {
					return err
				}
				cases = replay.FromHistory(entries)
				source = a.cfg.History.Path
			}

			engine, err := triage.NewEngine(settings, a.logger)
			if err != nil {
				return err
			}
			results := replay.Replay(engine, cases)
			sum := replay.Summarize(results)

			out := cmd.OutOrStdout()
			if verbose {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tBASELINE\tTIER\tSCORE\tE6")
				for _, r := range results {
					v := r.Assessment.Verdict
					mark := ""
					if r.Changed {
						mark = "  changed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%+.3f%s\n",
						r.ID, orDash(string(r.Baseline)), v.Tier, v.Score, r.Assessment.Wires[len(r.Assessment.Wires)-1], mark)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "replayed %d cases from %s\n", sum.Total, source)
			fmt.Fprintf(out, "  tiers:      low=%d medium=%d high=%d\n",
				sum.ByTier[urgency.TierLow], sum.ByTier[urgency.TierMedium], sum.ByTier[urgency.TierHigh])
			fmt.Fprintf(out, "  overridden: %d\n", sum.Overridden)
			fmt.Fprintf(out, "  changed:    %d (no baseline: %d)\n", sum.Changed, sum.Unknown)
			if strict && sum.Changed > 0 {
				return fmt.Errorf("%d cases changed tier", sum.Changed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "JSON fixture of cases (default: recorded history)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "history entries to replay when no fixture is given")
	cmd.Flags().BoolVar(&verbose, "cases", false, "print one line per case")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if any case changed tier")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
