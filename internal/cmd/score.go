package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		cpu, memory float64
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "score [symptoms...]",
		Short: "Score urgency without recording or calling a backend",
		Long: `Score the urgency of a request from its symptom text and the current machine
load. Pass --cpu and --memory (0..1) to score against a fixed load instead of sampling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			var s sampler.Sampler = sampler.NewSystem(a.cfg.Sampler.Interval, a.logger)
			if cmd.Flags().Changed("cpu") || cmd.Flags().Changed("memory") {
				s = sampler.NewStatic(cpu, memory)
			}
			res := engine.Score(s.Sample(cmd.Context()), strings.Join(args, " "))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			renderAssessment(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Float64Var(&cpu, "cpu", sampler.Neutral, "fixed CPU utilization in [0,1]")
	cmd.Flags().Float64Var(&memory, "memory", sampler.Neutral, "fixed memory utilization in [0,1]")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full assessment as JSON")
	return cmd
}
