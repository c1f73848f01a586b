package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		location     string
		locationFile string
		backend      string
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "ask [symptoms...]",
		Short: "Score a request, record it, and ask the advisory backend for options",
		RunE: func(cmd *cobra.Command, args []string) error {
			if locationFile != "" {
				loc, err := triage.LoadLocation(locationFile)
				if err != nil {
					return err
				}
				location = loc
			}
			svc, closeFn, err := a.service(cmd, backend)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Assess(cmd.Context(), location, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, askJSON{
					ID:         res.ID,
					Assessment: res.Assessment,
					Advice:     res.Advice,
					Fallback:   res.Fallback,
					AdviceErr:  errString(res.AdviceErr),
				})
			}
			renderAssessment(out, res.Assessment)
			if res.AdviceErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "advisory backend failed (%v); showing offline guidance\n", res.AdviceErr)
			}
			renderMarkdown(out, res.Advice)
			return nil
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "address, ZIP, or coordinates")
	cmd.Flags().StringVar(&locationFile, "location-file", "", "read the location from a file")
	cmd.Flags().StringVar(&backend, "backend", "", "override advisory.backend (none|openai|gemini|grpc)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("location", "location-file")
	return cmd
}

type askJSON struct {
	ID         string            `json:"id"`
	Assessment triage.Assessment `json:"assessment"`
	Advice     string            `json:"advice"`
	Fallback   bool              `json:"fallback"`
	AdviceErr  string            `json:"advice_error,omitempty"`
}

// service opens history and the advisor and returns a cleanup func.
func (a *app) service(cmd *cobra.Command, backend string) (*triage.Service, func(), error) {
	engine, err := a.engine()
	if err != nil {
		return nil, nil, err
	}
	store, err := a.openHistory()
	if err != nil {
		return nil, nil, err
	}
	adv, err := a.advisor(cmd.Context(), backend)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	s := sampler.NewSystem(a.cfg.Sampler.Interval, a.logger)
	closeFn := func() {
		if err := errors.Join(adv.Close(), store.Close()); err != nil {
			a.logger.Sugar().Warnf("cleanup: %v", err)
		}
	}
	return triage.NewService(engine, s, store, adv, a.logger), closeFn, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
