package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/narcan-finder/internal/config"
)

// #region repl
func newReplCmd(a *app) *cobra.Command {
	var (
		backend string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive loop: enter symptoms, get urgency and options",
		Long: `Ask for a location once, then score and advise on each line of symptoms.
Type 'quit' or 'exit' to leave. Scoring changes in the config file apply live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRepl(cmd, backend, !noWatch)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "override advisory.backend (none|openai|gemini|grpc)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload scoring settings when the config file changes")
	return cmd
}

func (a *app) runRepl(cmd *cobra.Command, backend string, watch bool) error {
	svc, closeFn, err := a.service(cmd, backend)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithCancel(cmd.Context())
	g, gctx := errgroup.WithContext(ctx)
	if watch {
		engine := svc.Engine()
		g.Go(func() error {
			err := config.Watch(gctx, a.configPath, a.logger, func(cfg *config.Config) {
				s, err := settingsFrom(cfg)
				if err == nil {
					err = engine.SetSettings(s)
				}
				if err != nil {
					a.logger.Warn("scoring settings not applied", zap.Error(err))
				}
			})
			if err != nil {
				a.logger.Warn("config watch unavailable", zap.Error(err))
			}
			return nil
		})
	}
	defer func() {
		cancel()
		_ = g.Wait()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "NARCAN finder ready. If someone is unresponsive, call 911 first.")
	fmt.Fprintf(out, "  History: %s | Backend: %s\n", a.cfg.History.Path, backendName(a.cfg.Advisory.Backend, backend))

	location, err := a.prompt.line("Location (address, ZIP, or blank): ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	location = strings.TrimSpace(location)
	fmt.Fprintln(out, "Describe the situation (or 'quit' to exit):")

	for {
		line, err := a.prompt.line("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			return nil
		}

		res, err := svc.Assess(ctx, location, text)
		if err != nil {
			a.logger.Error("assessment failed", zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		renderAssessment(out, res.Assessment)
		if res.AdviceErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "advisory backend failed (%v); showing offline guidance\n", res.AdviceErr)
		}
		renderMarkdown(out, res.Advice)
	}
}

func backendName(configured, override string) string {
	if override != "" {
		return override
	}
	if configured == "" {
		return "none"
	}
	return configured
}

// #endregion repl
