// Package cmd implements the narcan command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/narcan-finder/internal/advisory"
	"github.com/danielpatrickdp/narcan-finder/internal/config"
	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/logging"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/vault"
)

// #region app
// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	prompt *prompter
}

func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = os.Getenv("NARCAN_CONFIG")
	}
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	a.configPath = path

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Verbose: a.verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.prompt = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	return nil
}

// #endregion app

// #region root
// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "narcan",
		Short: "Score overdose-response urgency and find NARCAN options",
		Long: `narcan scores how urgent a NARCAN (naloxone) request is from the described
symptoms and the current machine load, keeps a local history of requests, and asks
a language-model backend for nearby access options. The backend API key is kept in
a password-protected local vault.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: per-user config dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newScoreCmd(a),
		newAskCmd(a),
		newReplCmd(a),
		newVaultCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newReplayCmd(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// #endregion root

// #region wiring
func (a *app) settings() (triage.Settings, error) {
	return settingsFrom(a.cfg)
}

func settingsFrom(cfg *config.Config) (triage.Settings, error) {
	agg, err := cfg.Scoring.Urgency()
	if err != nil {
		return triage.Settings{}, err
	}
	return triage.Settings{
		Encoder: cfg.Scoring.Encoder(),
		Circuit: cfg.Scoring.Circuit(),
		Urgency: agg,
	}, nil
}

func (a *app) engine() (*triage.Engine, error) {
	s, err := a.settings()
	if err != nil {
		return nil, err
	}
	return triage.NewEngine(s, a.logger)
}

func (a *app) openHistory() (*history.Store, error) {
	return history.NewStore(a.cfg.History.Path)
}

func (a *app) vault() *vault.Vault {
	return vault.New(a.cfg.Vault.Path,
		vault.WithIterations(a.cfg.Vault.Iterations),
		vault.WithLogger(a.logger))
}

// advisor builds the configured backend. The vault is only unsealed when
// the backend needs a credential.
func (a *app) advisor(ctx context.Context, backend string) (advisory.Advisor, error) {
	c := a.cfg.Advisory
	if backend != "" {
		c.Backend = backend
	}
	key := func() (string, error) {
		v := a.vault()
		if v.State() == vault.Uninitialized {
			return "", fmt.Errorf("%w: run `narcan vault init` first", vault.ErrUninitialized)
		}
		pw, err := a.prompt.secret("Vault password: ", envVaultPassword)
		if err != nil {
			return "", err
		}
		secret, err := v.Unseal(pw)
		v.Lock()
		return secret, err
	}
	return advisory.New(ctx, advisory.Config{
		Backend:     c.Backend,
		Model:       c.Model,
		Endpoint:    c.Endpoint,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
		Attempts:    c.Attempts,
		Backoff:     c.Backoff,
	}, key, a.logger)
}

// #endregion wiring
