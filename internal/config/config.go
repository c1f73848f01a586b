// Package config loads narcan-finder settings from YAML with NARCAN_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
	"github.com/danielpatrickdp/narcan-finder/internal/vault"
)

// #region defaults
const (
	appDir = "narcan-finder"

	DefaultExportLimit       = 10
	DefaultAdvisoryBackend   = "none"
	DefaultAdvisoryModel     = "gpt-4o"
	DefaultAdvisoryTemp      = 0.7
	DefaultAdvisoryTimeout   = 30 * time.Second
	DefaultAdvisoryAttempts  = 3
	DefaultAdvisoryBackoff   = time.Second
	DefaultAdvisoryMaxTokens = 512
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	exportDirName            = "narcan_exports"
	historyFileName          = "history.db"
	configFileName           = "config.yaml"
)

// #endregion defaults

// #region types
// Config is the root of config.yaml.
type Config struct {
	Scoring  ScoringConfig  `yaml:"scoring"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Vault    VaultConfig    `yaml:"vault"`
	History  HistoryConfig  `yaml:"history"`
	Export   ExportConfig   `yaml:"export"`
	Advisory AdvisoryConfig `yaml:"advisory"`
	Log      LogConfig      `yaml:"log"`
}

// ScoringConfig holds every tunable constant of the scoring pipeline.
type ScoringConfig struct {
	Weights           []float64 `yaml:"weights"`
	MediumThreshold   float64   `yaml:"medium_threshold"`
	HighThreshold     float64   `yaml:"high_threshold"`
	OverrideThreshold float64   `yaml:"override_threshold"`
	Coupling          float64   `yaml:"coupling"`
	EngagementRunes   float64   `yaml:"engagement_runes"`
	UncertaintyRunes  float64   `yaml:"uncertainty_runes"`
	LoadWeight        float64   `yaml:"load_weight"`
}

type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type VaultConfig struct {
	Path       string `yaml:"path"`
	Iterations int    `yaml:"iterations"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type ExportConfig struct {
	Dir   string `yaml:"dir"`
	Limit int    `yaml:"limit"`
}

// AdvisoryConfig selects the language-model backend. Endpoint is the base
// URL for openai (empty means the public API) and the dial target for grpc.
type AdvisoryConfig struct {
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// #endregion types

// #region load
// Load reads path, applies defaults, environment overrides and validation.
// A missing file is not an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse yaml: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := resolvePaths(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(dir, appDir, configFileName), nil
}

// Defaults returns a Config populated with built-in values. Paths are left
// empty and filled in by Load.
func Defaults() *Config {
	enc := signals.DefaultEncoderConfig()
	sim := circuit.DefaultConfig()
	agg := urgency.DefaultConfig()
	return &Config{
		Scoring: ScoringConfig{
			Weights:           append([]float64(nil), agg.Weights[:]...),
			MediumThreshold:   agg.MediumThreshold,
			HighThreshold:     agg.HighThreshold,
			OverrideThreshold: agg.OverrideThreshold,
			Coupling:          sim.Coupling,
			EngagementRunes:   enc.EngagementRunes,
			UncertaintyRunes:  enc.UncertaintyRunes,
			LoadWeight:        enc.LoadWeight,
		},
		Sampler: SamplerConfig{Interval: sampler.DefaultInterval},
		Vault:   VaultConfig{Iterations: vault.DefaultIterations},
		Export:  ExportConfig{Limit: DefaultExportLimit},
		Advisory: AdvisoryConfig{
			Backend:     DefaultAdvisoryBackend,
			Model:       DefaultAdvisoryModel,
			Temperature: DefaultAdvisoryTemp,
			MaxTokens:   DefaultAdvisoryMaxTokens,
			Timeout:     DefaultAdvisoryTimeout,
			Attempts:    DefaultAdvisoryAttempts,
			Backoff:     DefaultAdvisoryBackoff,
		},
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// #endregion load

// #region env
// applyEnv overlays NARCAN_* variables onto cfg.
func applyEnv(cfg *Config) error {
	cfg.Log.Level = envOr("NARCAN_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("NARCAN_LOG_FORMAT", cfg.Log.Format)
	cfg.Vault.Path = envOr("NARCAN_VAULT_PATH", cfg.Vault.Path)
	cfg.History.Path = envOr("NARCAN_HISTORY_DB", cfg.History.Path)
	cfg.Export.Dir = envOr("NARCAN_EXPORT_DIR", cfg.Export.Dir)
	cfg.Advisory.Backend = envOr("NARCAN_ADVISORY_BACKEND", cfg.Advisory.Backend)
	cfg.Advisory.Model = envOr("NARCAN_ADVISORY_MODEL", cfg.Advisory.Model)
	cfg.Advisory.Endpoint = envOr("NARCAN_ADVISORY_ENDPOINT", cfg.Advisory.Endpoint)

	if v := os.Getenv("NARCAN_SAMPLER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NARCAN_SAMPLER_INTERVAL: %w", err)
		}
		cfg.Sampler.Interval = d
	}
	if v := os.Getenv("NARCAN_VAULT_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NARCAN_VAULT_ITERATIONS: %w", err)
		}
		cfg.Vault.Iterations = n
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolvePaths fills empty storage paths with per-user locations.
func resolvePaths(cfg *Config) error {
	if cfg.Vault.Path == "" {
		p, err := vault.DefaultPath()
		if err != nil {
			return err
		}
		cfg.Vault.Path = p
	}
	if cfg.History.Path == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("locate cache dir: %w", err)
		}
		cfg.History.Path = filepath.Join(base, appDir, historyFileName)
	}
	if cfg.Export.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home dir: %w", err)
		}
		cfg.Export.Dir = filepath.Join(home, exportDirName)
	}
	return nil
}

// #endregion env

// #region validate
// Validate checks structural constraints across all sections.
func (c *Config) Validate() error {
	if _, err := c.Scoring.Urgency(); err != nil {
		return err
	}
	if err := c.Scoring.Circuit().Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Encoder().Validate(); err != nil {
		return err
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be positive")
	}
	if c.Vault.Iterations < vault.MinIterations || c.Vault.Iterations > vault.MaxIterations {
		return fmt.Errorf("vault.iterations must be in [%d, %d], got %d",
			vault.MinIterations, vault.MaxIterations, c.Vault.Iterations)
	}
	if c.Export.Limit <= 0 {
		return fmt.Errorf("export.limit must be positive")
	}
	switch c.Advisory.Backend {
	case "none", "openai", "gemini", "grpc":
	default:
		return fmt.Errorf("advisory.backend: unknown backend %q", c.Advisory.Backend)
	}
	if c.Advisory.Backend == "grpc" && c.Advisory.Endpoint == "" {
		return fmt.Errorf("advisory.endpoint is required for the grpc backend")
	}
	if c.Advisory.Attempts <= 0 {
		return fmt.Errorf("advisory.attempts must be positive")
	}
	if c.Advisory.Timeout <= 0 {
		return fmt.Errorf("advisory.timeout must be positive")
	}
	if c.Advisory.Temperature < 0 || c.Advisory.Temperature > 2 {
		return fmt.Errorf("advisory.temperature must be in [0, 2]")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// #endregion validate

// #region conversions
// Encoder returns the feature encoder settings.
func (s ScoringConfig) Encoder() signals.EncoderConfig {
	return signals.EncoderConfig{
		EngagementRunes:  s.EngagementRunes,
		UncertaintyRunes: s.UncertaintyRunes,
		LoadWeight:       s.LoadWeight,
	}
}

// Circuit returns the simulator settings.
func (s ScoringConfig) Circuit() circuit.Config {
	return circuit.Config{Coupling: s.Coupling}
}

// Urgency returns validated aggregator settings. Weights must have one
// entry per wire.
func (s ScoringConfig) Urgency() (urgency.Config, error) {
	if len(s.Weights) != signals.Wires {
		return urgency.Config{}, fmt.Errorf("scoring.weights: need %d entries, got %d", signals.Wires, len(s.Weights))
	}
	var cfg urgency.Config
	copy(cfg.Weights[:], s.Weights)
	cfg.MediumThreshold = s.MediumThreshold
	cfg.HighThreshold = s.HighThreshold
	cfg.OverrideThreshold = s.OverrideThreshold
	if err := cfg.Validate(); err != nil {
		return urgency.Config{}, err
	}
	return cfg, nil
}

// #endregion conversions
