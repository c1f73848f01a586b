// Package triage wires sampling, encoding, simulation and aggregation into
// a single scoring call, and adds history and advice around it.
package triage

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region types
// Settings holds the constants of all three scoring stages.
type Settings struct {
	Encoder signals.EncoderConfig
	Circuit circuit.Config
	Urgency urgency.Config
}

// DefaultSettings returns the built-in scoring constants.
func DefaultSettings() Settings {
	return Settings{
		Encoder: signals.DefaultEncoderConfig(),
		Circuit: circuit.DefaultConfig(),
		Urgency: urgency.DefaultConfig(),
	}
}

// Validate checks every stage.
func (s Settings) Validate() error {
	if err := s.Encoder.Validate(); err != nil {
		return err
	}
	if err := s.Circuit.Validate(); err != nil {
		return err
	}
	return s.Urgency.Validate()
}

// Assessment is the full trace of one scoring call.
type Assessment struct {
	Sample   sampler.ResourceSample `json:"sample"`
	Features signals.FeatureVector  `json:"features"`
	Wires    circuit.WireResult     `json:"wires"`
	Verdict  urgency.Verdict        `json:"verdict"`
}

// #endregion types

// #region engine
type pipeline struct {
	settings   Settings
	encoder    *signals.Encoder
	simulator  *circuit.Simulator
	aggregator *urgency.Aggregator
}

// Engine scores requests. Score may be called concurrently with itself and
// with SetSettings; each call sees one consistent set of constants.
type Engine struct {
	current atomic.Pointer[pipeline]
	logger  *zap.Logger
}

// NewEngine validates settings and builds the pipeline.
func NewEngine(settings Settings, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger}
	if err := e.SetSettings(settings); err != nil {
		return nil, err
	}
	return e, nil
}

// SetSettings swaps in new constants. Invalid settings leave the engine
// unchanged.
func (e *Engine) SetSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("triage: %w", err)
	}
	e.current.Store(&pipeline{
		settings:   settings,
		encoder:    signals.NewEncoder(settings.Encoder, e.logger),
		simulator:  circuit.NewSimulator(settings.Circuit),
		aggregator: urgency.NewAggregator(settings.Urgency),
	})
	return nil
}

// Settings returns the constants currently in use.
func (e *Engine) Settings() Settings {
	return e.current.Load().settings
}

// Score runs encode, simulate and aggregate on one sample and text.
func (e *Engine) Score(sample sampler.ResourceSample, text string) Assessment {
	p := e.current.Load()
	features := p.encoder.Encode(sample, text)
	wires := p.simulator.Simulate(features)
	verdict := p.aggregator.Aggregate(wires)
	return Assessment{
		Sample:   sample,
		Features: features,
		Wires:    wires,
		Verdict:  verdict,
	}
}

// #endregion engine
