package signals

import (
	"errors"
	"math"
)

// #region constants

// Wires is the fixed width of the feature vector and the simulated circuit.
const Wires = 7

// Wire roles within the feature vector.
const (
	WireCPU         = 0
	WireMemory      = 1
	WireStressA     = 2
	WireStressB     = 3
	WireStressC     = 4
	WireUncertainty = 5
	WireEntropy     = 6
)

// quarterTurn is the largest angle the encoder emits.
const quarterTurn = math.Pi / 2

// ErrInvalidEncoding reports text that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("signals: text is not valid UTF-8")

// #endregion constants

// #region feature-vector

// FeatureVector holds one rotation angle per wire, each in [0, π/2].
type FeatureVector [Wires]float64

// #endregion feature-vector

// #region config

// EncoderConfig holds tuning knobs for feature encoding.
type EncoderConfig struct {
	EngagementRunes  float64 // text length at which hash-derived stress reaches full weight
	UncertaintyRunes float64 // decay length of the short-text uncertainty angle
	LoadWeight       float64 // share of resource load in the entropy wire, rest is hash
}

// DefaultEncoderConfig returns sensible defaults.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		EngagementRunes:  32,
		UncertaintyRunes: 64,
		LoadWeight:       0.7,
	}
}

// Validate rejects settings that would make encoding meaningless.
func (c EncoderConfig) Validate() error {
	if !(c.EngagementRunes > 0) {
		return errors.New("signals: engagement_runes must be positive")
	}
	if !(c.UncertaintyRunes > 0) {
		return errors.New("signals: uncertainty_runes must be positive")
	}
	if !(c.LoadWeight >= 0 && c.LoadWeight <= 1) {
		return errors.New("signals: load_weight must be in [0, 1]")
	}
	return nil
}

// #endregion config
