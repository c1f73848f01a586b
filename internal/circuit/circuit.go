// Package circuit simulates a fixed seven-wire rotation circuit classically.
//
// Each wire is a single Bloch vector prepared in |+⟩. Three rotations are
// applied per wire (RZ, RX, RY); the RZ and RX angles carry a small coupling
// from the neighbouring wires' features. The readout is the excitation bias
// −⟨Z⟩ = P(|1⟩) − P(|0⟩), which is exactly 0 for a zero feature vector.
package circuit

import (
	"errors"
	"math"

	"github.com/danielpatrickdp/narcan-finder/internal/signals"
)

// #region types

// WireResult holds one expectation value per wire, each in [-1, 1].
type WireResult [signals.Wires]float64

// Config holds simulator parameters.
type Config struct {
	Coupling float64 // fraction of a neighbour's angle fed into RZ/RX
}

// DefaultConfig returns the standard coupling.
func DefaultConfig() Config {
	return Config{Coupling: 0.15}
}

// Validate bounds the coupling to [0, 1].
func (c Config) Validate() error {
	if !(c.Coupling >= 0 && c.Coupling <= 1) {
		return errors.New("circuit: coupling must be in [0, 1]")
	}
	return nil
}

// bloch is a single-wire state on the unit sphere.
type bloch struct{ x, y, z float64 }

// #endregion types

// #region simulator

// Simulator is stateless apart from its config and safe for concurrent use.
type Simulator struct {
	config Config
}

// NewSimulator creates a Simulator.
func NewSimulator(config Config) *Simulator {
	return &Simulator{config: config}
}

// Simulate runs every wire through RZ(φ) → RX(λ) → RY(θ) and reads −⟨Z⟩.
func (s *Simulator) Simulate(features signals.FeatureVector) WireResult {
	var out WireResult
	k := s.config.Coupling
	for i := range features {
		theta := features[i]
		var phi, lambda float64
		if i > 0 {
			phi = k * features[i-1]
		}
		if i < signals.Wires-1 {
			lambda = k * features[i+1]
		}
		state := bloch{x: 1}.rz(phi).rx(lambda).ry(theta)
		out[i] = clampUnit(-state.z)
	}
	return out
}

// #endregion simulator

// #region gates

func (b bloch) rx(a float64) bloch {
	s, c := math.Sincos(a)
	return bloch{x: b.x, y: b.y*c - b.z*s, z: b.y*s + b.z*c}
}

func (b bloch) ry(a float64) bloch {
	s, c := math.Sincos(a)
	return bloch{x: b.x*c + b.z*s, y: b.y, z: b.z*c - b.x*s}
}

func (b bloch) rz(a float64) bloch {
	s, c := math.Sincos(a)
	return bloch{x: b.x*c - b.y*s, y: b.x*s + b.y*c, z: b.z}
}

// #endregion gates

// #region helpers

// clampUnit restricts v to [-1, 1]. NaN maps to 0.
func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}

// #endregion helpers
