package urgency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/narcan-finder/internal/signals"
)

// #region tier
// Tier is a discrete urgency classification.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// ParseTier accepts the lower-case tier names.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierLow:
		return TierLow, nil
	case TierMedium:
		return TierMedium, nil
	case TierHigh:
		return TierHigh, nil
	}
	return "", fmt.Errorf("urgency: unknown tier %q", s)
}

// #endregion tier

// #region config
// Config holds the weighting and thresholds for urgency decisions.
// These are policy, not physics; they are tuned through the config file.
type Config struct {
	Weights           [signals.Wires]float64 // per-wire weight on |expectation|
	MediumThreshold   float64                // score >= this is at least medium
	HighThreshold     float64                // score >= this is high
	OverrideThreshold float64                // |wire 6| above this forces high
}

// DefaultConfig returns the shipped weighting. Weights sum to 1.
func DefaultConfig() Config {
	return Config{
		Weights:           [signals.Wires]float64{0.15, 0.15, 0.12, 0.12, 0.12, 0.10, 0.24},
		MediumThreshold:   0.35,
		HighThreshold:     0.60,
		OverrideThreshold: 0.80,
	}
}

// Validate checks structural constraints on the thresholds and weights.
func (c Config) Validate() error {
	var sum float64
	for i, w := range c.Weights {
		if !(w >= 0) {
			return fmt.Errorf("urgency: weight %d must be non-negative, got %v", i, w)
		}
		sum += w
	}
	if !(sum > 0) {
		return errors.New("urgency: weights must have a positive sum")
	}
	if !(c.MediumThreshold > 0 && c.MediumThreshold < c.HighThreshold && c.HighThreshold <= 1) {
		return fmt.Errorf("urgency: thresholds must satisfy 0 < medium < high <= 1, got medium=%v high=%v",
			c.MediumThreshold, c.HighThreshold)
	}
	if !(c.OverrideThreshold > 0 && c.OverrideThreshold <= 1) {
		return fmt.Errorf("urgency: override threshold must be in (0, 1], got %v", c.OverrideThreshold)
	}
	return nil
}

// #endregion config

// #region verdict
// Verdict is the output of aggregation.
type Verdict struct {
	Score       float64 `json:"score"` // normalized to [0, 1]
	Tier        Tier    `json:"tier"`
	Overridden  bool    `json:"overridden"` // tier forced by the entropy wire
	WeightedSum float64 `json:"weighted_sum"`
	Reason      string  `json:"reason"`
}

// #endregion verdict
