package urgency

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
)

// #region aggregator
// Aggregator reduces a WireResult to a Verdict.
type Aggregator struct {
	config Config
}

// NewAggregator creates an aggregator with the given configuration.
func NewAggregator(config Config) *Aggregator {
	return &Aggregator{config: config}
}

// Aggregate checks the entropy override first, then maps the weighted score
// through the two thresholds. NaN wires count as 0.
func (a *Aggregator) Aggregate(result circuit.WireResult) Verdict {
	sum := weightedSum(result, a.config.Weights)
	score := normalize(sum, a.config.Weights)

	// --- Override pass ---
	entropy := magnitude(result[signals.WireEntropy])
	if entropy > a.config.OverrideThreshold {
		return Verdict{
			Score:       score,
			Tier:        TierHigh,
			Overridden:  true,
			WeightedSum: sum,
			Reason: fmt.Sprintf("entropy override: wire %d magnitude %.4f exceeds %.4f",
				signals.WireEntropy, entropy, a.config.OverrideThreshold),
		}
	}

	// --- Threshold mapping ---
	tier := a.TierFor(score)
	return Verdict{
		Score:       score,
		Tier:        tier,
		Overridden:  false,
		WeightedSum: sum,
		Reason:      fmt.Sprintf("weighted score %.4f maps to %s", score, tier),
	}
}

// TierFor maps a normalized score to a tier without the override.
func (a *Aggregator) TierFor(score float64) Tier {
	switch {
	case score >= a.config.HighThreshold:
		return TierHigh
	case score >= a.config.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// #endregion aggregator

// #region helpers
// weightedSum is Σ wᵢ·|eᵢ|.
func weightedSum(result circuit.WireResult, weights [signals.Wires]float64) float64 {
	var sum float64
	for i, v := range result {
		sum += weights[i] * magnitude(v)
	}
	return sum
}

// normalize maps the known range [0, Σw] onto [0, 1].
func normalize(sum float64, weights [signals.Wires]float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if !(total > 0) {
		return 0
	}
	score := sum / total
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// magnitude is |v| clipped to 1, with NaN as 0.
func magnitude(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Abs(v))
}

// #endregion helpers
