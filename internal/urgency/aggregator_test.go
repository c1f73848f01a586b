package urgency

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
)

func wires(vals ...float64) circuit.WireResult {
	var r circuit.WireResult
	copy(r[:], vals)
	return r
}

func TestAggregateZeroIsLow(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(circuit.WireResult{})

	if v.Tier != TierLow {
		t.Fatalf("expected low, got %s: %s", v.Tier, v.Reason)
	}
	if v.Score != 0 {
		t.Fatalf("expected score 0, got %f", v.Score)
	}
	if v.Overridden {
		t.Fatal("should not be overridden")
	}
}

func TestAggregateEntropyOverrideForcesHigh(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(0, 0, 0, 0, 0, 0, 0.95))

	if v.Tier != TierHigh {
		t.Fatalf("expected high, got %s: %s", v.Tier, v.Reason)
	}
	if !v.Overridden {
		t.Fatal("expected override flag")
	}
	if math.Abs(v.Score-0.24*0.95) > 1e-12 {
		t.Fatalf("override should not alter score, got %f", v.Score)
	}
}

func TestAggregateNegativeEntropyOverride(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(0, 0, 0, 0, 0, 0, -0.9))
	if v.Tier != TierHigh || !v.Overridden {
		t.Fatalf("expected magnitude override for negative wire, got %+v", v)
	}
}

func TestAggregateAtThresholdDoesNotOverride(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(0, 0, 0, 0, 0, 0, 0.8))
	if v.Overridden {
		t.Fatal("override requires strictly exceeding the threshold")
	}
	if v.Tier != TierLow {
		t.Fatalf("expected low, got %s", v.Tier)
	}
}

func TestAggregateMediumBand(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5))
	if math.Abs(v.Score-0.5) > 1e-12 {
		t.Fatalf("expected score 0.5, got %f", v.Score)
	}
	if v.Tier != TierMedium {
		t.Fatalf("expected medium, got %s", v.Tier)
	}
}

func TestAggregateHighBandWithoutOverride(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(1, 1, 1, 1, 1, 1, 0.7))
	if v.Tier != TierHigh {
		t.Fatalf("expected high, got %s (score %.4f)", v.Tier, v.Score)
	}
	if v.Overridden {
		t.Fatal("should reach high through the score, not the override")
	}
}

func TestAggregateScoreRange(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	for _, r := range []circuit.WireResult{
		wires(1, 1, 1, 1, 1, 1, 1),
		wires(-1, -1, -1, -1, -1, -1, -1),
		wires(0.3, -0.2, 0.9, -0.4, 0.1, 0, 0.5),
	} {
		v := a.Aggregate(r)
		if v.Score < 0 || v.Score > 1 {
			t.Fatalf("score %.4f out of [0, 1] for %v", v.Score, r)
		}
	}
}

func TestAggregateNaNTreatedAsZero(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.Aggregate(wires(math.NaN(), 0, 0, 0, 0, 0, math.NaN()))
	if math.IsNaN(v.Score) || v.Score != 0 {
		t.Fatalf("expected score 0, got %f", v.Score)
	}
	if v.Tier != TierLow {
		t.Fatalf("expected low, got %s", v.Tier)
	}
}

func TestAggregateCustomWeights(t *testing.T) {
	config := DefaultConfig()
	config.Weights = [7]float64{1, 0, 0, 0, 0, 0, 0}
	a := NewAggregator(config)
	v := a.Aggregate(wires(0.7, 1, 1, 1, 1, 1, 0))
	if math.Abs(v.Score-0.7) > 1e-12 {
		t.Fatalf("expected score 0.7 from wire 0 alone, got %f", v.Score)
	}
}

func TestTierFor(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	if a.TierFor(0.349) != TierLow {
		t.Error("0.349 should be low")
	}
	if a.TierFor(0.35) != TierMedium {
		t.Error("0.35 should be medium")
	}
	if a.TierFor(0.6) != TierHigh {
		t.Error("0.6 should be high")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	c := DefaultConfig()
	c.MediumThreshold = 0.7
	if c.Validate() == nil {
		t.Error("expected error when medium >= high")
	}

	c = DefaultConfig()
	c.Weights[3] = -1
	if c.Validate() == nil {
		t.Error("expected error for negative weight")
	}

	c = DefaultConfig()
	c.Weights = [7]float64{}
	if c.Validate() == nil {
		t.Error("expected error for zero weight sum")
	}

	c = DefaultConfig()
	c.OverrideThreshold = 0
	if c.Validate() == nil {
		t.Error("expected error for zero override threshold")
	}
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier(" HIGH ")
	if err != nil || got != TierHigh {
		t.Fatalf("expected high, got %q (%v)", got, err)
	}
	if _, err := ParseTier("critical"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}
