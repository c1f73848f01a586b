package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string          `json:"description"`
	Scoring     *FixtureScoring `json:"scoring,omitempty"`
	Cases       []FixtureCase   `json:"cases"`
}

// FixtureScoring overrides selected scoring constants. Zero fields keep
// the base value.
type FixtureScoring struct {
	Weights           []float64 `json:"weights,omitempty"`
	MediumThreshold   float64   `json:"medium_threshold,omitempty"`
	HighThreshold     float64   `json:"high_threshold,omitempty"`
	OverrideThreshold float64   `json:"override_threshold,omitempty"`
	Coupling          *float64  `json:"coupling,omitempty"`
}

// FixtureCase is one request. Repeat, if set, builds Text by repeating it
// that many times so long inputs stay readable in the file.
type FixtureCase struct {
	ID           string  `json:"id"`
	CPU          float64 `json:"cpu"`
	Memory       float64 `json:"memory"`
	Text         string  `json:"text"`
	Repeat       int     `json:"repeat,omitempty"`
	ExpectedTier string  `json:"expected_tier"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToCases converts fixture cases to replay cases.
func (f *Fixture) ToCases() ([]Case, error) {
	cases := make([]Case, len(f.Cases))
	for i, fc := range f.Cases {
		c, err := fc.ToCase()
		if err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, fc.ID, err)
		}
		cases[i] = c
	}
	return cases, nil
}

// ToCase converts one fixture case.
func (fc FixtureCase) ToCase() (Case, error) {
	var tier urgency.Tier
	if fc.ExpectedTier != "" {
		t, err := urgency.ParseTier(fc.ExpectedTier)
		if err != nil {
			return Case{}, err
		}
		tier = t
	}
	text := fc.Text
	if fc.Repeat > 1 {
		text = strings.Repeat(fc.Text, fc.Repeat)
	}
	return Case{
		ID:       fc.ID,
		Sample:   sampler.ResourceSample{CPU: sampler.Clamp(fc.CPU), Memory: sampler.Clamp(fc.Memory)},
		Text:     text,
		Baseline: tier,
	}, nil
}

// Apply overlays the fixture's overrides onto base.
func (fs *FixtureScoring) Apply(base triage.Settings) (triage.Settings, error) {
	if fs == nil {
		return base, nil
	}
	out := base
	if len(fs.Weights) > 0 {
		if len(fs.Weights) != signals.Wires {
			return base, fmt.Errorf("fixture weights: need %d entries, got %d", signals.Wires, len(fs.Weights))
		}
		copy(out.Urgency.Weights[:], fs.Weights)
	}
	if fs.MediumThreshold != 0 {
		out.Urgency.MediumThreshold = fs.MediumThreshold
	}
	if fs.HighThreshold != 0 {
		out.Urgency.HighThreshold = fs.HighThreshold
	}
	if fs.OverrideThreshold != 0 {
		out.Urgency.OverrideThreshold = fs.OverrideThreshold
	}
	if fs.Coupling != nil {
		out.Circuit.Coupling = *fs.Coupling
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

// #endregion fixture-loader
