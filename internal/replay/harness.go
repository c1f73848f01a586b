// Package replay re-scores recorded or fixture requests under a given set
// of scoring constants, to review the effect of a threshold change.
package replay

import (
	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region types
// Case is one input to re-score. Baseline is the tier previously assigned
// (stored or expected); empty means unknown.
type Case struct {
	ID       string
	Sample   sampler.ResourceSample
	Text     string
	Baseline urgency.Tier
}

// Result is the outcome of re-scoring one Case.
type Result struct {
	ID         string
	Baseline   urgency.Tier
	Assessment triage.Assessment
	Changed    bool // Baseline known and different from the new tier
}

// Summary aggregates a replay run.
type Summary struct {
	Total      int
	ByTier     map[urgency.Tier]int
	Overridden int
	Changed    int
	Unknown    int // cases without a baseline
}

// #endregion types

// #region replay
// Replay scores every case with engine, in order.
func Replay(engine *triage.Engine, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		a := engine.Score(c.Sample, c.Text)
		results = append(results, Result{
			ID:         c.ID,
			Baseline:   c.Baseline,
			Assessment: a,
			Changed:    c.Baseline != "" && c.Baseline != a.Verdict.Tier,
		})
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total: len(results),
		ByTier: map[urgency.Tier]int{
			urgency.TierLow:    0,
			urgency.TierMedium: 0,
			urgency.TierHigh:   0,
		},
	}
	for _, r := range results {
		s.ByTier[r.Assessment.Verdict.Tier]++
		if r.Assessment.Verdict.Overridden {
			s.Overridden++
		}
		switch {
		case r.Baseline == "":
			s.Unknown++
		case r.Changed:
			s.Changed++
		}
	}
	return s
}

// FromHistory turns stored entries into cases, with the stored tier as
// baseline.
func FromHistory(entries []history.Entry) []Case {
	cases := make([]Case, len(entries))
	for i, e := range entries {
		cases[i] = Case{
			ID:       e.ID,
			Sample:   e.Sample,
			Text:     e.Symptoms,
			Baseline: e.Verdict.Tier,
		}
	}
	return cases
}

// #endregion replay
