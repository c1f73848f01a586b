package history

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// ErrNotFound is returned by Get and SetAdvice for an unknown ID.
var ErrNotFound = errors.New("history: entry not found")

// #region entry
// Entry is one scored request with everything needed to re-derive its verdict.
type Entry struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Location  string                 `json:"location"`
	Symptoms  string                 `json:"symptoms"`
	Sample    sampler.ResourceSample `json:"sample"`
	Features  signals.FeatureVector  `json:"features"`
	Wires     circuit.WireResult     `json:"wires"`
	Verdict   urgency.Verdict        `json:"verdict"`
	Advice    string                 `json:"advice,omitempty"`
	AdviceErr string                 `json:"advice_error,omitempty"`
}

// #endregion entry
