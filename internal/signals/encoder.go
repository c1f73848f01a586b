package signals

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// #region encoder

// Encoder maps a resource sample and free text to a FeatureVector.
type Encoder struct {
	config EncoderConfig
	logger *zap.Logger
}

// NewEncoder creates an Encoder. logger may be nil.
func NewEncoder(config EncoderConfig, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{config: config, logger: logger}
}

// #endregion encoder

// #region encode

// Encode is deterministic: the same sample and text always give the same vector.
// Invalid UTF-8 is scored as empty text.
func (e *Encoder) Encode(sample sampler.ResourceSample, text string) FeatureVector {
	normalized, err := Normalize(text)
	if err != nil {
		e.logger.Warn("text encoding rejected, scoring as empty", zap.Error(err), zap.Int("bytes", len(text)))
		normalized = ""
	}

	cpu := sampler.Clamp(sample.CPU)
	memory := sampler.Clamp(sample.Memory)
	runes := float64(utf8.RuneCountInString(normalized))
	slices := hashSlices(normalized)
	engagement := e.engagement(runes)

	var fv FeatureVector
	fv[WireCPU] = cpu * quarterTurn
	fv[WireMemory] = memory * quarterTurn
	fv[WireStressA] = slices[0] * engagement * quarterTurn
	fv[WireStressB] = slices[1] * engagement * quarterTurn
	fv[WireStressC] = slices[2] * engagement * quarterTurn
	fv[WireUncertainty] = e.uncertainty(runes)

	load := (cpu + memory) / 2
	entropy := e.config.LoadWeight*load + (1-e.config.LoadWeight)*slices[3]*engagement
	fv[WireEntropy] = clamp01(entropy) * quarterTurn
	return fv
}

// #endregion encode

// #region components

// engagement grows linearly with length until EngagementRunes, then saturates at 1.
func (e *Encoder) engagement(runes float64) float64 {
	if runes == 0 {
		return 0
	}
	if !(e.config.EngagementRunes > 0) {
		return 1
	}
	return math.Min(1, runes/e.config.EngagementRunes)
}

// uncertainty is largest for the shortest non-empty text and decays with length.
// Empty text carries no uncertainty signal.
func (e *Encoder) uncertainty(runes float64) float64 {
	if runes == 0 || !(e.config.UncertaintyRunes > 0) {
		return 0
	}
	return quarterTurn * math.Exp(-runes/e.config.UncertaintyRunes)
}

// hashSlices derives four independent values in [0, 1) from the text hash:
// three 21-bit slices of the low word and the top 53 bits of the high word.
func hashSlices(text string) [4]float64 {
	var out [4]float64
	if text == "" {
		return out
	}
	h := xxh3.HashString128(text)
	const sliceBits = 21
	const sliceMask = 1<<sliceBits - 1
	for i := 0; i < 3; i++ {
		out[i] = float64((h.Lo>>(uint(i)*sliceBits))&sliceMask) / float64(1<<sliceBits)
	}
	out[3] = float64(h.Hi>>11) / float64(uint64(1)<<53)
	return out
}

// #endregion components

// #region helpers

// Normalize validates UTF-8, applies NFC and trims surrounding whitespace so
// visually identical input hashes identically.
func Normalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", ErrInvalidEncoding
	}
	return strings.TrimSpace(norm.NFC.String(text)), nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// #endregion helpers
