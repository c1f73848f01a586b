package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

var fixedNow = time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)

func entries() []history.Entry {
	return []history.Entry{
		{
			ID:        "b",
			CreatedAt: fixedNow,
			Location:  "Seattle",
			Symptoms:  "blue lips, \"not breathing\"",
			Sample:    sampler.ResourceSample{CPU: 0.9, Memory: 0.8},
			Wires:     circuit.WireResult{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.9},
			Verdict:   urgency.Verdict{Score: 0.71, Tier: urgency.TierHigh, Overridden: true},
			Advice:    "Call 911 now.",
		},
		{
			ID:        "a",
			CreatedAt: fixedNow.Add(-time.Hour),
			Location:  "Tacoma",
			Symptoms:  "",
			Verdict:   urgency.Verdict{Score: 0.07, Tier: urgency.TierLow},
		},
	}
}

type fakeSource struct {
	rows  []history.Entry
	limit int
	err   error
}

func (f *fakeSource) Recent(limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.rows, f.err
}

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	e := New(filepath.Join(t.TempDir(), "narcan_exports"), nil)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"txt", "CSV", ".json", " prom "} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportFileNameAndMode(t *testing.T) {
	e := newExporter(t)
	src := &fakeSource{rows: entries()}

	path, err := e.Export(src, FormatTXT, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, src.limit)
	assert.Equal(t, "narcan_20250607_080910.txt", filepath.Base(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	dirEntries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	assert.Len(t, dirEntries, 1, "temp file left behind")
}

func TestExportSourceError(t *testing.T) {
	e := newExporter(t)
	boom := errors.New("db locked")
	_, err := e.Export(&fakeSource{err: boom}, FormatCSV, 5)
	assert.ErrorIs(t, err, boom)
}

func TestEncodeText(t *testing.T) {
	data, err := Encode(FormatTXT, entries())
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "--- ID b ---")
	assert.Contains(t, out, "URGENCY: 0.710 (high)")
	assert.Contains(t, out, "Call 911 now.")
	assert.Equal(t, 2, strings.Count(out, strings.Repeat("=", 40)))
}

func TestEncodeCSV(t *testing.T) {
	data, err := Encode(FormatCSV, entries())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "blue lips, \"not breathing\"", records[1][3], "quoting survives")
	assert.Equal(t, "high", records[1][7])
	assert.Equal(t, "true", records[1][8])
	assert.Equal(t, "0.0700", records[2][6])
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(FormatJSON, entries())
	require.NoError(t, err)

	var got []history.Entry
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, urgency.TierHigh, got[0].Verdict.Tier)

	empty, err := Encode(FormatJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(empty))
}

func TestEncodeProm(t *testing.T) {
	data, err := Encode(FormatProm, entries())
	require.NoError(t, err)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(data))
	require.NoError(t, err)

	tiers := families[metricTier]
	require.NotNil(t, tiers)
	byTier := map[string]float64{}
	for _, m := range tiers.GetMetric() {
		byTier[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"low": 1, "medium": 0, "high": 1}, byTier)

	assert.Equal(t, 1.0, families[metricOverride].GetMetric()[0].GetGauge().GetValue())
	assert.Len(t, families[metricScore].GetMetric(), 2)
	assert.Len(t, families[metricWire].GetMetric(), 14)
}

func TestEncodePromEmpty(t *testing.T) {
	data, err := Encode(FormatProm, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), metricTier)
	assert.NotContains(t, string(data), metricScore+"{")
}

func TestEncodeUnknown(t *testing.T) {
	_, err := Encode(Format("xml"), entries())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
