package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region prom
// Metric names in the textfile export.
const (
	metricScore    = "narcan_triage_score"
	metricWire     = "narcan_triage_wire_expectation"
	metricTier     = "narcan_triage_requests"
	metricOverride = "narcan_triage_overridden"
)

// encodeProm renders entries as a Prometheus text exposition suitable for
// the node_exporter textfile collector.
func encodeProm(entries []history.Entry) ([]byte, error) {
	families := buildFamilies(entries)
	var b bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			return nil, fmt.Errorf("export: prom %s: %w", mf.GetName(), err)
		}
	}
	return b.Bytes(), nil
}

func buildFamilies(entries []history.Entry) []*dto.MetricFamily {
	score := gaugeFamily(metricScore, "Normalized urgency score per request.")
	wire := gaugeFamily(metricWire, "Per-wire signed expectation per request.")
	tier := gaugeFamily(metricTier, "Exported requests per urgency tier.")
	override := gaugeFamily(metricOverride, "Exported requests whose tier was forced by the entropy wire.")

	counts := map[urgency.Tier]int{urgency.TierLow: 0, urgency.TierMedium: 0, urgency.TierHigh: 0}
	overridden := 0
	for _, e := range entries {
		score.Metric = append(score.Metric, gauge(e.Verdict.Score,
			label("id", e.ID), label("tier", string(e.Verdict.Tier))))
		for i, v := range e.Wires {
			wire.Metric = append(wire.Metric, gauge(v,
				label("id", e.ID), label("wire", strconv.Itoa(i))))
		}
		counts[e.Verdict.Tier]++
		if e.Verdict.Overridden {
			overridden++
		}
	}

	tiers := make([]string, 0, len(counts))
	for t := range counts {
		tiers = append(tiers, string(t))
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		tier.Metric = append(tier.Metric, gauge(float64(counts[urgency.Tier(t)]), label("tier", t)))
	}
	override.Metric = append(override.Metric, gauge(float64(overridden)))

	out := []*dto.MetricFamily{tier, override}
	if len(score.Metric) > 0 {
		out = append(out, score, wire)
	}
	return out
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

// #endregion prom
