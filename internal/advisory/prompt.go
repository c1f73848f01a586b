package advisory

import (
	"fmt"
	"strings"
)

// #region prompt
const systemPrompt = "You are an emergency assistant helping someone get NARCAN (naloxone). " +
	"Be concise and concrete. Always put calling emergency services first when someone may be overdosing."

// BuildPrompt renders the user prompt: location, context, device load and
// urgency, followed by the three options the answer must cover.
func BuildPrompt(req Request) string {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = "unknown"
	}
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		symptoms = "none given"
	}

	var b strings.Builder
	b.WriteString("A user needs life-saving NARCAN (naloxone) help.\n\n")
	fmt.Fprintf(&b, "- Location: %s\n", location)
	fmt.Fprintf(&b, "- Context: %s\n", symptoms)
	fmt.Fprintf(&b, "- CPU=%.0f%%, RAM=%.0f%%\n", req.Sample.CPU*100, req.Sample.Memory*100)
	fmt.Fprintf(&b, "- Urgency=%.3f (%s)", req.Verdict.Score, req.Verdict.Tier)
	if req.Verdict.Overridden {
		b.WriteString(", escalated")
	}
	b.WriteString("\n\nList 3 options:\n")
	b.WriteString("1. Nearest NARCAN provider.\n")
	b.WriteString("2. Free outreach or pharmacy program.\n")
	b.WriteString("3. Emergency instructions if alone.")
	return b.String()
}

// #endregion prompt
