package advisory

import (
	"context"
	"strings"

	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region local
// Local answers without any network call. It is the "none" backend and the
// text shown when a remote backend fails.
type Local struct{}

// Advise returns fixed guidance, leading with the emergency step for high tiers.
func (Local) Advise(_ context.Context, req Request) (string, error) {
	return Fallback(req.Verdict.Tier), nil
}

func (Local) Close() error { return nil }

// Fallback is the offline guidance for a tier.
func Fallback(tier urgency.Tier) string {
	var b strings.Builder
	if tier == urgency.TierHigh {
		b.WriteString("**If someone is unresponsive or not breathing, call 911 (or your local emergency number) now.**\n\n")
	}
	b.WriteString("1. **Nearest provider:** most US pharmacies sell naloxone nasal spray over the counter; call ahead to confirm stock.\n")
	b.WriteString("2. **Free programs:** the SAMHSA National Helpline (1-800-662-4357) can point you to local harm-reduction and naloxone programs.\n")
	b.WriteString("3. **If alone:** the Never Use Alone line (1-800-484-3731) stays on the phone and sends help if you stop responding.\n")
	if tier != urgency.TierHigh {
		b.WriteString("\nIf symptoms worsen (slow breathing, blue lips, no response), call emergency services immediately.\n")
	}
	return b.String()
}

// #endregion local
