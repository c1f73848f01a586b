package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region styles
var (
	tierStyles = map[urgency.Tier]lipgloss.Style{
		urgency.TierLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		urgency.TierMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		urgency.TierHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Padding(0, 1),
	}
	labelStyle = lipgloss.NewStyle().Faint(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// #endregion styles

// #region render
func renderAssessment(w io.Writer, a triage.Assessment) {
	v := a.Verdict
	tier := tierStyles[v.Tier].Render(strings.ToUpper(string(v.Tier)))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %.3f\n", labelStyle.Render("urgency"), tier, labelStyle.Render("score"), v.Score)
	load := fmt.Sprintf("cpu %.0f%%  mem %.0f%%", a.Sample.CPU*100, a.Sample.Memory*100)
	if a.Sample.Degraded {
		load += "  (sampling degraded)"
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("load   "), load)
	wires := make([]string, len(a.Wires))
	for i, e := range a.Wires {
		wires[i] = fmt.Sprintf("%+.2f", e)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("wires  "), strings.Join(wires, " "))
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("reason "), v.Reason)

	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

// renderMarkdown renders advice text; on a non-terminal it uses the plain
// style so redirected output stays readable.
func renderMarkdown(w io.Writer, text string) {
	style := glamour.WithStylePath("notty")
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err == nil {
		if out, rerr := r.Render(text); rerr == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprintln(w, text)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion render
