package satellite

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// RenderReport formats a summary as the plain-text block embedded in research
// reports: a boxed header, the headline, numbered bullets, confidence and a
// sources line when attribution is present.
func RenderReport(summary SatelliteSummary, date string) string {
	header := renderBox([]string{
		"🛰️ Satellite Summary Report for " + summary.Ticker,
		"📅 Date: " + date,
	}, 90)

	headline := summary.Headline
	if headline == "" {
		headline = "No headline"
	}

	var bullets string
	if len(summary.Bullets) == 0 {
		bullets = "No key points."
	} else {
		lines := make([]string, len(summary.Bullets))
		for i, b := range summary.Bullets {
			lines[i] = fmt.Sprintf("%d. %s", i+1, b)
		}
		bullets = strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(headline)
	b.WriteString("\n\n")
	b.WriteString(bullets)
	fmt.Fprintf(&b, "\nConfidence: %.2f", summary.Confidence)
	if len(summary.Attribution) > 0 {
		fmt.Fprintf(&b, "\nSources: %s", strings.Join(summary.Attribution, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// renderBox centers lines inside a fixed-width box:
//
//	====================
//	  |     line 1     |
//	====================
//
// Width counts runes, so wide glyphs may render a little off-center.
func renderBox(lines []string, width int) string {
	const padding = 2
	horizontal := strings.Repeat("=", width)

	var out []string
	out = append(out, horizontal)
	contentWidth := width - 2*padding - 2
	for _, line := range lines {
		out = append(out, strings.Repeat(" ", padding)+"|"+center(line, contentWidth)+"|")
	}
	out = append(out, horizontal)
	return strings.Join(out, "\n")
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	right := width - n - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
