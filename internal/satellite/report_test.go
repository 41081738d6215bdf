package satellite

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderReportFullSummary(t *testing.T) {
	summary := SatelliteSummary{
		Ticker:   "TSLA",
		Headline: "Activity around the Austin plant ticked up.",
		Bullets: []string{
			"NDVI rose ~20% vs the prior month.",
			"Single-sensor evidence; treat as directional.",
		},
		Confidence:  0.8,
		Attribution: []string{"S2", "VIIRS"},
	}

	report := RenderReport(summary, "2026-08-23")

	for _, want := range []string{
		"🛰️ Satellite Summary Report for TSLA",
		"📅 Date: 2026-08-23",
		"Activity around the Austin plant ticked up.",
		"1. NDVI rose ~20% vs the prior month.",
		"2. Single-sensor evidence; treat as directional.",
		"\nConfidence: 0.80",
		"\nSources: S2, VIIRS",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	if !strings.HasSuffix(report, "\n") {
		t.Fatalf("report must end with a newline")
	}
}

func TestRenderReportBoxGeometry(t *testing.T) {
	report := RenderReport(SatelliteSummary{Ticker: "CAT"}, "2026-08-23")
	lines := strings.Split(report, "\n")
	if len(lines) < 4 {
		t.Fatalf("expected boxed header, got %d lines", len(lines))
	}

	horizontal := strings.Repeat("=", 90)
	if lines[0] != horizontal || lines[3] != horizontal {
		t.Fatalf("header box must open and close with %d '=' runes", 90)
	}
	for _, line := range lines[1:3] {
		if !strings.HasPrefix(line, "  |") || !strings.HasSuffix(line, "|") {
			t.Fatalf("boxed line has wrong frame: %q", line)
		}
		// padding + pipe + content + pipe
		if got := utf8.RuneCountInString(line); got != 88 {
			t.Fatalf("boxed line width %d, want 88: %q", got, line)
		}
	}
}

func TestRenderReportEmptySummary(t *testing.T) {
	report := RenderReport(SatelliteSummary{Ticker: "X"}, "2026-08-23")

	if !strings.Contains(report, "No headline") {
		t.Fatalf("missing headline placeholder:\n%s", report)
	}
	if !strings.Contains(report, "No key points.") {
		t.Fatalf("missing bullets placeholder:\n%s", report)
	}
	if !strings.Contains(report, "Confidence: 0.00") {
		t.Fatalf("confidence line must always render:\n%s", report)
	}
	if strings.Contains(report, "Sources:") {
		t.Fatalf("sources line must be omitted without attribution:\n%s", report)
	}
}

func TestCenterPutsExtraSpaceRight(t *testing.T) {
	if got := center("ab", 5); got != " ab  " {
		t.Fatalf("center(\"ab\", 5) = %q", got)
	}
	if got := center("abcdef", 3); got != "abcdef" {
		t.Fatalf("overlong input must pass through, got %q", got)
	}
}
