package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/skyfield-labs/terralens/internal/llm"
	"github.com/skyfield-labs/terralens/internal/telemetry"
)

// Summarizer turns an ObservationResult into the terminal SatelliteSummary.
// Unlike the planner it has no safe fallback: a failed or malformed response
// is an error, because fabricating a verification layer's output would defeat
// it.
type Summarizer struct {
	provider llm.Provider
	model    string
	tele     *telemetry.Telemetry
	logger   *log.Logger
}

// NewSummarizer creates a summarizer bound to one routed model key.
func NewSummarizer(provider llm.Provider, model string, tele *telemetry.Telemetry, logger *log.Logger) *Summarizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZER] ", log.LstdFlags)
	}
	return &Summarizer{provider: provider, model: model, tele: tele, logger: logger}
}

// Summarize asks the model for headline, bullets, confidence and attribution.
// RawCounts is computed locally from the result, never taken from the model.
func (s *Summarizer) Summarize(ctx context.Context, ticker, industry string, result ObservationResult) (SatelliteSummary, error) {
	obsJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return SatelliteSummary{}, fmt.Errorf("encode observations: %w", err)
	}
	user := fmt.Sprintf(summarizerUserTemplate, ticker, industry, obsJSON)

	started := time.Now()
	raw, usage, err := s.provider.GenerateWithUsage(ctx, summarizerSystem, user, s.model)
	s.recordCall(ctx, err == nil, time.Since(started), usage)
	if err != nil {
		return SatelliteSummary{}, fmt.Errorf("summarizer call: %w", err)
	}

	// Pointer fields distinguish "absent" from zero values; every key in the
	// contract is required.
	var payload struct {
		Headline    *string  `json:"headline"`
		Bullets     []string `json:"bullets"`
		Confidence  *float64 `json:"confidence"`
		Attribution []string `json:"attribution"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		return SatelliteSummary{}, fmt.Errorf("summarizer returned invalid JSON: %w", err)
	}
	if payload.Headline == nil || payload.Confidence == nil || payload.Bullets == nil || payload.Attribution == nil {
		return SatelliteSummary{}, fmt.Errorf("summarizer response missing required keys")
	}

	return SatelliteSummary{
		Ticker:      ticker,
		Headline:    *payload.Headline,
		Bullets:     payload.Bullets,
		Confidence:  *payload.Confidence,
		Attribution: payload.Attribution,
		RawCounts: map[string]int{
			"observations": len(result.Observations),
			"gaps":         len(result.Gaps),
		},
	}, nil
}

func (s *Summarizer) recordCall(ctx context.Context, success bool, duration time.Duration, usage llm.Usage) {
	if s.tele == nil {
		return
	}
	s.tele.RecordLLMEvent(ctx, telemetry.LLMEvent{
		Role:         "summarizer",
		Model:        s.model,
		Success:      success,
		Duration:     duration,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         usage.Cost,
	})
}
