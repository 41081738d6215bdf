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

// Planner asks an LLM whether satellite observation is worth running for a
// ticker and, if so, which targets to observe. It never returns an error: any
// LLM failure degrades to a safe skip plan with the reason in the notes.
type Planner struct {
	provider llm.Provider
	model    string
	tele     *telemetry.Telemetry
	logger   *log.Logger
}

// NewPlanner creates a planner bound to one routed model key.
func NewPlanner(provider llm.Provider, model string, tele *telemetry.Telemetry, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
	}
	return &Planner{provider: provider, model: model, tele: tele, logger: logger}
}

// BuildPlan produces an ObservationPlan for the ticker. Hints are serialized
// into the prompt and nowhere else. Two guardrails run after parsing
// regardless of what the model returned: skip-listed industries force
// use_satellite=false, and target lists are trimmed to two.
func (p *Planner) BuildPlan(ctx context.Context, ticker, industry string, siteHints, proxyHints []Hint) ObservationPlan {
	user := p.userPrompt(ticker, industry, siteHints, proxyHints)

	started := time.Now()
	raw, usage, err := p.provider.GenerateWithUsage(ctx, plannerSystem, user, p.model)
	p.recordCall(ctx, err == nil, time.Since(started), usage)
	if err != nil {
		p.logger.Printf("planner call failed for %s: %v", ticker, err)
		return fallbackPlan(ticker, industry, fmt.Sprintf("Planner call failed: %v", err))
	}

	var plan ObservationPlan
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &plan); err != nil {
		p.logger.Printf("planner returned unparseable JSON for %s: %v", ticker, err)
		return fallbackPlan(ticker, industry, fmt.Sprintf("Planner JSON parse error: %v", err))
	}

	// The plan belongs to the request, whatever the model echoed back.
	plan.Ticker = ticker
	if plan.Industry == "" {
		plan.Industry = industry
	}

	if industry != "" && skipIndustry(industry) {
		plan.UseSatellite = false
		plan.Targets = nil
		plan.Fallbacks = nil
		plan.Notes = plan.Notes + " Skipped due to industry."
	}
	if len(plan.Targets) > 2 {
		plan.Targets = plan.Targets[:2]
		plan.Notes = plan.Notes + " Trimmed targets to 2."
	}
	return plan
}

func (p *Planner) userPrompt(ticker, industry string, siteHints, proxyHints []Hint) string {
	if industry == "" {
		industry = "unknown"
	}
	return fmt.Sprintf(plannerUserTemplate,
		ticker, industry, hintsJSON(siteHints), hintsJSON(proxyHints), skipIndustryList())
}

// hintsJSON serializes hints for the prompt. An absent catalog renders as an
// empty list so the model never sees JSON null.
func hintsJSON(hints []Hint) string {
	if hints == nil {
		hints = []Hint{}
	}
	b, err := json.MarshalIndent(hints, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func fallbackPlan(ticker, industry, notes string) ObservationPlan {
	return ObservationPlan{
		Ticker:       ticker,
		Industry:     industry,
		UseSatellite: false,
		Targets:      []Target{},
		Fallbacks:    []Target{},
		Notes:        notes,
	}
}

func (p *Planner) recordCall(ctx context.Context, success bool, duration time.Duration, usage llm.Usage) {
	if p.tele == nil {
		return
	}
	p.tele.RecordLLMEvent(ctx, telemetry.LLMEvent{
		Role:         "planner",
		Model:        p.model,
		Success:      success,
		Duration:     duration,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         usage.Cost,
	})
}
