// Package satellite implements the plan/observe/explain pipeline: an LLM
// planner decides whether overhead imagery can say anything about a ticker,
// an executor measures the planned features from public missions, and an LLM
// summarizer verifies and condenses the measurements for a research report.
package satellite

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/skyfield-labs/terralens/internal/telemetry"
)

// Pipeline wires planner, executor and summarizer into one run.
type Pipeline struct {
	planner    *Planner
	executor   *Executor
	summarizer *Summarizer
	tele       *telemetry.Telemetry
	logger     *log.Logger
}

func NewPipeline(planner *Planner, executor *Executor, summarizer *Summarizer, tele *telemetry.Telemetry, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{
		planner:    planner,
		executor:   executor,
		summarizer: summarizer,
		tele:       tele,
		logger:     logger,
	}
}

// Run executes plan -> observe -> explain for one ticker. Hint catalogs are
// keyed by ticker (sites) and industry (proxies); only the matching entries
// reach the planner prompt, and nothing from them is retained afterwards.
//
// When the planner decides against satellite work the executor and summarizer
// never run, no imagery or LLM call is made past planning, and the returned
// summary is the fixed not-applicable block (Applicable() reports false).
func (p *Pipeline) Run(ctx context.Context, ticker, industry string, sites, proxies map[string][]Hint) (SatelliteSummary, error) {
	started := time.Now()
	p.logger.Printf("running satellite analysis for %s (industry %q)", ticker, industry)

	plan := p.planner.BuildPlan(ctx, ticker, industry, sites[ticker], proxies[industry])

	if !plan.UseSatellite {
		bullet := plan.Notes
		if bullet == "" {
			bullet = "Pure software/internet industry; skipping satellite."
		}
		summary := SatelliteSummary{
			Ticker:      ticker,
			Headline:    "Satellite not applicable",
			Bullets:     []string{bullet},
			Confidence:  0.99,
			Attribution: []string{},
		}
		p.recordRun(ctx, ticker, "inapplicable", "", time.Since(started), 0, 0)
		return summary, nil
	}

	result, err := p.executor.Execute(ctx, plan)
	if err != nil {
		p.recordRun(ctx, ticker, "failed", err.Error(), time.Since(started), 0, 0)
		return SatelliteSummary{}, fmt.Errorf("observe: %w", err)
	}

	summary, err := p.summarizer.Summarize(ctx, ticker, industry, result)
	if err != nil {
		p.recordRun(ctx, ticker, "failed", err.Error(), time.Since(started), len(result.Observations), len(result.Gaps))
		return SatelliteSummary{}, fmt.Errorf("explain: %w", err)
	}

	p.recordRun(ctx, ticker, "completed", "", time.Since(started), len(result.Observations), len(result.Gaps))
	return summary, nil
}

func (p *Pipeline) recordRun(ctx context.Context, ticker, outcome, errMsg string, duration time.Duration, observations, gaps int) {
	if p.tele == nil {
		return
	}
	p.tele.RecordRunEvent(ctx, telemetry.RunEvent{
		Ticker:       ticker,
		Outcome:      outcome,
		Error:        errMsg,
		Duration:     duration,
		Observations: observations,
		Gaps:         gaps,
	})
}
