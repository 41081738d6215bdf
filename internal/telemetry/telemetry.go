package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skyfield-labs/terralens/config"
)

// Prometheus collectors, registered once on the default registry and exposed
// through the server's /metrics endpoint. Labels stay low-cardinality; no
// label ever carries a ticker, coordinate or hint.
var (
	promRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terralens_runs_total",
		Help: "Pipeline runs by outcome (completed, inapplicable, failed).",
	}, []string{"outcome"})
	promRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terralens_run_duration_seconds",
		Help:    "End-to-end pipeline run duration.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	promObservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terralens_observations_total",
		Help: "Observations produced, by sensor and metric.",
	}, []string{"sensor", "metric"})
	promGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terralens_gaps_total",
		Help: "Gap entries produced across all runs.",
	})
	promImagery = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terralens_imagery_requests_total",
		Help: "Imagery API requests by terminal status.",
	}, []string{"status"})
	promLLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terralens_llm_requests_total",
		Help: "LLM calls by pipeline role and model.",
	}, []string{"role", "model"})
	promLLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terralens_llm_tokens_total",
		Help: "LLM tokens by model and direction (input, output).",
	}, []string{"model", "direction"})
	promLLMCost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terralens_llm_cost_dollars_total",
		Help: "Accumulated LLM spend in dollars.",
	})
)

// Telemetry provides monitoring and cost tracking for the observation pipeline
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds various performance metrics
type Metrics struct {
	// Run metrics
	TotalRuns        int64
	CompletedRuns    int64
	InapplicableRuns int64
	FailedRuns       int64
	AverageRunTime   time.Duration

	// Pipeline output metrics
	ObservationsProduced int64
	GapsProduced         int64

	// LLM metrics
	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64

	// Imagery metrics
	ImageryRequests map[string]int64
}

// CostTracker tracks LLM spend per model and pipeline role
type CostTracker struct {
	RoleCosts  map[string]float64 // planner/summarizer -> cost
	ModelCosts map[string]float64 // model -> cost

	TotalCost   float64
	TotalTokens int64
}

// RunEvent represents one full pipeline run
type RunEvent struct {
	ID           string
	Ticker       string
	Outcome      string // completed, inapplicable, failed
	Error        string
	Duration     time.Duration
	Observations int
	Gaps         int
}

// LLMEvent represents a single planner or summarizer call
type LLMEvent struct {
	Role         string
	Model        string
	Success      bool
	Duration     time.Duration
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			LLMRequests:     make(map[string]int64),
			LLMTokensUsed:   make(map[string]int64),
			ImageryRequests: make(map[string]int64),
		},
		costTracker: &CostTracker{
			RoleCosts:  make(map[string]float64),
			ModelCosts: make(map[string]float64),
		},
	}

	// Periodic cost logs can be disabled via config
	if config.Enabled && config.PeriodicLogs {
		go t.startCostReporting()
	}

	return t
}

// RecordRunEvent records a complete pipeline run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	switch event.Outcome {
	case "completed":
		t.metrics.CompletedRuns++
	case "inapplicable":
		t.metrics.InapplicableRuns++
	default:
		t.metrics.FailedRuns++
	}

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = event.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.metrics.ObservationsProduced += int64(event.Observations)
	t.metrics.GapsProduced += int64(event.Gaps)

	promRuns.WithLabelValues(event.Outcome).Inc()
	promRunDuration.Observe(event.Duration.Seconds())
	promGaps.Add(float64(event.Gaps))

	t.logger.Printf("Run Event: Ticker=%s, Outcome=%s, Duration=%v, Observations=%d, Gaps=%d",
		event.Ticker, event.Outcome, event.Duration, event.Observations, event.Gaps)
}

// RecordObservation counts one produced observation
func (t *Telemetry) RecordObservation(sensor, metric string) {
	if !t.config.Enabled {
		return
	}
	promObservations.WithLabelValues(sensor, metric).Inc()
}

// RecordImageryRequest counts one imagery API request by terminal status
func (t *Telemetry) RecordImageryRequest(status string) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	t.metrics.ImageryRequests[status]++
	t.mu.Unlock()
	promImagery.WithLabelValues(status).Inc()
}

// RecordLLMEvent records one planner or summarizer call
func (t *Telemetry) RecordLLMEvent(ctx context.Context, event LLMEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMRequests[event.Model]++
	t.metrics.LLMTokensUsed[event.Model] += event.InputTokens + event.OutputTokens

	if t.config.CostTracking {
		t.costTracker.TotalCost += event.Cost
		t.costTracker.TotalTokens += event.InputTokens + event.OutputTokens
		t.costTracker.RoleCosts[event.Role] += event.Cost
		t.costTracker.ModelCosts[event.Model] += event.Cost
	}

	promLLMRequests.WithLabelValues(event.Role, event.Model).Inc()
	promLLMTokens.WithLabelValues(event.Model, "input").Add(float64(event.InputTokens))
	promLLMTokens.WithLabelValues(event.Model, "output").Add(float64(event.OutputTokens))
	promLLMCost.Add(event.Cost)

	t.logger.Printf("LLM Event: Role=%s, Model=%s, Success=%t, Duration=%v, Cost=$%.4f",
		event.Role, event.Model, event.Success, event.Duration, event.Cost)
}

// GetMetrics returns current metrics snapshot
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.LLMRequests = make(map[string]int64)
	metrics.LLMTokensUsed = make(map[string]int64)
	metrics.ImageryRequests = make(map[string]int64)

	for k, v := range t.metrics.LLMRequests {
		metrics.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		metrics.LLMTokensUsed[k] = v
	}
	for k, v := range t.metrics.ImageryRequests {
		metrics.ImageryRequests[k] = v
	}

	return metrics
}

// GetCostSummary returns current cost summary
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		RoleCosts:   make(map[string]float64),
		ModelCosts:  make(map[string]float64),
	}

	for k, v := range t.costTracker.RoleCosts {
		summary.RoleCosts[k] = v
	}
	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}

	return summary
}

// CostSummary provides a summary of costs
type CostSummary struct {
	TotalCost   float64
	TotalTokens int64
	RoleCosts   map[string]float64
	ModelCosts  map[string]float64
}

// startCostReporting starts periodic cost reporting
func (t *Telemetry) startCostReporting() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		costs := t.GetCostSummary()

		t.logger.Printf("Cost Report: Total=$%.4f, Tokens=%d", costs.TotalCost, costs.TotalTokens)

		for model, cost := range costs.ModelCosts {
			t.logger.Printf("  Model %s: $%.4f", model, cost)
		}
		for role, cost := range costs.RoleCosts {
			t.logger.Printf("  Role %s: $%.4f", role, cost)
		}
	}
}

// Shutdown logs a final report
func (t *Telemetry) Shutdown() {
	t.logger.Println("Shutting down telemetry system...")

	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Runs: %d (completed=%d inapplicable=%d failed=%d)",
		metrics.TotalRuns, metrics.CompletedRuns, metrics.InapplicableRuns, metrics.FailedRuns)
	t.logger.Printf("  Average Run Time: %v", metrics.AverageRunTime)
	t.logger.Printf("  Observations: %d, Gaps: %d", metrics.ObservationsProduced, metrics.GapsProduced)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}

// CalculateCost calculates the cost for a given number of tokens and model
func (t *Telemetry) CalculateCost(inputTokens, outputTokens int64, costPer1KInput, costPer1KOutput float64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * costPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * costPer1KOutput
	return inputCost + outputCost
}

// GetPerformanceReport returns a detailed performance report
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	report := fmt.Sprintf(`
=== PERFORMANCE REPORT ===
Runs:
  Total: %d
  Completed: %d
  Inapplicable: %d
  Failed: %d
  Average Run Time: %v
  Observations: %d
  Gaps: %d
  Total Cost: $%.4f
  Total Tokens: %d

LLM Usage:
`, metrics.TotalRuns, metrics.CompletedRuns, metrics.InapplicableRuns, metrics.FailedRuns,
		metrics.AverageRunTime, metrics.ObservationsProduced, metrics.GapsProduced,
		costs.TotalCost, costs.TotalTokens)

	for model, requests := range metrics.LLMRequests {
		tokens := metrics.LLMTokensUsed[model]
		cost := costs.ModelCosts[model]
		report += fmt.Sprintf("  %s: %d requests, %d tokens, $%.4f\n", model, requests, tokens, cost)
	}

	report += "\nImagery Requests:\n"
	for status, requests := range metrics.ImageryRequests {
		report += fmt.Sprintf("  %s: %d\n", status, requests)
	}

	return report
}
