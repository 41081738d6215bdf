package satellite

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/skyfield-labs/terralens/internal/imagery"
	"github.com/skyfield-labs/terralens/internal/telemetry"
)

// StackFetcher is the slice of the imagery client the executor needs.
type StackFetcher interface {
	Token(ctx context.Context) (string, error)
	FetchStack(ctx context.Context, token string, bbox [4]float64, end time.Time) ([]imagery.Sample, error)
}

// Executor walks a plan target by target and turns planned features into
// observations via the handler registry. Iteration is sequential and
// order-preserving: observations and gaps come out in plan order.
type Executor struct {
	fetcher  StackFetcher
	registry *Registry
	tele     *telemetry.Telemetry
	logger   *log.Logger
	now      func() time.Time
}

// NewExecutor creates an executor with the built-in handlers registered.
func NewExecutor(fetcher StackFetcher, tele *telemetry.Telemetry, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags)
	}
	e := &Executor{
		fetcher: fetcher,
		tele:    tele,
		logger:  logger,
		now:     time.Now,
	}
	e.registry = NewRegistry()
	e.registry.Register(FeatureKey{Sensor: SensorS2, Feature: FeatureNDVIMean30d}, e.observeNDVI)
	return e
}

// Registry exposes the handler registry so additional features can be bound.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the plan. Inapplicable plans (use_satellite false, or no
// targets) short-circuit without any network traffic, carrying the plan notes
// forward. The imagery token is acquired lazily, once, before the first
// handler call; an auth failure is the only fatal error on the happy path.
func (e *Executor) Execute(ctx context.Context, plan ObservationPlan) (ObservationResult, error) {
	result := ObservationResult{
		Ticker:       plan.Ticker,
		Observations: []Observation{},
		Gaps:         []string{},
	}

	if !plan.UseSatellite || len(plan.Targets) == 0 {
		result.SummaryNotes = plan.Notes
		if result.SummaryNotes == "" {
			result.SummaryNotes = "Satellite not applicable"
		}
		return result, nil
	}

	var token string
	haveToken := false
	for _, t := range plan.Targets {
		for _, sensor := range t.Sensors {
			for _, feature := range sensor.Features {
				key := FeatureKey{Sensor: sensor.Type, Feature: feature}
				handler, ok := e.registry.Lookup(key)
				if !ok {
					result.Gaps = append(result.Gaps, "unsupported feature: "+key.String())
					continue
				}
				if !haveToken {
					tok, err := e.fetcher.Token(ctx)
					if err != nil {
						return ObservationResult{}, fmt.Errorf("imagery auth: %w", err)
					}
					token = tok
					haveToken = true
				}
				obs, gaps, err := handler(ctx, HandlerRequest{Target: t, Token: token, Now: e.now().UTC()})
				if err != nil {
					return ObservationResult{}, fmt.Errorf("handler %s: %w", key, err)
				}
				for _, o := range obs {
					if e.tele != nil {
						e.tele.RecordObservation(string(o.Sensor), o.Metric)
					}
				}
				result.Observations = append(result.Observations, obs...)
				result.Gaps = append(result.Gaps, gaps...)
			}
		}
	}

	if len(result.Observations) == 0 {
		result.Gaps = append(result.Gaps, "No usable scenes or features computed")
	}
	return result, nil
}

// observeNDVI measures NDVI_mean_30d_vs_prev30d for one target: a current
// window anchored at now and a baseline anchored at now-30d, each fetched as
// a two-sample stack, reduced to masked means and compared. A target without
// geometry is a gap, not an error.
func (e *Executor) observeNDVI(ctx context.Context, req HandlerRequest) ([]Observation, []string, error) {
	bbox, err := ResolveBoundingBox(req.Target)
	if err != nil {
		return nil, []string{fmt.Sprintf("target %q: %v", req.Target.Name, err)}, nil
	}

	now := req.Now
	currStack, err := e.fetcher.FetchStack(ctx, req.Token, [4]float64(bbox), now)
	if err != nil {
		return nil, nil, err
	}
	prevStack, err := e.fetcher.FetchStack(ctx, req.Token, [4]float64(bbox), now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, nil, err
	}

	currMean, currValid := windowNDVI(currStack)
	prevMean, _ := windowNDVI(prevStack)

	var value *float64
	if !math.IsNaN(currMean) && !math.IsNaN(prevMean) {
		v := math.Round(PercentChange(currMean, prevMean)*100) / 100
		value = &v
	}

	// The current window anchors at now, so scene age is pinned to zero and
	// quality reduces to the valid-pixel half plus 0.5.
	quality := QualityScore(currValid, 0)

	obs := Observation{
		Target:  req.Target.Name,
		Sensor:  SensorS2,
		Metric:  FeatureNDVIMean30d,
		Value:   value,
		Quality: quality,
		AsOf:    now.Format(time.RFC3339),
		Provenance: map[string]interface{}{
			"bbox":         bbox,
			"samples_curr": len(currStack),
			"samples_prev": len(prevStack),
		},
		Note: "S2 NDVI over buffered bbox; simple 2-sample proxy for 30d windows",
	}
	return []Observation{obs}, nil, nil
}

// windowNDVI folds a stack into (mean NDVI, mean valid ratio) across usable
// samples. A sample is usable when its masked mean is a number; a window with
// no usable samples reports NaN and 0.
func windowNDVI(stack []imagery.Sample) (mean, validRatio float64) {
	var vals, valids []float64
	for _, s := range stack {
		red := s.Raster.BandFloat64(0)
		nir := s.Raster.BandFloat64(1)
		mask := s.Raster.MaskBand(2, 0.5)

		v := MeanOverMask(VegetationIndex(nir, red), mask)
		if math.IsNaN(v) {
			continue
		}
		vals = append(vals, v)
		valids = append(valids, fractionTrue(mask))
	}
	if len(vals) == 0 {
		return math.NaN(), 0
	}
	return meanOf(vals), meanOf(valids)
}

func fractionTrue(mask []bool) float64 {
	if len(mask) == 0 {
		return 0
	}
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return float64(n) / float64(len(mask))
}

func meanOf(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
