package satellite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skyfield-labs/terralens/config"
	"github.com/skyfield-labs/terralens/internal/imagery"
	"github.com/skyfield-labs/terralens/internal/telemetry"
)

type stubFetcher struct {
	tokenErr   error
	tokenCalls int
	fetchCalls int
	stacks     [][]imagery.Sample // served in call order, then empty stacks
}

func (f *stubFetcher) Token(ctx context.Context) (string, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "test-token", nil
}

func (f *stubFetcher) FetchStack(ctx context.Context, token string, bbox [4]float64, end time.Time) ([]imagery.Sample, error) {
	idx := f.fetchCalls
	f.fetchCalls++
	if idx < len(f.stacks) {
		return f.stacks[idx], nil
	}
	return nil, nil
}

// uniformRaster builds an n-pixel three-band raster with constant red, nir
// and mask planes.
func uniformRaster(red, nir, mask float32, n int) *imagery.Raster {
	r := &imagery.Raster{Width: n, Height: 1, Bands: 3, Pix: make([]float32, n*3)}
	for i := 0; i < n; i++ {
		r.Pix[i*3] = red
		r.Pix[i*3+1] = nir
		r.Pix[i*3+2] = mask
	}
	return r
}

func newTestExecutor(fetcher StackFetcher) *Executor {
	e := NewExecutor(fetcher, telemetry.NewTelemetry(config.TelemetryConfig{}), nil)
	e.now = func() time.Time {
		return time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func ndviTarget(name string) Target {
	return Target{
		Name: name,
		Lat:  floatPtr(30.221), Lon: floatPtr(-97.620), RadiusKm: floatPtr(4.0),
		Sensors: []SensorSpec{{Type: SensorS2, Features: []string{FeatureNDVIMean30d}}},
	}
}

func TestExecuteInapplicablePlanSkipsNetwork(t *testing.T) {
	fetcher := &stubFetcher{}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{Ticker: "SHOP", UseSatellite: false, Notes: "Pure software."}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.tokenCalls != 0 || fetcher.fetchCalls != 0 {
		t.Fatalf("inapplicable plan must not touch the network: %d token, %d fetch",
			fetcher.tokenCalls, fetcher.fetchCalls)
	}
	if result.SummaryNotes != "Pure software." {
		t.Fatalf("expected plan notes carried forward, got %q", result.SummaryNotes)
	}
	if len(result.Observations) != 0 {
		t.Fatalf("expected no observations, got %d", len(result.Observations))
	}
}

func TestExecuteEmptyTargetsUsesDefaultNotes(t *testing.T) {
	exec := newTestExecutor(&stubFetcher{})

	result, err := exec.Execute(context.Background(), ObservationPlan{Ticker: "X", UseSatellite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SummaryNotes != "Satellite not applicable" {
		t.Fatalf("expected default notes, got %q", result.SummaryNotes)
	}
}

func TestExecuteNDVIHappyPath(t *testing.T) {
	// Current window NDVI ~0.6, baseline ~0.5: a +20% change after rounding.
	curr := []imagery.Sample{
		{Timestamp: "2026-08-23T12:00:00Z", Raster: uniformRaster(1, 4, 1, 8)},
		{Timestamp: "2026-08-08T12:00:00Z", Raster: uniformRaster(1, 4, 1, 8)},
	}
	prev := []imagery.Sample{
		{Timestamp: "2026-07-24T12:00:00Z", Raster: uniformRaster(1, 3, 1, 8)},
	}
	fetcher := &stubFetcher{stacks: [][]imagery.Sample{curr, prev}}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{
		Ticker:       "TSLA",
		UseSatellite: true,
		Targets:      []Target{ndviTarget("Giga Austin")},
	}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("expected one observation, got %d", len(result.Observations))
	}

	obs := result.Observations[0]
	if obs.Target != "Giga Austin" || obs.Sensor != SensorS2 || obs.Metric != FeatureNDVIMean30d {
		t.Fatalf("unexpected observation identity: %+v", obs)
	}
	if obs.Value == nil || *obs.Value != 20.0 {
		t.Fatalf("expected value 20.0, got %v", obs.Value)
	}
	if obs.Quality != 1.0 {
		t.Fatalf("full coverage and fresh anchor should score 1.0, got %v", obs.Quality)
	}
	if obs.AsOf != "2026-08-23T12:00:00Z" {
		t.Fatalf("unexpected as_of %q", obs.AsOf)
	}
	if obs.Provenance["samples_curr"] != 2 || obs.Provenance["samples_prev"] != 1 {
		t.Fatalf("unexpected provenance %v", obs.Provenance)
	}
	if obs.Note != "S2 NDVI over buffered bbox; simple 2-sample proxy for 30d windows" {
		t.Fatalf("unexpected note %q", obs.Note)
	}
	if len(result.Gaps) != 0 {
		t.Fatalf("expected no gaps, got %v", result.Gaps)
	}

	if fetcher.tokenCalls != 1 {
		t.Fatalf("token must be acquired exactly once, got %d", fetcher.tokenCalls)
	}
	if fetcher.fetchCalls != 2 {
		t.Fatalf("expected 2 window fetches, got %d", fetcher.fetchCalls)
	}
}

func TestExecuteNoScenesStillEmitsObservation(t *testing.T) {
	fetcher := &stubFetcher{} // every fetch returns an empty stack
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{Ticker: "TSLA", UseSatellite: true, Targets: []Target{ndviTarget("Giga Austin")}}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("expected the observation to exist without a value, got %d", len(result.Observations))
	}
	obs := result.Observations[0]
	if obs.Value != nil {
		t.Fatalf("no scenes should mean no value, got %v", *obs.Value)
	}
	if obs.Quality != 0.5 {
		t.Fatalf("empty windows keep the recency half only: expected 0.5, got %v", obs.Quality)
	}
	if obs.Provenance["samples_curr"] != 0 || obs.Provenance["samples_prev"] != 0 {
		t.Fatalf("unexpected provenance %v", obs.Provenance)
	}
	if len(result.Gaps) != 0 {
		t.Fatalf("an emitted observation suppresses the generic gap, got %v", result.Gaps)
	}
}

func TestExecuteTargetWithoutGeometryIsGapNotError(t *testing.T) {
	fetcher := &stubFetcher{}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{
		Ticker:       "TSLA",
		UseSatellite: true,
		Targets: []Target{{
			Name:    "mystery site",
			Sensors: []SensorSpec{{Type: SensorS2, Features: []string{FeatureNDVIMean30d}}},
		}},
	}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("geometry-less target must not abort the plan: %v", err)
	}
	if len(result.Observations) != 0 {
		t.Fatalf("expected no observations, got %d", len(result.Observations))
	}
	if len(result.Gaps) != 2 {
		t.Fatalf("expected target gap plus the generic gap, got %v", result.Gaps)
	}
	if !strings.Contains(result.Gaps[0], `"mystery site"`) {
		t.Fatalf("gap should name the target: %q", result.Gaps[0])
	}
	if result.Gaps[1] != "No usable scenes or features computed" {
		t.Fatalf("expected generic gap last, got %q", result.Gaps[1])
	}
	if fetcher.fetchCalls != 0 {
		t.Fatalf("no geometry, no fetches: got %d", fetcher.fetchCalls)
	}
}

func TestExecuteUnsupportedFeatureIsGap(t *testing.T) {
	fetcher := &stubFetcher{}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{
		Ticker:       "GLEN",
		UseSatellite: true,
		Targets: []Target{{
			Name: "mine",
			Lat:  floatPtr(-26.5), Lon: floatPtr(27.8),
			Sensors: []SensorSpec{{Type: SensorS1, Features: []string{"SAR_VV_delta_30d"}}},
		}},
	}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Gaps) != 2 {
		t.Fatalf("expected typed gap plus generic gap, got %v", result.Gaps)
	}
	if result.Gaps[0] != "unsupported feature: S1/SAR_VV_delta_30d" {
		t.Fatalf("unexpected gap text %q", result.Gaps[0])
	}
	// No handler ran, so no token was needed either.
	if fetcher.tokenCalls != 0 {
		t.Fatalf("token must stay lazy when nothing executes, got %d calls", fetcher.tokenCalls)
	}
}

func TestExecuteAuthFailureIsFatal(t *testing.T) {
	fetcher := &stubFetcher{tokenErr: errors.New("401 invalid_client")}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{Ticker: "TSLA", UseSatellite: true, Targets: []Target{ndviTarget("Giga Austin")}}
	_, err := exec.Execute(context.Background(), plan)
	if err == nil {
		t.Fatalf("expected auth failure to abort the plan")
	}
	if !strings.Contains(err.Error(), "imagery auth") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExecutePreservesPlanOrder(t *testing.T) {
	fetcher := &stubFetcher{}
	exec := newTestExecutor(fetcher)

	plan := ObservationPlan{
		Ticker:       "TSLA",
		UseSatellite: true,
		Targets:      []Target{ndviTarget("alpha"), ndviTarget("beta")},
	}
	result, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(result.Observations))
	}
	if result.Observations[0].Target != "alpha" || result.Observations[1].Target != "beta" {
		t.Fatalf("plan order not preserved: %q then %q",
			result.Observations[0].Target, result.Observations[1].Target)
	}
	if fetcher.tokenCalls != 1 {
		t.Fatalf("one token for the whole plan, got %d", fetcher.tokenCalls)
	}
}
