package satellite

// SensorType identifies a public imagery mission family.
type SensorType string

const (
	SensorS2    SensorType = "S2"    // Sentinel-2 optical
	SensorS1    SensorType = "S1"    // Sentinel-1 SAR
	SensorVIIRS SensorType = "VIIRS" // night lights
	SensorMODIS SensorType = "MODIS" // fire / smoke
)

// FeatureNDVIMean30d is the only feature with an executor handler today. The
// planner taxonomy names more; unplanned ones surface as gaps, not errors.
const FeatureNDVIMean30d = "NDVI_mean_30d_vs_prev30d"

// DefaultRadiusKm buffers point targets that arrive without a radius.
const DefaultRadiusKm = 5.0

// SensorSpec asks for a set of named features from one sensor.
type SensorSpec struct {
	Type     SensorType `json:"type"`
	Features []string   `json:"features"`
}

// Target is one site or proxy area the planner selected. Geometry is either a
// point (lat/lon plus optional radius) or a GeoJSON polygon; polygon wins when
// both are present. Targets only ever live in memory and on the wire to the
// imagery API, never at rest.
type Target struct {
	Name           string                 `json:"name"`
	Lat            *float64               `json:"lat"`
	Lon            *float64               `json:"lon"`
	RadiusKm       *float64               `json:"radius_km"`
	PolygonGeoJSON map[string]interface{} `json:"polygon_geojson"`
	Sensors        []SensorSpec           `json:"sensors"`
	Reason         string                 `json:"reason"`
}

// GeometryKind discriminates the Geometry union.
type GeometryKind int

const (
	GeometryNone GeometryKind = iota
	GeometryPoint
	GeometryPolygon
)

// Geometry is the resolved shape of a target. Exactly the fields for its Kind
// are meaningful.
type Geometry struct {
	Kind     GeometryKind
	Lat      float64
	Lon      float64
	RadiusKm float64
	Polygon  map[string]interface{}
}

// Geometry resolves the target's wire fields into the tagged union. A
// non-positive radius falls back to DefaultRadiusKm.
func (t Target) Geometry() Geometry {
	if t.PolygonGeoJSON != nil {
		return Geometry{Kind: GeometryPolygon, Polygon: t.PolygonGeoJSON}
	}
	if t.Lat != nil && t.Lon != nil {
		radius := DefaultRadiusKm
		if t.RadiusKm != nil && *t.RadiusKm > 0 {
			radius = *t.RadiusKm
		}
		return Geometry{Kind: GeometryPoint, Lat: *t.Lat, Lon: *t.Lon, RadiusKm: radius}
	}
	return Geometry{Kind: GeometryNone}
}

// Hint is a caller-supplied candidate location for a ticker or industry. Hints
// are request-scoped: they pass through prompts and imagery requests and are
// never cached, logged or stored.
type Hint struct {
	Name           string                 `json:"name"`
	Lat            *float64               `json:"lat,omitempty"`
	Lon            *float64               `json:"lon,omitempty"`
	RadiusKm       *float64               `json:"radius_km,omitempty"`
	PolygonGeoJSON map[string]interface{} `json:"polygon_geojson,omitempty"`
}

// ObservationPlan is the planner's full output: whether satellite work makes
// sense for this ticker, and if so where to look.
type ObservationPlan struct {
	Ticker       string   `json:"ticker"`
	Industry     string   `json:"industry"`
	UseSatellite bool     `json:"use_satellite"`
	Targets      []Target `json:"targets"`
	Fallbacks    []Target `json:"fallbacks"`
	Notes        string   `json:"notes"`
}

// Observation is one measured feature for one target. Value is nil when the
// windows could not both be measured; the observation still carries quality
// and provenance so the summarizer can reason about the miss.
type Observation struct {
	Target     string                 `json:"target"`
	Sensor     SensorType             `json:"sensor"`
	Metric     string                 `json:"metric"`
	Value      *float64               `json:"value"`
	Quality    float64                `json:"quality"`
	AsOf       string                 `json:"as_of"`
	Provenance map[string]interface{} `json:"provenance"`
	Note       string                 `json:"note"`
}

// ObservationResult is everything the executor produced for one plan, in plan
// order, plus the gaps explaining what it could not produce.
type ObservationResult struct {
	Ticker       string        `json:"ticker"`
	Observations []Observation `json:"observations"`
	Gaps         []string      `json:"gaps"`
	SummaryNotes string        `json:"summary_notes"`
}

// SatelliteSummary is the terminal artifact of a run. RawCounts is absent on
// the not-applicable short circuit and {"observations","gaps"} otherwise.
type SatelliteSummary struct {
	Ticker      string         `json:"ticker"`
	Headline    string         `json:"headline"`
	Bullets     []string       `json:"bullets"`
	Confidence  float64        `json:"confidence"`
	Attribution []string       `json:"attribution"`
	RawCounts   map[string]int `json:"raw_counts,omitempty"`
}

// Applicable reports whether the summary came out of the full pipeline rather
// than the not-applicable short circuit.
func (s SatelliteSummary) Applicable() bool {
	return s.RawCounts != nil
}
