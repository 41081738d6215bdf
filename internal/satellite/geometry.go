package satellite

import (
	"errors"
	"fmt"
	"math"
)

// Kilometres per degree at mid-latitudes. Coarse on purpose: the buffered
// boxes feed a 10 m public-mission query, not a geodesic pipeline.
const (
	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.320
)

// ErrNoGeometry marks a target that carries neither a point nor a polygon.
var ErrNoGeometry = errors.New("target requires lat/lon or polygon_geojson")

// BoundingBox is [minLon, minLat, maxLon, maxLat], the order the imagery API
// expects and the order recorded in observation provenance.
type BoundingBox [4]float64

// ResolveBoundingBox turns a target's geometry into a lon/lat box: the
// polygon's envelope, or a radius buffer around the point.
func ResolveBoundingBox(t Target) (BoundingBox, error) {
	g := t.Geometry()
	switch g.Kind {
	case GeometryPolygon:
		return polygonEnvelope(g.Polygon)
	case GeometryPoint:
		dLat := g.RadiusKm / kmPerDegreeLat
		dLon := g.RadiusKm / (kmPerDegreeLon * math.Cos(g.Lat*math.Pi/180))
		return BoundingBox{g.Lon - dLon, g.Lat - dLat, g.Lon + dLon, g.Lat + dLat}, nil
	default:
		return BoundingBox{}, ErrNoGeometry
	}
}

func polygonEnvelope(geom map[string]interface{}) (BoundingBox, error) {
	coords, ok := geom["coordinates"]
	if !ok {
		return BoundingBox{}, fmt.Errorf("polygon_geojson missing coordinates: %w", ErrNoGeometry)
	}
	env := BoundingBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	if foldPositions(coords, &env) == 0 {
		return BoundingBox{}, fmt.Errorf("polygon_geojson has no positions: %w", ErrNoGeometry)
	}
	return env, nil
}

// foldPositions walks arbitrarily nested coordinate arrays and folds every
// [lon, lat] position into env. Depth is not enforced, so Polygon and
// MultiPolygon geometries both work. Returns the number of positions seen.
func foldPositions(node interface{}, env *BoundingBox) int {
	arr, ok := node.([]interface{})
	if !ok || len(arr) == 0 {
		return 0
	}
	if lon, ok := asFloat(arr[0]); ok {
		if len(arr) < 2 {
			return 0
		}
		lat, ok := asFloat(arr[1])
		if !ok {
			return 0
		}
		env[0] = math.Min(env[0], lon)
		env[1] = math.Min(env[1], lat)
		env[2] = math.Max(env[2], lon)
		env[3] = math.Max(env[3], lat)
		return 1
	}
	n := 0
	for _, child := range arr {
		n += foldPositions(child, env)
	}
	return n
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}
