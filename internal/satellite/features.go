package satellite

import "math"

// VegetationIndex computes (nir-red)/(nir+red+1e-6) element-wise. The epsilon
// keeps zero-reflectance pixels finite. Inputs must have equal length.
func VegetationIndex(nir, red []float64) []float64 {
	out := make([]float64, len(nir))
	for i := range nir {
		out[i] = (nir[i] - red[i]) / (nir[i] + red[i] + 1e-6)
	}
	return out
}

// PercentChange returns 100*(curr-prev)/|prev|, or 0 when prev is zero so a
// flat baseline never divides by zero.
func PercentChange(curr, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return 100 * (curr - prev) / math.Abs(prev)
}

// MeanOverMask averages values where mask is true, ignoring NaN cells.
// Returns NaN when nothing contributes; callers must check with math.IsNaN.
func MeanOverMask(values []float64, mask []bool) float64 {
	var sum float64
	var n int
	for i, v := range values {
		if !mask[i] || math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// QualityScore blends pixel validity and scene recency 50/50, clamped to
// [0,1]. Fourteen days of staleness zeroes the recency half.
func QualityScore(validRatio, sceneAgeDays float64) float64 {
	q := 0.5*validRatio + 0.5*math.Max(0, 1-sceneAgeDays/14)
	return math.Min(1, math.Max(0, q))
}
