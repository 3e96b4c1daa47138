package contour

import "github.com/RyanBlaney/sonido-canto/algorithms/stats"

// RejectOutliers marks voiced frames outside the Tukey fences
// [Q1-k*IQR, Q3+k*IQR] as unvoiced. Quartiles use linear interpolation. With
// fewer than minPoints voiced frames the series passes through unchanged.
func RejectOutliers(frequency []float64, k float64, minPoints int) []float64 {
	out := normalizeUnvoiced(frequency)

	var idx []int
	var values []float64
	for i, f := range out {
		if IsVoiced(f) {
			idx = append(idx, i)
			values = append(values, f)
		}
	}
	if len(values) < minPoints || len(values) == 0 {
		return out
	}

	mask, err := stats.NewPercentilesWithOutlierThreshold(stats.Linear, k).OutlierMask(values)
	if err != nil {
		return out
	}
	for j, outlier := range mask {
		if outlier {
			out[idx[j]] = nan()
		}
	}
	return out
}
