package stats

import (
	"fmt"
	"math"
	"sort"
)

// PercentileMethod represents different methods for calculating percentiles
type PercentileMethod int

const (
	// Linear interpolation between closest ranks (R-7, numpy default)
	Linear PercentileMethod = iota

	// Lower value of the two closest ranks
	Lower

	// Higher value of the two closest ranks
	Higher

	// Midpoint of the two closest ranks
	Midpoint
)

// QuartileInfo contains quartile-specific information
type QuartileInfo struct {
	Q1  float64 `json:"q1"`  // First quartile (25th percentile)
	Q2  float64 `json:"q2"`  // Second quartile (50th percentile, median)
	Q3  float64 `json:"q3"`  // Third quartile (75th percentile)
	IQR float64 `json:"iqr"` // Interquartile range (Q3 - Q1)
}

// Fences returns the Tukey fences [Q1 - k*IQR, Q3 + k*IQR]
func (q QuartileInfo) Fences(k float64) (low, high float64) {
	return q.Q1 - k*q.IQR, q.Q3 + k*q.IQR
}

// Percentiles computes rank-based percentiles and IQR outlier fences
//
// References:
//   - Hyndman, R.J., Fan, Y. (1996). "Sample Quantiles in Statistical Packages"
//     The American Statistician, 50(4), 361-365
//   - Tukey, J.W. (1977). "Exploratory Data Analysis"
type Percentiles struct {
	method   PercentileMethod
	outlierK float64 // Outlier detection multiplier (default 1.5)
}

// NewPercentiles creates a new percentile analyzer with linear interpolation method
func NewPercentiles() *Percentiles {
	return &Percentiles{
		method:   Linear,
		outlierK: 1.5,
	}
}

// NewPercentilesWithOutlierThreshold creates analyzer with custom outlier detection
func NewPercentilesWithOutlierThreshold(method PercentileMethod, outlierK float64) *Percentiles {
	return &Percentiles{
		method:   method,
		outlierK: outlierK,
	}
}

// OutlierK returns the fence multiplier
func (p *Percentiles) OutlierK() float64 {
	return p.outlierK
}

// CalculatePercentile computes a single percentile value (percentile in [0, 100])
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty data")
	}

	if percentile < 0 || percentile > 100 {
		return 0, fmt.Errorf("percentile must be between 0 and 100")
	}

	values := sortedCopy(data)
	return p.calculatePercentile(values, percentile), nil
}

// Quartiles computes Q1, Q2, Q3 and the IQR
func (p *Percentiles) Quartiles(data []float64) (QuartileInfo, error) {
	if len(data) == 0 {
		return QuartileInfo{}, fmt.Errorf("empty data")
	}

	values := sortedCopy(data)
	q1 := p.calculatePercentile(values, 25)
	q2 := p.calculatePercentile(values, 50)
	q3 := p.calculatePercentile(values, 75)

	return QuartileInfo{
		Q1:  q1,
		Q2:  q2,
		Q3:  q3,
		IQR: q3 - q1,
	}, nil
}

// OutlierMask reports, per value, whether it lies strictly outside the
// analyzer's IQR fences
func (p *Percentiles) OutlierMask(data []float64) ([]bool, error) {
	q, err := p.Quartiles(data)
	if err != nil {
		return nil, err
	}

	low, high := q.Fences(p.outlierK)
	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v < low || v > high
	}
	return mask, nil
}

func sortedCopy(data []float64) []float64 {
	values := make([]float64, len(data))
	copy(values, data)
	sort.Float64s(values)
	return values
}

func (p *Percentiles) calculatePercentile(sortedData []float64, percentile float64) float64 {
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	q := percentile / 100.0

	switch p.method {
	case Lower:
		return sortedData[int(math.Floor(rank(len(sortedData), q)))]
	case Higher:
		return sortedData[int(math.Ceil(rank(len(sortedData), q)))]
	case Midpoint:
		h := rank(len(sortedData), q)
		return (sortedData[int(math.Floor(h))] + sortedData[int(math.Ceil(h))]) / 2.0
	default:
		return p.linearInterpolation(sortedData, q)
	}
}

// rank is the zero-based fractional position (n-1)*q
func rank(n int, q float64) float64 {
	return float64(n-1) * q
}

// linearInterpolation interpolates between the two ranks around (n-1)*q
func (p *Percentiles) linearInterpolation(data []float64, q float64) float64 {
	n := len(data)
	h := rank(n, q)

	if h <= 0 {
		return data[0]
	}
	if h >= float64(n-1) {
		return data[n-1]
	}

	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))

	if lower == upper {
		return data[lower]
	}

	fraction := h - float64(lower)
	return data[lower] + fraction*(data[upper]-data[lower])
}
