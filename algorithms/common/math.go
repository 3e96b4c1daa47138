package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopStdDev calculates the population standard deviation (divides by n)
func PopStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// PopMeanStdDev returns the mean and population standard deviation together
func PopMeanStdDev(data []float64) (mean, std float64) {
	switch len(data) {
	case 0:
		return 0.0, 0.0
	case 1:
		return data[0], 0.0
	}
	return stat.PopMeanStdDev(data, nil)
}

// Median returns the middle value, averaging the two central values for
// even-length input
func Median(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// MinMax returns the smallest and largest values
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0.0, 0.0
	}
	return floats.Min(data), floats.Max(data)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := floats.Dot(data, data)
	return math.Sqrt(sumSquares / float64(len(data)))
}

// MaxNormalize scales data by its maximum plus eps so the result lies in [0, 1]
// for non-negative input
func MaxNormalize(data []float64, eps float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	peak := floats.Max(data) + eps
	if peak <= 0 {
		return normalized
	}
	for i, val := range data {
		normalized[i] = val / peak
	}
	return normalized
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ParabolicPeak refines an extremum at idx by fitting a parabola through its
// neighbours and returns the fractional index
func ParabolicPeak(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx)
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx)
	}

	return float64(idx) - b/(2*a)
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
